package stream

import (
	"context"
	"time"

	"web3-launchpad/internal/launchpad/chain"
	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/internal/launchpad/monitor"
	"web3-launchpad/internal/launchpad/stats"
	"web3-launchpad/internal/launchpad/trades"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Emitter 向单个客户端写事件, 返回错误表示连接已不可用
type Emitter interface {
	Emit(ev model.StreamEvent) error
}

// TradeSink 新发现的成交额外投递, 不能阻塞推送循环
type TradeSink interface {
	Publish(chainID uint64, trades []model.Trade)
}

type Config struct {
	Interval time.Duration
	Lookback uint64
}

type Publisher struct {
	client  *chain.Client
	scanner *trades.Reconstructor
	stats   *stats.Aggregator
	sinks   []TradeSink
	cfg     Config
	tl      *zap.Logger
}

func NewPublisher(client *chain.Client, scanner *trades.Reconstructor, agg *stats.Aggregator, cfg Config, tl *zap.Logger, sinks ...TradeSink) *Publisher {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.Lookback == 0 {
		cfg.Lookback = 10
	}
	return &Publisher{
		client:  client,
		scanner: scanner,
		stats:   agg,
		sinks:   sinks,
		cfg:     cfg,
		tl:      tl,
	}
}

// Session 单个连接的推送状态, 只由 Serve 所在的 goroutine 修改
type Session struct {
	ID        string
	Token     common.Address
	LastBlock uint64
	seeded    bool
}

// NewSession 从 fromBlock 之后开始推送
func NewSession(token common.Address, fromBlock uint64) *Session {
	return &Session{ID: uuid.NewString(), Token: token, LastBlock: fromBlock, seeded: true}
}

// Serve 阻塞直到 ctx 取消(客户端断开)或写入失败
func (p *Publisher) Serve(ctx context.Context, token common.Address, transport string, em Emitter) error {
	s := &Session{ID: uuid.NewString(), Token: token}
	tl := p.tl.With(zap.String("session", s.ID), zap.String("token", token.Hex()), zap.String("transport", transport))

	monitor.StreamSessions.WithLabelValues(transport).Inc()
	defer monitor.StreamSessions.WithLabelValues(transport).Dec()

	seedErr := p.seed(ctx, s)
	if err := p.emit(em, model.NewStreamEvent(model.EventConnected, model.ConnectedPayload{
		SessionID:    s.ID,
		TokenAddress: token.Hex(),
		ChainID:      p.client.ChainID(),
		FromBlock:    s.LastBlock,
	})); err != nil {
		return err
	}
	if seedErr != nil {
		tl.Warn("seed checkpoint failed", zap.Error(seedErr))
		if err := p.emit(em, model.NewErrorEvent("block number unavailable")); err != nil {
			return err
		}
	}
	tl.Info("stream session opened", zap.Uint64("from_block", s.LastBlock))

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			tl.Info("stream session closed", zap.Uint64("last_block", s.LastBlock))
			return nil
		case <-ticker.C:
			if err := p.Tick(ctx, s, em); err != nil {
				tl.Info("stream session aborted", zap.Error(err))
				return err
			}
		}
	}
}

// seed 起点为 current - lookback
func (p *Publisher) seed(ctx context.Context, s *Session) error {
	current, err := p.client.GetBlockNumber(ctx)
	if err != nil {
		return err
	}
	s.LastBlock = current
	if current > p.cfg.Lookback {
		s.LastBlock = current - p.cfg.Lookback
	}
	s.seeded = true
	return nil
}

// Tick 一次轮询: 买入 -> 卖出 -> stats. 只有写入失败才返回错误
func (p *Publisher) Tick(ctx context.Context, s *Session, em Emitter) error {
	if !s.seeded {
		if err := p.seed(ctx, s); err != nil {
			monitor.StreamTicks.WithLabelValues("error").Inc()
			return p.emit(em, model.NewErrorEvent("block number unavailable"))
		}
	}

	current, err := p.client.GetBlockNumber(ctx)
	if err != nil {
		monitor.StreamTicks.WithLabelValues("error").Inc()
		p.tl.Warn("tick failed", zap.String("session", s.ID), zap.Error(err))
		return p.emit(em, model.NewErrorEvent("block number unavailable"))
	}
	if current <= s.LastBlock {
		monitor.StreamTicks.WithLabelValues("noop").Inc()
		return nil
	}

	from := s.LastBlock + 1
	// 无论成功与否都推进, 避免持续错误时反复扫描同一区间
	defer func() { s.LastBlock = current }()

	buys, buyErr := p.scanner.ScanTransfers(ctx, s.Token, model.TradeTypeBuy, from, current)
	sells, sellErr := p.scanner.ScanTransfers(ctx, s.Token, model.TradeTypeSell, from, current)
	if ctx.Err() != nil {
		return nil
	}

	discovered := append(buys, sells...)
	for _, t := range discovered {
		if err := p.emit(em, model.NewStreamEvent(model.EventTrade, t)); err != nil {
			return err
		}
	}
	if len(discovered) > 0 {
		for _, sink := range p.sinks {
			sink.Publish(p.client.ChainID(), discovered)
		}
	}

	result := "ok"
	if buyErr != nil || sellErr != nil {
		result = "error"
		if err := p.emit(em, model.NewErrorEvent("log scan incomplete")); err != nil {
			return err
		}
	}

	st, err := p.stats.GetTokenICOStats(ctx, s.Token)
	if err != nil {
		result = "error"
		p.tl.Warn("stats unavailable", zap.String("session", s.ID), zap.Error(err))
		if err := p.emit(em, model.NewErrorEvent("stats unavailable")); err != nil {
			return err
		}
	} else if err := p.emit(em, model.NewStreamEvent(model.EventStats, st)); err != nil {
		return err
	}

	monitor.StreamTicks.WithLabelValues(result).Inc()
	return nil
}

func (p *Publisher) emit(em Emitter, ev model.StreamEvent) error {
	if err := em.Emit(ev); err != nil {
		return err
	}
	monitor.StreamEvents.WithLabelValues(ev.Type).Inc()
	return nil
}
