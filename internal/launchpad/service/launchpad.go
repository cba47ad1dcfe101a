package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"web3-launchpad/internal/launchpad/cache"
	"web3-launchpad/internal/launchpad/candles"
	"web3-launchpad/internal/launchpad/config"
	"web3-launchpad/internal/launchpad/dao"
	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/internal/launchpad/pricing"
	"web3-launchpad/internal/launchpad/stream"
	"web3-launchpad/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrInvalidAddress = errors.New("invalid token address")
	ErrInvalidAmount  = errors.New("amount must be a positive number")
	ErrInvalidSide    = errors.New("side must be buy or sell")
	ErrUnknownChain   = errors.New("unknown chain id")
	ErrInvalidToken   = errors.New("token name and symbol are required")
)

const (
	defaultTradesLimit  = 50
	defaultHoldersLimit = 20
	defaultListLimit    = 20
	maxListLimit        = 100
	defaultCandlesLimit = 500
)

// IsInputError 需要返回 400 的错误
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidSide) ||
		errors.Is(err, ErrUnknownChain) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, candles.ErrUnknownTimeframe)
}

// LaunchpadService 接口层使用的读写入口, 链上读取失败时返回空数据而不是错误
type LaunchpadService struct {
	chains       map[uint64]*ChainBundle
	defaultChain uint64
	tokens       dao.TokenDAO
	cache        *cache.ResponseCache
	latest       *LatestTradesService
	lp           config.LaunchpadConfig
	tl           *zap.Logger
}

func NewLaunchpadService(bundles []*ChainBundle, tokens dao.TokenDAO, rc *cache.ResponseCache, latest *LatestTradesService, lp config.LaunchpadConfig, tl *zap.Logger) *LaunchpadService {
	chains := make(map[uint64]*ChainBundle, len(bundles))
	var defaultChain uint64
	for i, b := range bundles {
		chains[b.ChainID] = b
		if i == 0 {
			defaultChain = b.ChainID
		}
	}
	if lp.MaxTradesLimit <= 0 {
		lp.MaxTradesLimit = 500
	}
	if lp.MaxHoldersLimit <= 0 {
		lp.MaxHoldersLimit = 200
	}
	return &LaunchpadService{
		chains:       chains,
		defaultChain: defaultChain,
		tokens:       tokens,
		cache:        rc,
		latest:       latest,
		lp:           lp,
		tl:           tl,
	}
}

func (s *LaunchpadService) Chain(chainID uint64) (*ChainBundle, error) {
	b, ok := s.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}
	return b, nil
}

// Resolve 校验 chain id 与地址
func (s *LaunchpadService) Resolve(chainID uint64, address string) (*ChainBundle, common.Address, error) {
	b, err := s.Chain(chainID)
	if err != nil {
		return nil, common.Address{}, err
	}
	if !utils.IsEvmAddress(address) {
		return nil, common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return b, common.HexToAddress(strings.TrimSpace(address)), nil
}

func clamp(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func key(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func (s *LaunchpadService) ListTokens(ctx context.Context, chainID uint64, limit, offset int) ([]*model.Token, error) {
	if _, err := s.Chain(chainID); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	tokens, err := s.tokens.List(ctx, chainID, clamp(limit, defaultListLimit, maxListLimit), offset)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	if tokens == nil {
		tokens = []*model.Token{}
	}
	return tokens, nil
}

func (s *LaunchpadService) UpsertToken(ctx context.Context, token *model.Token) error {
	if _, _, err := s.Resolve(token.ChainID, token.Address); err != nil {
		return err
	}
	if token.Creator != "" && !utils.IsEvmAddress(token.Creator) {
		return fmt.Errorf("%w: creator %q", ErrInvalidAddress, token.Creator)
	}
	token.Name = strings.TrimSpace(token.Name)
	token.Symbol = strings.TrimSpace(token.Symbol)
	if token.Name == "" || token.Symbol == "" {
		return ErrInvalidToken
	}
	if err := s.tokens.Upsert(ctx, token); err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	if s.cache != nil {
		s.cache.Delete(ctx, utils.TokenViewKey(token.ChainID, utils.NormalizeAddress(token.Address)))
	}
	return nil
}

// GetToken 元数据 + ICO 快照, 元数据缺失时 Token 为空
func (s *LaunchpadService) GetToken(ctx context.Context, chainID uint64, address string) (model.TokenView, error) {
	b, token, err := s.Resolve(chainID, address)
	if err != nil {
		return model.TokenView{}, err
	}
	return cache.Load(ctx, s.cache, utils.TokenViewKey(chainID, key(token)), func(ctx context.Context) (model.TokenView, error) {
		meta, err := s.tokens.GetByAddress(ctx, chainID, key(token))
		if err != nil {
			s.tl.Warn("load token metadata failed", zap.String("token", token.Hex()), zap.Error(err))
			meta = nil
		}
		return b.Stats.BuildView(ctx, token, meta), nil
	})
}

// GetStats state 读取失败时返回空快照
func (s *LaunchpadService) GetStats(ctx context.Context, chainID uint64, address string) (model.ICOStats, error) {
	b, token, err := s.Resolve(chainID, address)
	if err != nil {
		return model.ICOStats{}, err
	}
	st, err := cache.Load(ctx, s.cache, utils.ICOStatsKey(chainID, key(token)), func(ctx context.Context) (model.ICOStats, error) {
		return b.Stats.GetTokenICOStats(ctx, token)
	})
	if err != nil {
		s.tl.Warn("ico stats unavailable", zap.String("token", token.Hex()), zap.Error(err))
	}
	return st, nil
}

func (s *LaunchpadService) GetTrades(ctx context.Context, chainID uint64, address string, limit int) ([]model.Trade, error) {
	b, token, err := s.Resolve(chainID, address)
	if err != nil {
		return nil, err
	}
	return s.trades(ctx, b, token, clamp(limit, defaultTradesLimit, s.lp.MaxTradesLimit)), nil
}

func (s *LaunchpadService) trades(ctx context.Context, b *ChainBundle, token common.Address, limit int) []model.Trade {
	list, err := cache.Load(ctx, s.cache, utils.TradesKey(b.ChainID, key(token), limit), func(ctx context.Context) ([]model.Trade, error) {
		return b.Trades.GetTrades(ctx, token, limit)
	})
	if err != nil {
		s.tl.Warn("trades unavailable", zap.String("token", token.Hex()), zap.Error(err))
		return []model.Trade{}
	}
	if list == nil {
		list = []model.Trade{}
	}
	return list
}

// GetCandles 没有成交但已有抵押时返回一根当前价格的蜡烛
func (s *LaunchpadService) GetCandles(ctx context.Context, chainID uint64, address, timeframe string, limit int) ([]model.Candle, error) {
	if timeframe == "" {
		timeframe = candles.DefaultTimeframe
	}
	width, err := candles.Width(timeframe)
	if err != nil {
		return nil, err
	}
	b, token, err := s.Resolve(chainID, address)
	if err != nil {
		return nil, err
	}

	out, err := candles.Aggregate(s.trades(ctx, b, token, s.lp.MaxTradesLimit), timeframe)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return s.syntheticCandle(ctx, chainID, address, width), nil
	}

	limit = clamp(limit, defaultCandlesLimit, defaultCandlesLimit)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *LaunchpadService) syntheticCandle(ctx context.Context, chainID uint64, address string, width int64) []model.Candle {
	st, _ := s.GetStats(ctx, chainID, address)
	if !st.CollateralRaised.IsPositive() || !st.CurrentPrice.IsPositive() {
		return []model.Candle{}
	}
	price := st.CurrentPrice.InexactFloat64()
	return []model.Candle{{
		Time:  candles.BucketStart(time.Now().UnixMilli(), width),
		Open:  price,
		High:  price,
		Low:   price,
		Close: price,
	}}
}

func (s *LaunchpadService) GetHolders(ctx context.Context, chainID uint64, address string, limit int) (model.HoldersResult, error) {
	b, token, err := s.Resolve(chainID, address)
	if err != nil {
		return model.HoldersResult{}, err
	}
	limit = clamp(limit, defaultHoldersLimit, s.lp.MaxHoldersLimit)
	res, err := cache.Load(ctx, s.cache, utils.HoldersKey(chainID, key(token), limit), func(ctx context.Context) (model.HoldersResult, error) {
		return b.Holders.GetHolders(ctx, token, limit)
	})
	if err != nil {
		s.tl.Warn("holders unavailable", zap.String("token", token.Hex()), zap.Error(err))
		return model.HoldersResult{Holders: []model.Holder{}}, nil
	}
	if res.Holders == nil {
		res.Holders = []model.Holder{}
	}
	return res, nil
}

// Quote 买入 amount 为原生币预算, 卖出 amount 为 token 数量; 毕业后按交易对储备报价
func (s *LaunchpadService) Quote(ctx context.Context, chainID uint64, address, side, amount string) (model.Quote, error) {
	b, token, err := s.Resolve(chainID, address)
	if err != nil {
		return model.ZeroQuote(), err
	}
	tradeType := model.TradeType(strings.ToLower(side))
	if tradeType != model.TradeTypeBuy && tradeType != model.TradeTypeSell {
		return model.ZeroQuote(), ErrInvalidSide
	}
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || !value.IsPositive() {
		return model.ZeroQuote(), fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	state, err := b.Factory.State(ctx, token)
	if err != nil {
		s.tl.Debug("token state unavailable, quote on curve", zap.String("token", token.Hex()), zap.Error(err))
	}
	if err == nil && state == model.StateGraduated {
		reserves, err := b.Stats.PairReserves(ctx, token)
		if err != nil {
			s.tl.Warn("pair reserves unavailable", zap.String("token", token.Hex()), zap.Error(err))
			return model.ZeroQuote(), nil
		}
		return pricing.QuoteFromReserves(reserves, tradeType, value), nil
	}

	if tradeType == model.TradeTypeBuy {
		return b.Engine.QuoteBuy(ctx, token, value), nil
	}
	return b.Engine.QuoteSell(ctx, token, value), nil
}

// StreamFunc 阻塞推送直到 ctx 取消或写入失败
type StreamFunc func(ctx context.Context, transport string, em stream.Emitter) error

// OpenStream 先校验参数, 校验通过后调用方才能写响应头
func (s *LaunchpadService) OpenStream(chainID uint64, address string) (StreamFunc, error) {
	b, token, err := s.Resolve(chainID, address)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, transport string, em stream.Emitter) error {
		return b.Publisher.Serve(ctx, token, transport, em)
	}, nil
}

// DefaultChainID 请求未带 chainId 时使用第一条配置的链
func (s *LaunchpadService) DefaultChainID() uint64 {
	return s.defaultChain
}

func (s *LaunchpadService) LatestTrades(ctx context.Context, chainID uint64, address string, limit int) ([]model.Trade, error) {
	_, token, err := s.Resolve(chainID, address)
	if err != nil {
		return nil, err
	}
	if s.latest == nil {
		return []model.Trade{}, nil
	}
	list, err := s.latest.List(ctx, chainID, key(token), limit)
	if err != nil {
		s.tl.Warn("latest trades unavailable", zap.String("token", token.Hex()), zap.Error(err))
		return []model.Trade{}, nil
	}
	return list, nil
}
