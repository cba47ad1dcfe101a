package trades

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"web3-launchpad/internal/launchpad/chain"
	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/internal/launchpad/monitor"
	"web3-launchpad/pkg/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Pricer 卖出价值估算用的现价
type Pricer interface {
	SpotPrice(ctx context.Context, token common.Address) (decimal.Decimal, error)
}

type Config struct {
	SwapWindowBlocks uint64
	IcoWindowBlocks  uint64
	Concurrency      int
}

// Reconstructor 从链上日志还原买卖记录
type Reconstructor struct {
	client  *chain.Client
	factory *chain.Factory
	dex     *chain.Dex
	pricer  Pricer
	cfg     Config
	tl      *zap.Logger
}

func NewReconstructor(client *chain.Client, factory *chain.Factory, dex *chain.Dex, pricer Pricer, cfg Config, tl *zap.Logger) *Reconstructor {
	if cfg.SwapWindowBlocks == 0 {
		cfg.SwapWindowBlocks = 10_000
	}
	if cfg.IcoWindowBlocks == 0 {
		cfg.IcoWindowBlocks = 100_000
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Reconstructor{
		client:  client,
		factory: factory,
		dex:     dex,
		pricer:  pricer,
		cfg:     cfg,
		tl:      tl,
	}
}

// GetTrades 最近的成交, 按时间倒序, 最多 limit 条, 同一交易只保留一条
func (r *Reconstructor) GetTrades(ctx context.Context, token common.Address, limit int) ([]model.Trade, error) {
	latest, err := r.client.GetBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get block number: %w", err)
	}

	state, err := r.factory.State(ctx, token)
	if err != nil {
		r.tl.Warn("token state unavailable, scan as ico", zap.String("token", token.Hex()), zap.Error(err))
		state = model.StateICO
	}

	if state == model.StateGraduated {
		pair, err := r.dex.PairFor(ctx, token)
		if err == nil {
			swaps, _ := r.ScanSwaps(ctx, token, pair, chain.WindowStart(latest, r.cfg.SwapWindowBlocks), latest)
			return Finalize(swaps, limit), nil
		}
		if !errors.Is(err, chain.ErrNoPair) {
			r.tl.Warn("pair lookup failed, fall back to factory scan", zap.String("token", token.Hex()), zap.Error(err))
		}
	}

	from := chain.WindowStart(latest, r.cfg.IcoWindowBlocks)
	// 扫描错误已记录日志, 部分结果照常返回
	buys, _ := r.ScanTransfers(ctx, token, model.TradeTypeBuy, from, latest)

	seen := make(map[string]struct{}, len(buys))
	for _, t := range buys {
		seen[t.TxHash] = struct{}{}
	}
	calls, _ := r.ScanBuyCalls(ctx, token, from, latest, seen)

	return Finalize(append(buys, calls...), limit), nil
}

// Finalize 按 txHash 去重(先出现的保留), 按时间倒序稳定排序, 截断
func Finalize(trades []model.Trade, limit int) []model.Trade {
	seen := make(map[string]struct{}, len(trades))
	out := make([]model.Trade, 0, len(trades))
	for _, t := range trades {
		key := strings.ToLower(t.TxHash)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// scanLogs 区间部分失败时继续使用已取到的日志
func (r *Reconstructor) scanLogs(ctx context.Context, scanner string, q ethereum.FilterQuery, from, to uint64) ([]types.Log, error) {
	logs, err := r.client.GetLogs(ctx, q, from, to)
	if err != nil {
		if errors.Is(err, chain.ErrPartialLogs) {
			r.tl.Warn("partial log scan", zap.String("scanner", scanner), zap.Uint64("from", from), zap.Uint64("to", to), zap.Error(err))
		} else {
			r.tl.Error("log scan failed", zap.String("scanner", scanner), zap.Uint64("from", from), zap.Uint64("to", to), zap.Error(err))
		}
	}
	return logs, err
}

// enrich 并发补全详情, 结果保持 logs 顺序; fn 返回 nil 表示跳过
func (r *Reconstructor) enrich(ctx context.Context, scanner string, logs []types.Log, fn func(ctx context.Context, l types.Log) (*model.Trade, error)) []model.Trade {
	results := make([]*model.Trade, len(logs))
	p := pool.New().WithMaxGoroutines(r.cfg.Concurrency)
	for i, l := range logs {
		idx, lg := i, l
		p.Go(func() {
			trade, err := fn(ctx, lg)
			if err != nil {
				monitor.ScanSkippedEvents.WithLabelValues(scanner).Inc()
				r.tl.Debug("skip event", zap.String("scanner", scanner), zap.String("tx", lg.TxHash.Hex()), zap.Uint("index", lg.Index), zap.Error(err))
				return
			}
			results[idx] = trade
		})
	}
	p.Wait()

	out := make([]model.Trade, 0, len(logs))
	for _, t := range results {
		if t != nil {
			out = append(out, *t)
		}
	}
	return out
}

// ScanTransfers factory -> 用户 为买入, 用户 -> factory 为卖出.
// 返回的错误来自日志查询, 此时结果可能不完整
func (r *Reconstructor) ScanTransfers(ctx context.Context, token common.Address, side model.TradeType, from, to uint64) ([]model.Trade, error) {
	factoryTopic := common.BytesToHash(r.factory.Address.Bytes())
	topics := [][]common.Hash{{chain.TransferEventID}, {factoryTopic}}
	if side == model.TradeTypeSell {
		topics = [][]common.Hash{{chain.TransferEventID}, nil, {factoryTopic}}
	}
	logs, scanErr := r.scanLogs(ctx, "transfer_"+string(side), ethereum.FilterQuery{
		Addresses: []common.Address{token},
		Topics:    topics,
	}, from, to)
	if len(logs) == 0 {
		return nil, scanErr
	}

	decimals := r.client.Decimals(ctx, token)
	tokenHex := utils.ChecksumAddress(token.Hex())

	// 卖出没有原生币日志, 用现价估值; 每次扫描只取一次
	spot := decimal.Zero
	if side == model.TradeTypeSell {
		spot = r.spotPrice(ctx, token)
	}

	trades := r.enrich(ctx, "transfer_"+string(side), logs, func(ctx context.Context, l types.Log) (*model.Trade, error) {
		ev, err := chain.DecodeTransfer(l)
		if err != nil {
			return nil, err
		}
		amount := utils.AdjustDecimals(ev.Value, decimals)
		if !amount.IsPositive() {
			return nil, nil
		}
		block, err := r.client.GetBlock(ctx, l.BlockNumber)
		if err != nil {
			return nil, err
		}

		wallet := ev.To
		value := decimal.Zero
		if side == model.TradeTypeBuy {
			tx, err := r.client.GetTransaction(ctx, l.TxHash)
			if err != nil {
				return nil, err
			}
			value = utils.AdjustDecimals(tx.Value, chain.DefaultDecimals)
		} else {
			wallet = ev.From
			value = amount.Mul(spot)
		}

		return model.NewTrade(side, tokenHex, utils.ChecksumAddress(wallet.Hex()), amount, value,
			l.TxHash.Hex(), l.BlockNumber, l.Index, block.Timestamp), nil
	})
	return trades, scanErr
}

func (r *Reconstructor) spotPrice(ctx context.Context, token common.Address) decimal.Decimal {
	if r.pricer == nil {
		return decimal.Zero
	}
	spot, err := r.pricer.SpotPrice(ctx, token)
	if err != nil {
		r.tl.Warn("spot price unavailable for sell valuation", zap.String("token", token.Hex()), zap.Error(err))
		return decimal.Zero
	}
	return spot
}

// ScanBuyCalls 由 factory 发出的日志定位交易, 解码 buy(token, amount) 调用;
// 覆盖代币暂存在 factory 内未转出的买入.
//
// 不遍历区块内发往 factory 的原始交易, 买入时 factory 没有发出任何日志的交易
// 在这里找不到.
func (r *Reconstructor) ScanBuyCalls(ctx context.Context, token common.Address, from, to uint64, skip map[string]struct{}) ([]model.Trade, error) {
	logs, scanErr := r.scanLogs(ctx, "buy_call", ethereum.FilterQuery{
		Addresses: []common.Address{r.factory.Address},
	}, from, to)

	// 每笔交易只取第一条日志
	candidates := make([]types.Log, 0, len(logs))
	txSeen := make(map[common.Hash]struct{}, len(logs))
	for _, l := range logs {
		if _, ok := txSeen[l.TxHash]; ok {
			continue
		}
		txSeen[l.TxHash] = struct{}{}
		if _, ok := skip[l.TxHash.Hex()]; ok {
			continue
		}
		candidates = append(candidates, l)
	}
	if len(candidates) == 0 {
		return nil, scanErr
	}

	decimals := r.client.Decimals(ctx, token)
	tokenHex := utils.ChecksumAddress(token.Hex())
	trades := r.enrich(ctx, "buy_call", candidates, func(ctx context.Context, l types.Log) (*model.Trade, error) {
		tx, err := r.client.GetTransaction(ctx, l.TxHash)
		if err != nil {
			return nil, err
		}
		if tx.To == nil || *tx.To != r.factory.Address {
			return nil, nil
		}
		call, ok := chain.DecodeBuyCall(tx.Input)
		if !ok || call.Token != token {
			return nil, nil
		}
		block, err := r.client.GetBlock(ctx, l.BlockNumber)
		if err != nil {
			return nil, err
		}
		return model.NewTrade(model.TradeTypeBuy, tokenHex, utils.ChecksumAddress(tx.From.Hex()),
			utils.AdjustDecimals(call.Amount, decimals), utils.AdjustDecimals(tx.Value, chain.DefaultDecimals),
			l.TxHash.Hex(), l.BlockNumber, l.Index, block.Timestamp), nil
	})
	return trades, scanErr
}

// ScanSwaps 毕业后从交易对 Swap 事件还原, 钱包取交易发起人
func (r *Reconstructor) ScanSwaps(ctx context.Context, token common.Address, pair chain.Pair, from, to uint64) ([]model.Trade, error) {
	logs, scanErr := r.scanLogs(ctx, "swap", ethereum.FilterQuery{
		Addresses: []common.Address{pair.Address},
		Topics:    [][]common.Hash{{chain.SwapEventID}},
	}, from, to)
	if len(logs) == 0 {
		return nil, scanErr
	}

	decimals := r.client.Decimals(ctx, token)
	tokenHex := utils.ChecksumAddress(token.Hex())

	trades := r.enrich(ctx, "swap", logs, func(ctx context.Context, l types.Log) (*model.Trade, error) {
		ev, err := chain.DecodeSwap(l)
		if err != nil {
			return nil, err
		}
		side, tokenAmount, baseAmount := classifySwap(ev, pair.TokenIsZero)
		if side == "" {
			return nil, nil
		}
		amount := utils.AdjustDecimals(tokenAmount, decimals)
		if !amount.IsPositive() {
			return nil, nil
		}

		tx, err := r.client.GetTransaction(ctx, l.TxHash)
		if err != nil {
			return nil, err
		}
		block, err := r.client.GetBlock(ctx, l.BlockNumber)
		if err != nil {
			return nil, err
		}
		return model.NewTrade(side, tokenHex, utils.ChecksumAddress(tx.From.Hex()), amount,
			utils.AdjustDecimals(baseAmount, chain.DefaultDecimals), l.TxHash.Hex(), l.BlockNumber, l.Index, block.Timestamp), nil
	})
	return trades, scanErr
}

// classifySwap token 流出交易对为买入, 流入为卖出
func classifySwap(ev chain.SwapEvent, tokenIsZero bool) (model.TradeType, *big.Int, *big.Int) {
	tokenIn, tokenOut := ev.Amount1In, ev.Amount1Out
	baseIn, baseOut := ev.Amount0In, ev.Amount0Out
	if tokenIsZero {
		tokenIn, tokenOut = ev.Amount0In, ev.Amount0Out
		baseIn, baseOut = ev.Amount1In, ev.Amount1Out
	}

	switch {
	case tokenOut.Sign() > 0 && baseIn.Sign() > 0:
		return model.TradeTypeBuy, tokenOut, baseIn
	case tokenIn.Sign() > 0 && baseOut.Sign() > 0:
		return model.TradeTypeSell, tokenIn, baseOut
	default:
		return "", nil, nil
	}
}
