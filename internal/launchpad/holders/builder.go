package holders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"web3-launchpad/internal/launchpad/chain"
	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/internal/launchpad/monitor"
	"web3-launchpad/pkg/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Builder 回放最近 window 个区块的 Transfer 得到持仓快照.
// 窗口之前建仓且窗口内没有转账的地址不可见
type Builder struct {
	client *chain.Client
	window uint64
	tl     *zap.Logger
}

func NewBuilder(client *chain.Client, window uint64, tl *zap.Logger) *Builder {
	if window == 0 {
		window = 50_000
	}
	return &Builder{client: client, window: window, tl: tl}
}

type balance struct {
	addr   common.Address
	amount *big.Int
}

func (b *Builder) GetHolders(ctx context.Context, token common.Address, limit int) (model.HoldersResult, error) {
	latest, err := b.client.GetBlockNumber(ctx)
	if err != nil {
		return model.HoldersResult{Holders: []model.Holder{}}, fmt.Errorf("get block number: %w", err)
	}

	logs, err := b.client.GetLogs(ctx, ethereum.FilterQuery{
		Addresses: []common.Address{token},
		Topics:    [][]common.Hash{{chain.TransferEventID}},
	}, chain.WindowStart(latest, b.window), latest)
	if err != nil {
		if !errors.Is(err, chain.ErrPartialLogs) {
			return model.HoldersResult{Holders: []model.Holder{}}, err
		}
		b.tl.Warn("partial transfer scan", zap.String("token", token.Hex()), zap.Error(err))
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	ledger := make(map[common.Address]*big.Int)
	for _, l := range logs {
		ev, err := chain.DecodeTransfer(l)
		if err != nil {
			monitor.ScanSkippedEvents.WithLabelValues("holders").Inc()
			continue
		}
		// 零地址是 mint/burn, 不记账
		if ev.From != (common.Address{}) {
			add(ledger, ev.From, new(big.Int).Neg(ev.Value))
		}
		if ev.To != (common.Address{}) {
			add(ledger, ev.To, ev.Value)
		}
	}

	positives := make([]balance, 0, len(ledger))
	sum := new(big.Int)
	for addr, amount := range ledger {
		if amount.Sign() > 0 {
			positives = append(positives, balance{addr: addr, amount: amount})
			sum.Add(sum, amount)
		}
	}
	sort.Slice(positives, func(i, j int) bool {
		if c := positives[i].amount.Cmp(positives[j].amount); c != 0 {
			return c > 0
		}
		return bytes.Compare(positives[i].addr.Bytes(), positives[j].addr.Bytes()) < 0
	})

	// 分母取链上 totalSupply; 失败或小于窗口内合计时用合计, 保证百分比之和不超过 100
	denominator := sum
	if supply, err := b.client.TotalSupply(ctx, token); err != nil {
		b.tl.Warn("totalSupply unavailable, use window sum", zap.String("token", token.Hex()), zap.Error(err))
	} else if supply.Cmp(sum) > 0 {
		denominator = supply
	}

	total := len(positives)
	if limit > 0 && len(positives) > limit {
		positives = positives[:limit]
	}

	decimals := b.client.Decimals(ctx, token)
	denom := decimal.NewFromBigInt(denominator, 0)
	holders := make([]model.Holder, 0, len(positives))
	for i, p := range positives {
		pct := 0.0
		if denom.IsPositive() {
			pct = decimal.NewFromBigInt(p.amount, 0).Div(denom).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		holders = append(holders, model.Holder{
			Address:    utils.ChecksumAddress(p.addr.Hex()),
			Balance:    utils.AdjustDecimals(p.amount, decimals),
			Percentage: pct,
			Rank:       i + 1,
		})
	}

	return model.HoldersResult{Holders: holders, TotalHolders: total}, nil
}

func add(ledger map[common.Address]*big.Int, addr common.Address, delta *big.Int) {
	cur, ok := ledger[addr]
	if !ok {
		cur = new(big.Int)
		ledger[addr] = cur
	}
	cur.Add(cur, delta)
}
