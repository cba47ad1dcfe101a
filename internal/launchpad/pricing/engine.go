package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Curve bonding curve 报价函数, 输入/输出均为链上最小单位
type Curve interface {
	Cost(ctx context.Context, token common.Address, tokenAmount *big.Int) (*big.Int, error)
}

type Config struct {
	Iterations    int
	Tolerance     decimal.Decimal // token 数量
	FeeRate       decimal.Decimal
	SellSlippage  decimal.Decimal
	TokenDecimals uint8
	BaseDecimals  uint8
}

func DefaultConfig() Config {
	return Config{
		Iterations:    50,
		Tolerance:     decimal.RequireFromString("0.001"),
		FeeRate:       decimal.RequireFromString("0.01"),
		SellSlippage:  decimal.RequireFromString("0.05"),
		TokenDecimals: 18,
		BaseDecimals:  18,
	}
}

var ErrNoPrice = errors.New("spot price unavailable")

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

type Engine struct {
	curve Curve
	cfg   Config
	tl    *zap.Logger
}

func NewEngine(curve Curve, cfg Config, tl *zap.Logger) *Engine {
	def := DefaultConfig()
	if cfg.Iterations <= 0 {
		cfg.Iterations = def.Iterations
	}
	if !cfg.Tolerance.IsPositive() {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.TokenDecimals == 0 {
		cfg.TokenDecimals = def.TokenDecimals
	}
	if cfg.BaseDecimals == 0 {
		cfg.BaseDecimals = def.BaseDecimals
	}
	return &Engine{curve: curve, cfg: cfg, tl: tl}
}

// cost 以人类单位计算 cost(amount)
func (e *Engine) cost(ctx context.Context, token common.Address, amount decimal.Decimal) (decimal.Decimal, error) {
	raw, err := e.curve.Cost(ctx, token, utils.ToBaseUnits(amount, e.cfg.TokenDecimals))
	if err != nil {
		return decimal.Zero, err
	}
	return utils.AdjustDecimals(raw, e.cfg.BaseDecimals), nil
}

// SpotPrice cost(1 token) / 1, 当前曲线位置的边际价格
func (e *Engine) SpotPrice(ctx context.Context, token common.Address) (decimal.Decimal, error) {
	price, err := e.cost(ctx, token, decimal.NewFromInt(1))
	if err != nil {
		return decimal.Zero, fmt.Errorf("spot price of %s: %w", token.Hex(), err)
	}
	if !price.IsPositive() {
		return decimal.Zero, ErrNoPrice
	}
	return price, nil
}

// TokensForBudget 二分查找 budget 能买到的最大 token 数量
// 上界取 2*budget/spot: 曲线为凸, 现价低估大额买入的成本
func (e *Engine) TokensForBudget(ctx context.Context, token common.Address, budget decimal.Decimal) (decimal.Decimal, error) {
	spot, err := e.SpotPrice(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	return e.search(ctx, token, budget, spot), nil
}

func (e *Engine) search(ctx context.Context, token common.Address, budget, spot decimal.Decimal) decimal.Decimal {
	lo := decimal.Zero
	hi := budget.Mul(two).Div(spot)

	for i := 0; i < e.cfg.Iterations; i++ {
		if hi.Sub(lo).LessThanOrEqual(e.cfg.Tolerance) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		mid := lo.Add(hi).Div(two)
		cost, err := e.cost(ctx, token, mid)
		if err != nil {
			// 探测失败视为买不起, 收缩上界
			e.tl.Debug("cost lookup failed", zap.String("token", token.Hex()), zap.String("amount", mid.String()), zap.Error(err))
			hi = mid
			continue
		}
		if cost.LessThanOrEqual(budget) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// QuoteBuy 用 budget 个原生币买入. 任何 rpc 失败返回零报价
func (e *Engine) QuoteBuy(ctx context.Context, token common.Address, budget decimal.Decimal) model.Quote {
	if !budget.IsPositive() {
		return model.ZeroQuote()
	}
	spot, err := e.SpotPrice(ctx, token)
	if err != nil {
		e.tl.Warn("buy quote unavailable", zap.String("token", token.Hex()), zap.Error(err))
		return model.ZeroQuote()
	}

	output := e.search(ctx, token, budget, spot)
	if !output.IsPositive() {
		return model.ZeroQuote()
	}

	effective := budget.Div(output)
	impact := decimal.Max(decimal.Zero, effective.Sub(spot).Div(spot).Mul(hundred))
	return model.Quote{
		PriceImpact:  impact,
		OutputAmount: output,
		Fee:          budget.Mul(e.cfg.FeeRate),
	}
}

// QuoteSell 线性估算: spot * amount * (1 - slippage), 不是曲线反解
func (e *Engine) QuoteSell(ctx context.Context, token common.Address, amount decimal.Decimal) model.Quote {
	if !amount.IsPositive() {
		return model.ZeroQuote()
	}
	spot, err := e.SpotPrice(ctx, token)
	if err != nil {
		e.tl.Warn("sell quote unavailable", zap.String("token", token.Hex()), zap.Error(err))
		return model.ZeroQuote()
	}

	gross := amount.Mul(spot)
	return model.Quote{
		PriceImpact:  e.cfg.SellSlippage.Mul(hundred),
		OutputAmount: gross.Mul(decimal.NewFromInt(1).Sub(e.cfg.SellSlippage)),
		Fee:          gross.Mul(e.cfg.FeeRate),
		Approximate:  true,
	}
}
