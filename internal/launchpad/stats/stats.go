package stats

import (
	"context"
	"fmt"

	"web3-launchpad/internal/launchpad/chain"
	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/internal/launchpad/pricing"
	"web3-launchpad/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// USDPricer 原生币美元价格
type USDPricer interface {
	USDPrice(ctx context.Context, coinID string) (decimal.Decimal, error)
}

type Config struct {
	FundingGoal       decimal.Decimal
	InitialMint       decimal.Decimal
	DefaultStartPrice decimal.Decimal
	NativeCoinID      string
}

type Aggregator struct {
	client  *chain.Client
	factory *chain.Factory
	dex     *chain.Dex
	engine  *pricing.Engine
	usd     USDPricer
	cfg     Config
	tl      *zap.Logger
}

func NewAggregator(client *chain.Client, factory *chain.Factory, dex *chain.Dex, engine *pricing.Engine, usd USDPricer, cfg Config, tl *zap.Logger) *Aggregator {
	return &Aggregator{
		client:  client,
		factory: factory,
		dex:     dex,
		engine:  engine,
		usd:     usd,
		cfg:     cfg,
		tl:      tl,
	}
}

// GetTokenICOStats 只有 state 取不到时返回错误, 其他读取失败使用默认值
func (a *Aggregator) GetTokenICOStats(ctx context.Context, token common.Address) (model.ICOStats, error) {
	var (
		state      model.TokenState
		collateral = decimal.Zero
		unsold     = a.cfg.InitialMint
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := a.factory.State(gctx, token)
		if err != nil {
			return fmt.Errorf("token state: %w", err)
		}
		state = s
		return nil
	})
	g.Go(func() error {
		raw, err := a.factory.Collateral(gctx, token)
		if err != nil {
			a.tl.Warn("collateral unavailable", zap.String("token", token.Hex()), zap.Error(err))
			return nil
		}
		collateral = utils.AdjustDecimals(raw, chain.DefaultDecimals)
		return nil
	})
	g.Go(func() error {
		// factory 持有的即为曲线上未售出的部分
		raw, err := a.client.BalanceOf(gctx, token, a.factory.Address)
		if err != nil {
			a.tl.Warn("factory balance unavailable", zap.String("token", token.Hex()), zap.Error(err))
			return nil
		}
		unsold = utils.AdjustDecimals(raw, a.client.Decimals(gctx, token))
		return nil
	})
	if err := g.Wait(); err != nil {
		return ZeroStats(a.cfg), err
	}

	sold := decimal.Min(decimal.Max(a.cfg.InitialMint.Sub(unsold), decimal.Zero), a.cfg.InitialMint)
	return model.ICOStats{
		State:            state,
		CollateralRaised: collateral,
		FundingGoal:      a.cfg.FundingGoal,
		FundingProgress:  model.FundingProgress(collateral, a.cfg.FundingGoal),
		CurrentPrice:     a.CurrentPrice(ctx, token, state),
		TokensSold:       sold,
		TokensRemaining:  a.cfg.InitialMint.Sub(sold),
	}, nil
}

// ZeroStats 读取失败时返回的空快照
func ZeroStats(cfg Config) model.ICOStats {
	return model.ICOStats{
		State:            model.StateNotCreated,
		CollateralRaised: decimal.Zero,
		FundingGoal:      cfg.FundingGoal,
		FundingProgress:  decimal.Zero,
		CurrentPrice:     decimal.Zero,
		TokensSold:       decimal.Zero,
		TokensRemaining:  cfg.InitialMint,
	}
}

// CurrentPrice 毕业后取交易对储备价格, 否则取曲线现价, 都失败时用默认起始价
func (a *Aggregator) CurrentPrice(ctx context.Context, token common.Address, state model.TokenState) decimal.Decimal {
	if state == model.StateGraduated {
		if reserves, err := a.PairReserves(ctx, token); err == nil {
			if price := reserves.SpotPrice(); price.IsPositive() {
				return price
			}
		} else {
			a.tl.Debug("pair reserves unavailable", zap.String("token", token.Hex()), zap.Error(err))
		}
	}
	price, err := a.engine.SpotPrice(ctx, token)
	if err != nil {
		a.tl.Warn("spot price unavailable, use default start price", zap.String("token", token.Hex()), zap.Error(err))
		return a.cfg.DefaultStartPrice
	}
	return price
}

// PairReserves 交易对储备, 人类单位
func (a *Aggregator) PairReserves(ctx context.Context, token common.Address) (pricing.Reserves, error) {
	tokenRaw, baseRaw, err := a.dex.Reserves(ctx, token)
	if err != nil {
		return pricing.Reserves{}, err
	}
	return pricing.Reserves{
		Token: utils.AdjustDecimals(tokenRaw, a.client.Decimals(ctx, token)),
		Base:  utils.AdjustDecimals(baseRaw, chain.DefaultDecimals),
	}, nil
}

// BuildView 元数据 + ICO 快照 + 美元估值
func (a *Aggregator) BuildView(ctx context.Context, token common.Address, meta *model.Token) model.TokenView {
	view := model.TokenView{
		Token:          meta,
		ChainID:        a.client.ChainID(),
		Address:        token.Hex(),
		TotalSupply:    decimal.Zero,
		NativeUSDPrice: decimal.Zero,
		PriceUSD:       decimal.Zero,
		MarketCapUSD:   decimal.Zero,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := a.GetTokenICOStats(gctx, token)
		if err != nil {
			a.tl.Warn("ico stats unavailable", zap.String("token", token.Hex()), zap.Error(err))
		}
		view.Stats = s
		return nil
	})
	g.Go(func() error {
		raw, err := a.client.TotalSupply(gctx, token)
		if err != nil {
			a.tl.Warn("totalSupply unavailable", zap.String("token", token.Hex()), zap.Error(err))
			return nil
		}
		view.TotalSupply = utils.AdjustDecimals(raw, a.client.Decimals(gctx, token))
		return nil
	})
	g.Go(func() error {
		if a.usd == nil || a.cfg.NativeCoinID == "" {
			return nil
		}
		price, err := a.usd.USDPrice(gctx, a.cfg.NativeCoinID)
		if err != nil {
			a.tl.Warn("native usd price unavailable", zap.String("coin", a.cfg.NativeCoinID), zap.Error(err))
			return nil
		}
		view.NativeUSDPrice = price
		return nil
	})
	_ = g.Wait()

	view.PriceUSD = view.Stats.CurrentPrice.Mul(view.NativeUSDPrice)
	view.MarketCapUSD = view.PriceUSD.Mul(view.TotalSupply)
	return view
}
