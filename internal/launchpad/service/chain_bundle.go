package service

import (
	"web3-launchpad/internal/launchpad/chain"
	"web3-launchpad/internal/launchpad/config"
	"web3-launchpad/internal/launchpad/holders"
	"web3-launchpad/internal/launchpad/pricing"
	"web3-launchpad/internal/launchpad/stats"
	"web3-launchpad/internal/launchpad/stream"
	"web3-launchpad/internal/launchpad/trades"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChainBundle 一条链上的全部读组件
type ChainBundle struct {
	ChainID   uint64
	Client    *chain.Client
	Factory   *chain.Factory
	Dex       *chain.Dex
	Engine    *pricing.Engine
	Trades    *trades.Reconstructor
	Holders   *holders.Builder
	Stats     *stats.Aggregator
	Publisher *stream.Publisher
}

func NewChainBundle(client *chain.Client, cc config.ChainConfig, lp config.LaunchpadConfig, usd stats.USDPricer, tl *zap.Logger, sinks ...stream.TradeSink) *ChainBundle {
	tl = tl.With(zap.String("chain", cc.Name))
	factory := chain.NewFactory(client, common.HexToAddress(cc.FactoryAddress))
	dex := chain.NewDex(client, common.HexToAddress(cc.DexFactoryAddress), common.HexToAddress(cc.WrappedNative))

	engine := pricing.NewEngine(factory, pricing.Config{
		Iterations:   lp.SearchIterations,
		Tolerance:    decimal.NewFromFloat(lp.SearchTolerance),
		FeeRate:      decimal.NewFromFloat(lp.FeeRate),
		SellSlippage: decimal.NewFromFloat(lp.SellSlippage),
	}, tl)
	reconstructor := trades.NewReconstructor(client, factory, dex, engine, trades.Config{
		SwapWindowBlocks: lp.SwapWindowBlocks,
		IcoWindowBlocks:  lp.IcoWindowBlocks,
		Concurrency:      lp.FetchConcurrency,
	}, tl)
	agg := stats.NewAggregator(client, factory, dex, engine, usd, stats.Config{
		FundingGoal:       decimal.NewFromFloat(cc.FundingGoal),
		InitialMint:       decimal.NewFromFloat(lp.InitialMint),
		DefaultStartPrice: decimal.NewFromFloat(lp.DefaultStartPrice),
		NativeCoinID:      cc.NativeCoinID,
	}, tl)

	publisher := stream.NewPublisher(client, reconstructor, agg, stream.Config{
		Interval: lp.StreamIntervalDuration(),
		Lookback: lp.StreamLookback,
	}, tl, sinks...)

	return &ChainBundle{
		ChainID:   cc.ChainID,
		Client:    client,
		Factory:   factory,
		Dex:       dex,
		Engine:    engine,
		Trades:    reconstructor,
		Holders:   holders.NewBuilder(client, lp.HolderWindowBlocks, tl),
		Stats:     agg,
		Publisher: publisher,
	}
}
