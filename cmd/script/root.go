package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"web3-launchpad/internal/launchpad/chain"
	"web3-launchpad/internal/launchpad/config"
	"web3-launchpad/internal/launchpad/service"
	"web3-launchpad/pkg/evm_client"
	"web3-launchpad/pkg/logger"
	"web3-launchpad/pkg/pricefeed"

	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configName string
	chainID    uint64
	tokenAddr  string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "launchpad-script",
	Short: "Run launchpad chain queries against a configured chain",
	Long: `Reads config/config.<name>.yaml, connects to the chain RPC and runs one
query (quote, trades, candles, holders, stats), printing the result as JSON.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configName, "config", "script", "config name, loads config/config.<name>.yaml")
	rootCmd.PersistentFlags().Uint64Var(&chainID, "chain", 0, "chain id, defaults to the first configured chain")
	rootCmd.PersistentFlags().StringVar(&tokenAddr, "token", "", "token address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall timeout")
	_ = rootCmd.MarkPersistentFlagRequired("token")

	rootCmd.AddCommand(quoteCmd, tradesCmd, candlesCmd, holdersCmd, statsCmd)
}

// env 单次运行需要的组件
type env struct {
	ctx    context.Context
	cancel context.CancelFunc
	bundle *service.ChainBundle
	token  common.Address
	cfg    config.Config
	tl     *zap.Logger
}

func setup() (*env, error) {
	cfg, err := config.Load(configName)
	if err != nil {
		return nil, err
	}
	tl := logger.NewLoggerWithDir("script", cfg.Log.Dir)
	logger.SetLogLevel(cfg.Log.Level)

	if len(cfg.Chains) == 0 {
		return nil, fmt.Errorf("no chains configured")
	}
	cc := cfg.Chains[0]
	if chainID != 0 {
		var ok bool
		if cc, ok = cfg.Chain(chainID); !ok {
			return nil, fmt.Errorf("%w: %d", service.ErrUnknownChain, chainID)
		}
	}
	if !common.IsHexAddress(tokenAddr) {
		return nil, fmt.Errorf("%w: %q", service.ErrInvalidAddress, tokenAddr)
	}

	ec, err := evm_client.Dial(cc.RpcUrl, 10*time.Second)
	if err != nil {
		return nil, err
	}
	client := chain.NewClient(ec, chain.Options{
		ChainID:        cc.ChainID,
		RateLimit:      cc.RpcRateLimit,
		LogChunkBlocks: cfg.Launchpad.LogChunkBlocks,
	}, tl)
	feed := pricefeed.NewClient(pricefeed.Config{
		BaseURL:   cfg.PriceFeed.BaseURL,
		APIKey:    cfg.PriceFeed.APIKey,
		RateLimit: cfg.PriceFeed.RateLimit,
		Timeout:   time.Duration(cfg.PriceFeed.Timeout) * time.Second,
	}, tl)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return &env{
		ctx:    ctx,
		cancel: cancel,
		bundle: service.NewChainBundle(client, cc, cfg.Launchpad, feed, tl),
		token:  common.HexToAddress(tokenAddr),
		cfg:    cfg,
		tl:     tl,
	}, nil
}

func printJSON(v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(data))
	return err
}
