package main

import (
	"fmt"
	"strings"

	"web3-launchpad/internal/launchpad/candles"
	"web3-launchpad/internal/launchpad/model"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	side         string
	amount       string
	tradesLimit  int
	holdersLimit int
	timeframe    string
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Quote a bonding-curve buy or sell",
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := decimal.NewFromString(amount)
		if err != nil || !value.IsPositive() {
			return fmt.Errorf("amount must be a positive number: %q", amount)
		}
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.cancel()

		switch model.TradeType(strings.ToLower(side)) {
		case model.TradeTypeBuy:
			return printJSON(e.bundle.Engine.QuoteBuy(e.ctx, e.token, value))
		case model.TradeTypeSell:
			return printJSON(e.bundle.Engine.QuoteSell(e.ctx, e.token, value))
		default:
			return fmt.Errorf("side must be buy or sell: %q", side)
		}
	},
}

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "Reconstruct recent trades from chain logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.cancel()

		trades, err := e.bundle.Trades.GetTrades(e.ctx, e.token, tradesLimit)
		if err != nil {
			return err
		}
		return printJSON(trades)
	},
}

var candlesCmd = &cobra.Command{
	Use:   "candles",
	Short: "Aggregate recent trades into OHLCV candles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := candles.Width(timeframe); err != nil {
			return fmt.Errorf("%w: %q", err, timeframe)
		}
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.cancel()

		trades, err := e.bundle.Trades.GetTrades(e.ctx, e.token, e.cfg.Launchpad.MaxTradesLimit)
		if err != nil {
			return err
		}
		out, err := candles.Aggregate(trades, timeframe)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var holdersCmd = &cobra.Command{
	Use:   "holders",
	Short: "Rebuild the holder ledger from Transfer logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.cancel()

		res, err := e.bundle.Holders.GetHolders(e.ctx, e.token, holdersLimit)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show ICO stats and the token view",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.cancel()

		return printJSON(e.bundle.Stats.BuildView(e.ctx, e.token, nil))
	},
}

func init() {
	quoteCmd.Flags().StringVar(&side, "side", "buy", "buy or sell")
	quoteCmd.Flags().StringVar(&amount, "amount", "", "native budget for buy, token amount for sell")
	_ = quoteCmd.MarkFlagRequired("amount")

	tradesCmd.Flags().IntVar(&tradesLimit, "limit", 50, "max trades")
	holdersCmd.Flags().IntVar(&holdersLimit, "limit", 20, "max holders")
	candlesCmd.Flags().StringVar(&timeframe, "timeframe", candles.DefaultTimeframe, "1m, 5m, 15m, 1h, 4h or 1d")
}
