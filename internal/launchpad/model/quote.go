package model

import "github.com/shopspring/decimal"

// Quote OutputAmount 为 0 表示报价不可用
type Quote struct {
	PriceImpact  decimal.Decimal `json:"priceImpact"`
	OutputAmount decimal.Decimal `json:"outputAmount"`
	Fee          decimal.Decimal `json:"fee"`
	// Approximate 卖出报价为线性估算, 不是曲线反解
	Approximate bool `json:"approximate,omitempty"`
}

func ZeroQuote() Quote {
	return Quote{PriceImpact: decimal.Zero, OutputAmount: decimal.Zero, Fee: decimal.Zero}
}

func (q Quote) Available() bool {
	return q.OutputAmount.IsPositive()
}
