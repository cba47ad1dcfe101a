package model

import "github.com/shopspring/decimal"

type Holder struct {
	Address    string          `json:"address"`
	Balance    decimal.Decimal `json:"balance"`
	Percentage float64         `json:"percentage"`
	Rank       int             `json:"rank"`
}

type HoldersResult struct {
	Holders      []Holder `json:"holders"`
	TotalHolders int      `json:"totalHolders"`
}
