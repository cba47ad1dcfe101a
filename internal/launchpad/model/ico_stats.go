package model

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// TokenState 来自 factory 合约 tokens(address), 只会单向前进
type TokenState uint8

const (
	StateNotCreated TokenState = 0
	StateICO        TokenState = 1
	StateGraduated  TokenState = 2
)

func (s TokenState) String() string {
	switch s {
	case StateNotCreated:
		return "NOT_CREATED"
	case StateICO:
		return "ICO"
	case StateGraduated:
		return "GRADUATED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

func (s TokenState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *TokenState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	switch str {
	case "NOT_CREATED":
		*s = StateNotCreated
	case "ICO":
		*s = StateICO
	case "GRADUATED":
		*s = StateGraduated
	default:
		return fmt.Errorf("unknown token state %q", str)
	}
	return nil
}

// ICOStats bonding curve 状态快照
type ICOStats struct {
	State            TokenState      `json:"state"`
	CollateralRaised decimal.Decimal `json:"collateralRaised"`
	FundingGoal      decimal.Decimal `json:"fundingGoal"`
	FundingProgress  decimal.Decimal `json:"fundingProgress"` // 0~100
	CurrentPrice     decimal.Decimal `json:"currentPrice"`
	TokensSold       decimal.Decimal `json:"tokensSold"`
	TokensRemaining  decimal.Decimal `json:"tokensRemaining"`
}

// FundingProgress min(raised/goal*100, 100)
func FundingProgress(raised, goal decimal.Decimal) decimal.Decimal {
	if !goal.IsPositive() || !raised.IsPositive() {
		return decimal.Zero
	}
	progress := raised.Div(goal).Mul(decimal.NewFromInt(100))
	return decimal.Min(progress, decimal.NewFromInt(100))
}
