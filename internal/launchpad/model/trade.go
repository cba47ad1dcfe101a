package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type TradeType string

const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
)

// Trade 从链上日志还原的一笔买卖, 构造后不再修改
type Trade struct {
	ID            string          `json:"id"`
	Type          TradeType       `json:"type"`
	TokenAddress  string          `json:"tokenAddress"`
	WalletAddress string          `json:"walletAddress"`
	Amount        decimal.Decimal `json:"amount"`     // token 数量
	Price         decimal.Decimal `json:"price"`      // totalValue / amount, 仅供参考
	TotalValue    decimal.Decimal `json:"totalValue"` // 原生币数量
	TxHash        string          `json:"txHash"`
	BlockNumber   uint64          `json:"blockNumber"`
	LogIndex      uint            `json:"logIndex"`
	Timestamp     int64           `json:"timestamp"` // 毫秒, 来自区块时间
}

// TradeID (txHash, logIndex) 唯一, 重复扫描结果一致
func TradeID(txHash string, logIndex uint) string {
	return fmt.Sprintf("%s-%d", strings.ToLower(txHash), logIndex)
}

// NewTrade 计算 price, amount 为 0 时返回 nil
func NewTrade(tradeType TradeType, token, wallet string, amount, totalValue decimal.Decimal,
	txHash string, blockNumber uint64, logIndex uint, timestamp int64) *Trade {
	if !amount.IsPositive() {
		return nil
	}
	return &Trade{
		ID:            TradeID(txHash, logIndex),
		Type:          tradeType,
		TokenAddress:  token,
		WalletAddress: wallet,
		Amount:        amount,
		Price:         totalValue.DivRound(amount, 18),
		TotalValue:    totalValue,
		TxHash:        txHash,
		BlockNumber:   blockNumber,
		LogIndex:      logIndex,
		Timestamp:     timestamp,
	}
}

// TradeMessage kafka 中推送的成交消息
type TradeMessage struct {
	ChainID uint64 `json:"chainId"`
	Trade   Trade  `json:"trade"`
}
