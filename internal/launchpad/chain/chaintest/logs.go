package chaintest

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

var (
	transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	swapTopic     = crypto.Keccak256Hash([]byte("Swap(address,uint256,uint256,uint256,uint256,address)"))
)

func word(n *big.Int) []byte {
	return common.LeftPadBytes(n.Bytes(), 32)
}

// TransferLog ERC20 Transfer 日志
func TransferLog(token, from, to common.Address, value *big.Int, block uint64, txHash common.Hash, index uint) types.Log {
	return types.Log{
		Address:     token,
		Topics:      []common.Hash{transferTopic, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        word(value),
		BlockNumber: block,
		TxHash:      txHash,
		Index:       index,
	}
}

// SwapLog UniswapV2 Swap 日志
func SwapLog(pair, sender, to common.Address, amount0In, amount1In, amount0Out, amount1Out *big.Int, block uint64, txHash common.Hash, index uint) types.Log {
	data := make([]byte, 0, 128)
	for _, v := range []*big.Int{amount0In, amount1In, amount0Out, amount1Out} {
		data = append(data, word(v)...)
	}
	return types.Log{
		Address:     pair,
		Topics:      []common.Hash{swapTopic, common.BytesToHash(sender.Bytes()), common.BytesToHash(to.Bytes())},
		Data:        data,
		BlockNumber: block,
		TxHash:      txHash,
		Index:       index,
	}
}

// Ether n * 1e18
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// Units 小数形式的 18 位精度值, 如 Units("0.5")
func Units(s string) *big.Int {
	return decimal.RequireFromString(s).Shift(18).BigInt()
}

func Hash(n int64) common.Hash {
	return common.BigToHash(big.NewInt(n))
}

func Addr(n int64) common.Address {
	return common.BigToAddress(big.NewInt(n))
}
