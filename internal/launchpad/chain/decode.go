package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TransferEvent 解析后的 ERC20 Transfer
type TransferEvent struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

func DecodeTransfer(l types.Log) (TransferEvent, error) {
	if len(l.Topics) != 3 || l.Topics[0] != TransferEventID {
		return TransferEvent{}, fmt.Errorf("log %s#%d is not a Transfer", l.TxHash.Hex(), l.Index)
	}
	var ev struct{ Value *big.Int }
	if err := ERC20ABI.UnpackIntoInterface(&ev, "Transfer", l.Data); err != nil {
		return TransferEvent{}, fmt.Errorf("unpack Transfer: %w", err)
	}
	return TransferEvent{
		From:  common.BytesToAddress(l.Topics[1].Bytes()),
		To:    common.BytesToAddress(l.Topics[2].Bytes()),
		Value: ev.Value,
	}, nil
}

// SwapEvent 解析后的 UniswapV2 Swap
type SwapEvent struct {
	Sender     common.Address
	To         common.Address
	Amount0In  *big.Int
	Amount1In  *big.Int
	Amount0Out *big.Int
	Amount1Out *big.Int
}

func DecodeSwap(l types.Log) (SwapEvent, error) {
	if len(l.Topics) != 3 || l.Topics[0] != SwapEventID {
		return SwapEvent{}, fmt.Errorf("log %s#%d is not a Swap", l.TxHash.Hex(), l.Index)
	}
	var ev struct {
		Amount0In  *big.Int
		Amount1In  *big.Int
		Amount0Out *big.Int
		Amount1Out *big.Int
	}
	if err := PairABI.UnpackIntoInterface(&ev, "Swap", l.Data); err != nil {
		return SwapEvent{}, fmt.Errorf("unpack Swap: %w", err)
	}
	return SwapEvent{
		Sender:     common.BytesToAddress(l.Topics[1].Bytes()),
		To:         common.BytesToAddress(l.Topics[2].Bytes()),
		Amount0In:  ev.Amount0In,
		Amount1In:  ev.Amount1In,
		Amount0Out: ev.Amount0Out,
		Amount1Out: ev.Amount1Out,
	}, nil
}

// BuyCall factory.buy(tokenAddress, tokenAmount) 的参数
type BuyCall struct {
	Token  common.Address
	Amount *big.Int
}

// DecodeBuyCall 非 buy 调用返回 ok=false
func DecodeBuyCall(input []byte) (BuyCall, bool) {
	if len(input) < 4 {
		return BuyCall{}, false
	}
	method, err := FactoryABI.MethodById(input[:4])
	if err != nil || method.Name != "buy" {
		return BuyCall{}, false
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil || len(args) != 2 {
		return BuyCall{}, false
	}
	token, ok := args[0].(common.Address)
	if !ok {
		return BuyCall{}, false
	}
	amount, ok := args[1].(*big.Int)
	if !ok {
		return BuyCall{}, false
	}
	return BuyCall{Token: token, Amount: amount}, true
}
