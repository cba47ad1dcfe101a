package chain

import (
	"context"
	"fmt"
	"math/big"

	"web3-launchpad/internal/launchpad/model"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const DefaultDecimals uint8 = 18

// Decimals 读取失败时返回 18
func (c *Client) Decimals(ctx context.Context, token common.Address) uint8 {
	values, err := c.Call(ctx, token, ERC20ABI, "decimals")
	if err != nil {
		c.tl.Warn("decimals call failed, use default", zap.String("token", token.Hex()), zap.Error(err))
		return DefaultDecimals
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return DefaultDecimals
	}
	return decimals
}

func (c *Client) TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	values, err := c.Call(ctx, token, ERC20ABI, "totalSupply")
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func (c *Client) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	values, err := c.Call(ctx, token, ERC20ABI, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// TokenState factory.tokens(token): 0 未创建 1 ICO 2 已毕业
func (c *Client) TokenState(ctx context.Context, factory, token common.Address) (model.TokenState, error) {
	values, err := c.Call(ctx, factory, FactoryABI, "tokens", token)
	if err != nil {
		return model.StateNotCreated, err
	}
	state, ok := values[0].(uint8)
	if !ok {
		return model.StateNotCreated, fmt.Errorf("unexpected tokens() result %T", values[0])
	}
	if state > uint8(model.StateGraduated) {
		return model.StateNotCreated, fmt.Errorf("unknown token state %d", state)
	}
	return model.TokenState(state), nil
}

func (c *Client) Collateral(ctx context.Context, factory, token common.Address) (*big.Int, error) {
	values, err := c.Call(ctx, factory, FactoryABI, "collateral", token)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// CalculateRequiredBaseCoinExp 买入 tokenAmount(最小单位) 需要的原生币(wei)
func (c *Client) CalculateRequiredBaseCoinExp(ctx context.Context, factory, token common.Address, tokenAmount *big.Int) (*big.Int, error) {
	values, err := c.Call(ctx, factory, FactoryABI, "calculateRequiredBaseCoinExp", token, tokenAmount)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// GetPair 未创建时返回零地址
func (c *Client) GetPair(ctx context.Context, dexFactory, tokenA, tokenB common.Address) (common.Address, error) {
	values, err := c.Call(ctx, dexFactory, DexFactoryABI, "getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, err
	}
	pair, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected getPair() result %T", values[0])
	}
	return pair, nil
}

func (c *Client) Token0(ctx context.Context, pair common.Address) (common.Address, error) {
	values, err := c.Call(ctx, pair, PairABI, "token0")
	if err != nil {
		return common.Address{}, err
	}
	token0, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unexpected token0() result %T", values[0])
	}
	return token0, nil
}

func (c *Client) GetReserves(ctx context.Context, pair common.Address) (reserve0, reserve1 *big.Int, err error) {
	values, err := c.Call(ctx, pair, PairABI, "getReserves")
	if err != nil {
		return nil, nil, err
	}
	if len(values) < 2 {
		return nil, nil, fmt.Errorf("unexpected getReserves() result length %d", len(values))
	}
	if reserve0, err = asBigInt(values[0]); err != nil {
		return nil, nil, err
	}
	if reserve1, err = asBigInt(values[1]); err != nil {
		return nil, nil, err
	}
	return reserve0, reserve1, nil
}

func asBigInt(v interface{}) (*big.Int, error) {
	n, ok := v.(*big.Int)
	if !ok || n == nil {
		return nil, fmt.Errorf("unexpected numeric result %T", v)
	}
	return n, nil
}
