package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"web3-launchpad/internal/launchpad/model"

	"github.com/ethereum/go-ethereum/common"
)

// Factory 绑定地址的 launchpad factory 合约
type Factory struct {
	client  *Client
	Address common.Address
}

func NewFactory(client *Client, address common.Address) *Factory {
	return &Factory{client: client, Address: address}
}

func (f *Factory) State(ctx context.Context, token common.Address) (model.TokenState, error) {
	return f.client.TokenState(ctx, f.Address, token)
}

func (f *Factory) Collateral(ctx context.Context, token common.Address) (*big.Int, error) {
	return f.client.Collateral(ctx, f.Address, token)
}

// Cost bonding curve 价格函数, 对 tokenAmount 单调不减
func (f *Factory) Cost(ctx context.Context, token common.Address, tokenAmount *big.Int) (*big.Int, error) {
	return f.client.CalculateRequiredBaseCoinExp(ctx, f.Address, token, tokenAmount)
}

var ErrNoPair = errors.New("dex pair not found")

// Dex UniswapV2 风格 factory + 原生币包装合约
type Dex struct {
	client        *Client
	Factory       common.Address
	WrappedNative common.Address
}

// NewDex 未配置 dex factory 时返回 nil
func NewDex(client *Client, factory, wrapped common.Address) *Dex {
	if factory == (common.Address{}) || wrapped == (common.Address{}) {
		return nil
	}
	return &Dex{client: client, Factory: factory, WrappedNative: wrapped}
}

// Pair token/wrapped 交易对
type Pair struct {
	Address     common.Address
	TokenIsZero bool // token 是否为 token0
}

func (d *Dex) PairFor(ctx context.Context, token common.Address) (Pair, error) {
	if d == nil {
		return Pair{}, ErrNoPair
	}
	addr, err := d.client.GetPair(ctx, d.Factory, token, d.WrappedNative)
	if err != nil {
		return Pair{}, err
	}
	if addr == (common.Address{}) {
		return Pair{}, ErrNoPair
	}
	token0, err := d.client.Token0(ctx, addr)
	if err != nil {
		return Pair{}, fmt.Errorf("token0 of pair %s: %w", addr.Hex(), err)
	}
	return Pair{Address: addr, TokenIsZero: token0 == token}, nil
}

// Reserves 返回 (token 储备, 原生币储备)
func (d *Dex) Reserves(ctx context.Context, token common.Address) (tokenReserve, baseReserve *big.Int, err error) {
	pair, err := d.PairFor(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	r0, r1, err := d.client.GetReserves(ctx, pair.Address)
	if err != nil {
		return nil, nil, err
	}
	if pair.TokenIsZero {
		return r0, r1, nil
	}
	return r1, r0, nil
}
