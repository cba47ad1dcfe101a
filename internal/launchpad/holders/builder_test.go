package holders_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"web3-launchpad/internal/launchpad/chain"
	"web3-launchpad/internal/launchpad/chain/chaintest"
	"web3-launchpad/internal/launchpad/holders"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	token   = chaintest.Addr(0xAAAA)
	factory = chaintest.Addr(0xFAC)
)

func newBuilder(b *chaintest.Backend) *holders.Builder {
	client := chain.NewClient(b, chain.Options{ChainID: 56}, zap.NewNop())
	return holders.NewBuilder(client, 50_000, zap.NewNop())
}

func TestGetHoldersThreeBuys(t *testing.T) {
	b := chaintest.NewBackend(56, 100_000)
	b.HandleCall(token, chain.ERC20ABI, "totalSupply", chaintest.Returns(chaintest.Ether(1_000)))
	w1, w2, w3 := chaintest.Addr(1), chaintest.Addr(2), chaintest.Addr(3)
	b.AddLog(chaintest.TransferLog(token, factory, w3, chaintest.Ether(25), 90_000, chaintest.Hash(1), 0))
	b.AddLog(chaintest.TransferLog(token, factory, w1, chaintest.Ether(100), 90_000, chaintest.Hash(1), 1))
	b.AddLog(chaintest.TransferLog(token, factory, w2, chaintest.Ether(50), 90_000, chaintest.Hash(1), 2))

	res, err := newBuilder(b).GetHolders(context.Background(), token, 10)
	if err != nil {
		t.Fatalf("GetHolders: %v", err)
	}
	if res.TotalHolders != 3 || len(res.Holders) != 3 {
		t.Fatalf("result = %+v, want 3 holders", res)
	}
	// factory 转出后为负, 不计入
	want := []struct {
		addr common.Address
		bal  int64
		pct  float64
	}{{w1, 100, 10}, {w2, 50, 5}, {w3, 25, 2.5}}
	for i, w := range want {
		h := res.Holders[i]
		if h.Address != w.addr.Hex() || !h.Balance.Equal(decimal.NewFromInt(w.bal)) || h.Rank != i+1 || h.Percentage != w.pct {
			t.Errorf("holder %d = %+v, want %s %d %.1f%%", i, h, w.addr.Hex(), w.bal, w.pct)
		}
	}
}

func TestGetHoldersReplay(t *testing.T) {
	b := chaintest.NewBackend(56, 100_000)
	zero := common.Address{}
	a, c, d := chaintest.Addr(0xA), chaintest.Addr(0xC), chaintest.Addr(0xD)

	b.AddLog(chaintest.TransferLog(token, zero, a, chaintest.Ether(100), 60_000, chaintest.Hash(1), 0))
	b.AddLog(chaintest.TransferLog(token, a, c, chaintest.Ether(40), 60_001, chaintest.Hash(2), 0))
	b.AddLog(chaintest.TransferLog(token, a, d, chaintest.Ether(20), 60_002, chaintest.Hash(3), 0))
	b.AddLog(chaintest.TransferLog(token, d, zero, chaintest.Ether(20), 60_003, chaintest.Hash(4), 0))
	// 窗口之外
	b.AddLog(chaintest.TransferLog(token, zero, d, chaintest.Ether(999), 10, chaintest.Hash(5), 0))
	// totalSupply 不可用, 用窗口合计
	b.Fail("CallContract", errors.New("rpc down"))

	res, err := newBuilder(b).GetHolders(context.Background(), token, 1)
	if err != nil {
		t.Fatalf("GetHolders: %v", err)
	}
	if res.TotalHolders != 2 {
		t.Fatalf("totalHolders = %d, want 2 (d burned to zero)", res.TotalHolders)
	}
	if len(res.Holders) != 1 {
		t.Fatalf("limit not applied: %d holders", len(res.Holders))
	}
	top := res.Holders[0]
	// a 与 c 同为 40, 按地址排序
	if top.Address != a.Hex() || !top.Balance.Equal(decimal.NewFromInt(40)) {
		t.Errorf("top holder = %+v, want a with 40", top)
	}
	if top.Percentage != 50 {
		t.Errorf("percentage = %v, want 50", top.Percentage)
	}
}

func TestGetHoldersPercentageBound(t *testing.T) {
	b := chaintest.NewBackend(56, 100_000)
	// 链上 supply 比窗口合计小
	b.HandleCall(token, chain.ERC20ABI, "totalSupply", chaintest.Returns(big.NewInt(10)))
	for i := int64(1); i <= 20; i++ {
		b.AddLog(chaintest.TransferLog(token, common.Address{}, chaintest.Addr(i), big.NewInt(i), 99_000, chaintest.Hash(i), uint(i)))
	}

	res, err := newBuilder(b).GetHolders(context.Background(), token, 0)
	if err != nil {
		t.Fatalf("GetHolders: %v", err)
	}
	var sum float64
	for i, h := range res.Holders {
		sum += h.Percentage
		if h.Rank != i+1 {
			t.Errorf("rank %d at position %d", h.Rank, i)
		}
		if i > 0 && h.Balance.GreaterThan(res.Holders[i-1].Balance) {
			t.Errorf("not sorted by balance at %d", i)
		}
	}
	if sum > 100+1e-9 {
		t.Errorf("percentage sum = %v, want <= 100", sum)
	}
}

func TestGetHoldersEmpty(t *testing.T) {
	b := chaintest.NewBackend(56, 100)
	res, err := newBuilder(b).GetHolders(context.Background(), token, 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalHolders != 0 || res.Holders == nil || len(res.Holders) != 0 {
		t.Fatalf("result = %+v, want empty", res)
	}
}
