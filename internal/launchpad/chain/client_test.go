package chain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"web3-launchpad/internal/launchpad/chain"
	"web3-launchpad/internal/launchpad/chain/chaintest"
	"web3-launchpad/internal/launchpad/model"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	token   = chaintest.Addr(0xAAAA)
	factory = chaintest.Addr(0xFAC)
)

func newClient(b *chaintest.Backend, chunk uint64) *chain.Client {
	return chain.NewClient(b, chain.Options{ChainID: 56, LogChunkBlocks: chunk}, zap.NewNop())
}

func TestGetLogsChunked(t *testing.T) {
	b := chaintest.NewBackend(56, 1000)
	for i := uint64(0); i < 10; i++ {
		b.AddLog(chaintest.TransferLog(token, factory, chaintest.Addr(int64(i+1)), big.NewInt(1), 100+i*100, chaintest.Hash(int64(i+1)), 0))
	}
	c := newClient(b, 250)

	logs, err := c.GetLogs(context.Background(), ethereum.FilterQuery{
		Addresses: []common.Address{token},
		Topics:    [][]common.Hash{{chain.TransferEventID}},
	}, 1, 1000)
	if err != nil {
		t.Fatalf("GetLogs failed: %v", err)
	}
	if len(logs) != 10 {
		t.Fatalf("got %d logs, want 10", len(logs))
	}
	if got := b.Calls("FilterLogs"); got != 4 {
		t.Errorf("FilterLogs calls = %d, want 4 chunks", got)
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].BlockNumber < logs[i-1].BlockNumber {
			t.Fatal("logs not ascending by block")
		}
	}
}

func TestGetLogsPartialFailure(t *testing.T) {
	b := chaintest.NewBackend(56, 100)
	b.AddLog(chaintest.TransferLog(token, factory, chaintest.Addr(1), big.NewInt(1), 10, chaintest.Hash(1), 0))
	b.Fail("FilterLogs", errors.New("rpc down"))
	c := newClient(b, 50)

	logs, err := c.GetLogs(context.Background(), ethereum.FilterQuery{Addresses: []common.Address{token}}, 1, 100)
	if !errors.Is(err, chain.ErrPartialLogs) {
		t.Fatalf("err = %v, want ErrPartialLogs", err)
	}
	if len(logs) != 0 {
		t.Fatalf("got %d logs, want 0", len(logs))
	}
	if got := b.Calls("FilterLogs"); got != 2 {
		t.Errorf("FilterLogs calls = %d, want every chunk attempted", got)
	}
}

func TestTypedCalls(t *testing.T) {
	b := chaintest.NewBackend(56, 100)
	b.HandleCall(factory, chain.FactoryABI, "tokens", chaintest.Returns(uint8(1)))
	b.HandleCall(factory, chain.FactoryABI, "collateral", chaintest.Returns(chaintest.Units("1.5")))
	b.HandleCall(token, chain.ERC20ABI, "totalSupply", chaintest.Returns(chaintest.Ether(1_000_000_000)))
	c := newClient(b, 0)
	ctx := context.Background()

	state, err := c.TokenState(ctx, factory, token)
	if err != nil || state != model.StateICO {
		t.Fatalf("TokenState = %v, %v", state, err)
	}
	collateral, err := c.Collateral(ctx, factory, token)
	if err != nil || collateral.Cmp(chaintest.Units("1.5")) != 0 {
		t.Fatalf("Collateral = %v, %v", collateral, err)
	}
	supply, err := c.TotalSupply(ctx, token)
	if err != nil || supply.Cmp(chaintest.Ether(1_000_000_000)) != 0 {
		t.Fatalf("TotalSupply = %v, %v", supply, err)
	}
	// decimals 未注册, 回退到 18
	if d := c.Decimals(ctx, token); d != chain.DefaultDecimals {
		t.Fatalf("Decimals = %d, want default", d)
	}
}

func TestGetTransactionRecoversSender(t *testing.T) {
	b := chaintest.NewBackend(56, 100)
	key := chaintest.NewKey(7)
	input, err := chain.FactoryABI.Pack("buy", token, chaintest.Ether(1000))
	if err != nil {
		t.Fatal(err)
	}
	tx := b.SignTx(key, 0, factory, chaintest.Units("0.25"), input)
	c := newClient(b, 0)

	detail, err := c.GetTransaction(context.Background(), tx.Hash())
	if err != nil {
		t.Fatalf("GetTransaction failed: %v", err)
	}
	if detail.From != chaintest.KeyAddress(key) {
		t.Errorf("From = %s, want %s", detail.From.Hex(), chaintest.KeyAddress(key).Hex())
	}

	call, ok := chain.DecodeBuyCall(detail.Input)
	if !ok || call.Token != token || call.Amount.Cmp(chaintest.Ether(1000)) != 0 {
		t.Fatalf("DecodeBuyCall = %+v, %v", call, ok)
	}

	sellInput, _ := chain.FactoryABI.Pack("sell", token, big.NewInt(1))
	if _, ok := chain.DecodeBuyCall(sellInput); ok {
		t.Error("sell input decoded as buy")
	}
	if _, ok := chain.DecodeBuyCall([]byte{0x01}); ok {
		t.Error("short input decoded as buy")
	}
}

func TestGetBlockCached(t *testing.T) {
	b := chaintest.NewBackend(56, 100)
	b.SetBlockTime(42, 1_700_000_123)
	c := newClient(b, 0)

	for i := 0; i < 3; i++ {
		info, err := c.GetBlock(context.Background(), 42)
		if err != nil {
			t.Fatal(err)
		}
		if info.Timestamp != 1_700_000_123_000 {
			t.Fatalf("Timestamp = %d", info.Timestamp)
		}
	}
	if got := b.Calls("HeaderByNumber"); got != 1 {
		t.Errorf("HeaderByNumber calls = %d, want 1", got)
	}
}

func TestDecodeEvents(t *testing.T) {
	l := chaintest.TransferLog(token, factory, chaintest.Addr(9), big.NewInt(12345), 1, chaintest.Hash(1), 3)
	ev, err := chain.DecodeTransfer(l)
	if err != nil {
		t.Fatal(err)
	}
	if ev.From != factory || ev.To != chaintest.Addr(9) || ev.Value.Int64() != 12345 {
		t.Fatalf("DecodeTransfer = %+v", ev)
	}

	pair := chaintest.Addr(0xBEEF)
	s := chaintest.SwapLog(pair, chaintest.Addr(1), chaintest.Addr(2), big.NewInt(0), big.NewInt(5), big.NewInt(7), big.NewInt(0), 1, chaintest.Hash(2), 0)
	swap, err := chain.DecodeSwap(s)
	if err != nil {
		t.Fatal(err)
	}
	if swap.Amount1In.Int64() != 5 || swap.Amount0Out.Int64() != 7 || swap.To != chaintest.Addr(2) {
		t.Fatalf("DecodeSwap = %+v", swap)
	}
	if _, err := chain.DecodeSwap(l); err == nil {
		t.Error("Transfer log decoded as Swap")
	}
}

func TestWindowStart(t *testing.T) {
	if got := chain.WindowStart(100, 10); got != 91 {
		t.Errorf("WindowStart(100,10) = %d", got)
	}
	if got := chain.WindowStart(5, 10); got != 0 {
		t.Errorf("WindowStart(5,10) = %d", got)
	}
}
