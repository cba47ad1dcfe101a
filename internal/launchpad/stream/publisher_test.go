package stream_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"web3-launchpad/internal/launchpad/chain"
	"web3-launchpad/internal/launchpad/chain/chaintest"
	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/internal/launchpad/pricing"
	"web3-launchpad/internal/launchpad/stats"
	"web3-launchpad/internal/launchpad/stream"
	"web3-launchpad/internal/launchpad/trades"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	token   = chaintest.Addr(0xAAAA)
	factory = chaintest.Addr(0xFAC)
)

type recorder struct {
	mu     sync.Mutex
	events []model.StreamEvent
	notify chan struct{}
	err    error
}

func newRecorder() *recorder {
	return &recorder{notify: make(chan struct{}, 64)}
}

func (r *recorder) Emit(ev model.StreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	select {
	case r.notify <- struct{}{}:
	default:
	}
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type sinkFunc func(chainID uint64, trades []model.Trade)

func (f sinkFunc) Publish(chainID uint64, trades []model.Trade) { f(chainID, trades) }

func setup(b *chaintest.Backend, interval time.Duration, sinks ...stream.TradeSink) *stream.Publisher {
	b.HandleCall(factory, chain.FactoryABI, "tokens", chaintest.Returns(uint8(1)))
	b.HandleCall(factory, chain.FactoryABI, "collateral", chaintest.Returns(chaintest.Ether(1)))
	b.HandleCall(factory, chain.FactoryABI, "calculateRequiredBaseCoinExp", chaintest.Returns(chaintest.Units("0.001")))

	client := chain.NewClient(b, chain.Options{ChainID: 56}, zap.NewNop())
	f := chain.NewFactory(client, factory)
	engine := pricing.NewEngine(f, pricing.DefaultConfig(), zap.NewNop())
	scanner := trades.NewReconstructor(client, f, nil, engine, trades.Config{}, zap.NewNop())
	agg := stats.NewAggregator(client, f, nil, engine, nil, stats.Config{
		FundingGoal: decimal.NewFromInt(10),
		InitialMint: decimal.NewFromInt(800_000_000),
	}, zap.NewNop())
	return stream.NewPublisher(client, scanner, agg, stream.Config{Interval: interval, Lookback: 10}, zap.NewNop(), sinks...)
}

func addTrades(b *chaintest.Backend) {
	buyer := chaintest.NewKey(1)
	tx := b.SignTx(buyer, 0, factory, chaintest.Ether(1), nil)
	b.AddLog(chaintest.TransferLog(token, factory, chaintest.KeyAddress(buyer), chaintest.Ether(1000), 95, tx.Hash(), 0))
	b.AddLog(chaintest.TransferLog(token, chaintest.Addr(0x5E11), factory, chaintest.Ether(10), 96, chaintest.Hash(77), 0))
	// lookback 之前, 不推送
	b.AddLog(chaintest.TransferLog(token, factory, chaintest.Addr(3), chaintest.Ether(5), 80, chaintest.Hash(78), 0))
}

func TestServeEventOrder(t *testing.T) {
	b := chaintest.NewBackend(56, 100)
	addTrades(b)
	var (
		sinkMu sync.Mutex
		sunk   int
	)
	p := setup(b, 10*time.Millisecond, sinkFunc(func(_ uint64, trades []model.Trade) {
		sinkMu.Lock()
		sunk += len(trades)
		sinkMu.Unlock()
	}))
	rec := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx, token, "test", rec) }()

	deadline := time.After(2 * time.Second)
	for len(rec.types()) < 4 {
		select {
		case <-rec.notify:
		case <-deadline:
			t.Fatalf("timed out, events = %v", rec.types())
		}
	}
	// 再等几个空 tick
	time.Sleep(50 * time.Millisecond)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve returned %v after cancel", err)
	}

	got := rec.types()
	want := []string{model.EventConnected, model.EventTrade, model.EventTrade, model.EventStats}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", got, want)
	}

	rec.mu.Lock()
	connected := rec.events[0].Data.(model.ConnectedPayload)
	buy := rec.events[1].Data.(model.Trade)
	sell := rec.events[2].Data.(model.Trade)
	rec.mu.Unlock()
	if connected.FromBlock != 90 || connected.SessionID == "" {
		t.Errorf("connected = %+v", connected)
	}
	if buy.Type != model.TradeTypeBuy || sell.Type != model.TradeTypeSell {
		t.Errorf("trade order = %s, %s; want buy then sell", buy.Type, sell.Type)
	}
	if !sell.TotalValue.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("sell value = %s, want amount * spot", sell.TotalValue)
	}

	sinkMu.Lock()
	defer sinkMu.Unlock()
	if sunk != 2 {
		t.Errorf("sink received %d trades, want 2", sunk)
	}
}

func TestTickErrorKeepsSession(t *testing.T) {
	b := chaintest.NewBackend(56, 100)
	p := setup(b, time.Hour)
	rec := newRecorder()
	s := stream.NewSession(token, 90)

	b.Fail("BlockNumber", errors.New("rpc unreachable"))
	if err := p.Tick(context.Background(), s, rec); err != nil {
		t.Fatalf("Tick returned %v, want nil", err)
	}
	if got := rec.types(); len(got) != 1 || got[0] != model.EventError {
		t.Fatalf("events = %v, want one error event", got)
	}
	if s.LastBlock != 90 {
		t.Errorf("checkpoint moved to %d without a block number", s.LastBlock)
	}

	b.Fail("BlockNumber", nil)
	b.Fail("FilterLogs", errors.New("logs unavailable"))
	if err := p.Tick(context.Background(), s, rec); err != nil {
		t.Fatalf("Tick returned %v", err)
	}
	// 扫描失败也推进 checkpoint
	if s.LastBlock != 100 {
		t.Errorf("checkpoint = %d, want 100", s.LastBlock)
	}
	got := rec.types()
	if got[len(got)-2] != model.EventError || got[len(got)-1] != model.EventStats {
		t.Errorf("events = %v, want error then stats", got)
	}

	// 没有新区块, 不推送
	before := len(rec.types())
	if err := p.Tick(context.Background(), s, rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.types()) != before {
		t.Errorf("noop tick emitted events")
	}
}

func TestServeStopsOnEmitFailure(t *testing.T) {
	b := chaintest.NewBackend(56, 100)
	p := setup(b, 10*time.Millisecond)
	rec := newRecorder()
	rec.err = errors.New("broken pipe")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Serve(ctx, token, "test", rec); err == nil {
		t.Fatal("Serve returned nil, want write error")
	}
}

func TestSSEEmitter(t *testing.T) {
	w := httptest.NewRecorder()
	em, err := stream.NewSSEEmitter(w)
	if err != nil {
		t.Fatal(err)
	}
	if err := em.Emit(model.NewErrorEvent("boom")); err != nil {
		t.Fatal(err)
	}

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content-type = %q", ct)
	}
	body := w.Body.String()
	if !strings.HasPrefix(body, "data: ") || !strings.HasSuffix(body, "\n\n") {
		t.Fatalf("body = %q", body)
	}
	var ev map[string]interface{}
	if err := sonic.UnmarshalString(strings.TrimSpace(strings.TrimPrefix(body, "data: ")), &ev); err != nil {
		t.Fatal(err)
	}
	if ev["type"] != "error" || ev["message"] != "boom" {
		t.Errorf("event = %v", ev)
	}
}
