package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"web3-launchpad/internal/launchpad/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestLoadReadThrough(t *testing.T) {
	c := NewResponseCache(nil, time.Minute, zap.NewNop())
	ctx := context.Background()
	calls := 0
	fn := func(context.Context) ([]model.Holder, error) {
		calls++
		return []model.Holder{{Address: "0xabc", Balance: decimal.RequireFromString("1.5"), Percentage: 10, Rank: 1}}, nil
	}

	first, err := Load(ctx, c, "k", fn)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Load(ctx, c, "k", fn)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
	if len(second) != 1 || !second[0].Balance.Equal(first[0].Balance) || second[0].Address != "0xabc" {
		t.Fatalf("cached value = %+v", second)
	}
}

func TestLoadErrorNotCached(t *testing.T) {
	c := NewResponseCache(nil, time.Minute, zap.NewNop())
	ctx := context.Background()
	calls := 0
	fn := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("rpc down")
		}
		return 42, nil
	}

	if _, err := Load(ctx, c, "k", fn); err == nil {
		t.Fatal("want error from first load")
	}
	v, err := Load(ctx, c, "k", fn)
	if err != nil || v != 42 {
		t.Fatalf("second load = %d, %v", v, err)
	}
}

func TestDeleteAndNilCache(t *testing.T) {
	c := NewResponseCache(nil, time.Minute, zap.NewNop())
	ctx := context.Background()
	c.Set(ctx, "k", 1)
	c.Delete(ctx, "k")
	var out int
	if c.Get(ctx, "k", &out) {
		t.Fatal("deleted key still cached")
	}

	v, err := Load(ctx, nil, "k", func(context.Context) (string, error) { return "direct", nil })
	if err != nil || v != "direct" {
		t.Fatalf("nil cache load = %q, %v", v, err)
	}
}
