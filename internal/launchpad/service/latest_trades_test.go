package service_test

import (
	"context"
	"fmt"
	"testing"

	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/internal/launchpad/service"
	"web3-launchpad/pkg/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newLatestTrades(t *testing.T, keep int) (*service.LatestTradesService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return service.NewLatestTradesService(rdb, keep, zap.NewNop()), mr
}

func sellTrade(txHash string, value string, ts int64) model.Trade {
	return *model.NewTrade(model.TradeTypeSell, token.Hex(), "0x00000000000000000000000000000000000000b0",
		decimal.NewFromInt(100), decimal.RequireFromString(value), txHash, 10, 0, ts)
}

func TestLatestTradesRepricedTradeStaysSingle(t *testing.T) {
	svc, mr := newLatestTrades(t, 10)
	ctx := context.Background()

	// 同一笔卖出被两个推送连接以不同现价估值
	first := sellTrade("0xabc", "0.2", 1_700_000_000_000)
	again := sellTrade("0xabc", "0.21", 1_700_000_000_000)
	if first.ID != again.ID {
		t.Fatalf("ids differ: %s %s", first.ID, again.ID)
	}
	for _, tr := range []model.Trade{first, again} {
		if err := svc.Record(ctx, chainID, tr); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := svc.List(ctx, chainID, token.Hex(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d trades, want 1: %+v", len(got), got)
	}
	if got[0].ID != first.ID || !got[0].TotalValue.Equal(decimal.RequireFromString("0.21")) {
		t.Errorf("trade = %+v, want last write", got[0])
	}

	key := utils.LatestTradesKey(chainID, utils.NormalizeAddress(token.Hex()))
	members, err := mr.ZMembers(key)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0] != first.ID {
		t.Errorf("zset members = %v, want [%s]", members, first.ID)
	}
}

func TestLatestTradesTrimKeepsNewest(t *testing.T) {
	svc, mr := newLatestTrades(t, 3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		tr := sellTrade(fmt.Sprintf("0x%d", i), "0.1", 1_700_000_000_000+int64(i)*1000)
		if err := svc.Record(ctx, chainID, tr); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	got, err := svc.List(ctx, chainID, token.Hex(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"0x5", "0x4", "0x3"}
	if len(got) != len(want) {
		t.Fatalf("got %d trades, want %d", len(got), len(want))
	}
	for i, h := range want {
		if got[i].TxHash != h {
			t.Errorf("position %d tx = %s, want %s", i, got[i].TxHash, h)
		}
	}

	// 裁剪同时删除 hash 中的数据
	dataKey := utils.LatestTradesDataKey(chainID, utils.NormalizeAddress(token.Hex()))
	fields, err := mr.HKeys(dataKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 3 {
		t.Errorf("data fields = %v, want 3", fields)
	}
	if mr.TTL(dataKey) <= 0 {
		t.Error("data key has no ttl")
	}

	limited, err := svc.List(ctx, chainID, token.Hex(), 2)
	if err != nil || len(limited) != 2 || limited[0].TxHash != "0x5" {
		t.Errorf("limit=2 returned %+v, %v", limited, err)
	}
}

func TestLatestTradesEmpty(t *testing.T) {
	svc, _ := newLatestTrades(t, 5)

	got, err := svc.List(context.Background(), chainID, token.Hex(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("got %+v, want empty list", got)
	}
	if err := svc.Record(context.Background(), chainID, model.Trade{TokenAddress: token.Hex()}); err == nil {
		t.Error("want error for trade without id")
	}
}
