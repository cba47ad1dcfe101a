package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestUSDPrice(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/api/v3/simple/price" || r.URL.Query().Get("ids") != "ethereum" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ethereum":{"usd":3012.5}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	defer c.Close()

	for i := 0; i < 2; i++ {
		price, err := c.USDPrice(context.Background(), "ethereum")
		if err != nil {
			t.Fatalf("USDPrice failed: %v", err)
		}
		if price.String() != "3012.5" {
			t.Errorf("price = %s, want 3012.5", price)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("server hits = %d, want 1 (second call cached)", got)
	}
}

func TestUSDPriceMissingCoin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	if _, err := c.USDPrice(context.Background(), "binancecoin"); err == nil {
		t.Fatal("expected error for missing coin")
	}
}
