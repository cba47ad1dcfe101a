package server_test

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"web3-launchpad/internal/launchpad/candles"
	"web3-launchpad/internal/launchpad/config"
	"web3-launchpad/internal/launchpad/handler"
	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/internal/launchpad/server"
	"web3-launchpad/internal/launchpad/service"
	"web3-launchpad/internal/launchpad/stream"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const tokenAddr = "0x000000000000000000000000000000000000aaaa"

type fakeService struct {
	lastChain uint64
	lastLimit int
	upserted  *model.Token

	// 推送在 connected 之后一直阻塞到 ctx 取消
	holdStream bool
}

func (f *fakeService) DefaultChainID() uint64 { return 56 }

func (f *fakeService) check(chainID uint64, address string) error {
	f.lastChain = chainID
	if chainID != 56 {
		return service.ErrUnknownChain
	}
	if address != tokenAddr {
		return service.ErrInvalidAddress
	}
	return nil
}

func (f *fakeService) ListTokens(_ context.Context, chainID uint64, limit, offset int) ([]*model.Token, error) {
	f.lastChain, f.lastLimit = chainID, limit
	return []*model.Token{{ChainID: chainID, Address: tokenAddr, Name: "Moon", Symbol: "MOON"}}, nil
}

func (f *fakeService) UpsertToken(_ context.Context, t *model.Token) error {
	if t.Name == "" {
		return service.ErrInvalidToken
	}
	f.upserted = t
	return nil
}

func (f *fakeService) GetToken(_ context.Context, chainID uint64, address string) (model.TokenView, error) {
	return model.TokenView{ChainID: chainID, Address: address}, f.check(chainID, address)
}

func (f *fakeService) GetStats(_ context.Context, chainID uint64, address string) (model.ICOStats, error) {
	return model.ICOStats{State: model.StateICO, FundingProgress: decimal.NewFromInt(25)}, f.check(chainID, address)
}

func (f *fakeService) GetTrades(_ context.Context, chainID uint64, address string, limit int) ([]model.Trade, error) {
	f.lastLimit = limit
	return []model.Trade{}, f.check(chainID, address)
}

func (f *fakeService) GetCandles(_ context.Context, chainID uint64, address, timeframe string, limit int) ([]model.Candle, error) {
	if timeframe != "" && timeframe != "1m" {
		return nil, candles.ErrUnknownTimeframe
	}
	return []model.Candle{{Time: 60, Open: 1, High: 1, Low: 1, Close: 1, Volume: 2}}, f.check(chainID, address)
}

func (f *fakeService) GetHolders(_ context.Context, chainID uint64, address string, limit int) (model.HoldersResult, error) {
	return model.HoldersResult{Holders: []model.Holder{}}, f.check(chainID, address)
}

func (f *fakeService) Quote(_ context.Context, chainID uint64, address, side, amount string) (model.Quote, error) {
	if amount == "0" {
		return model.ZeroQuote(), service.ErrInvalidAmount
	}
	return model.Quote{OutputAmount: decimal.NewFromInt(990), Fee: decimal.RequireFromString("0.01"), PriceImpact: decimal.Zero}, f.check(chainID, address)
}

func (f *fakeService) LatestTrades(_ context.Context, chainID uint64, address string, limit int) ([]model.Trade, error) {
	return []model.Trade{}, f.check(chainID, address)
}

func (f *fakeService) OpenStream(chainID uint64, address string) (service.StreamFunc, error) {
	if err := f.check(chainID, address); err != nil {
		return nil, err
	}
	return func(ctx context.Context, transport string, em stream.Emitter) error {
		if err := em.Emit(model.NewStreamEvent(model.EventConnected, model.ConnectedPayload{TokenAddress: address, ChainID: chainID})); err != nil {
			return err
		}
		if f.holdStream {
			<-ctx.Done()
			return ctx.Err()
		}
		return em.Emit(model.NewStreamEvent(model.EventStats, map[string]string{"transport": transport}))
	}, nil
}

func newRouter(svc *fakeService) http.Handler {
	return server.NewRouter(config.ServerConfig{RequestTimeout: 5}, handler.NewTokenHandler(svc, zap.NewNop()), zap.NewNop())
}

func TestRoutesStatus(t *testing.T) {
	router := newRouter(&fakeService{})
	base := "/api/tokens/" + tokenAddr

	cases := []struct {
		method, path string
		want         int
	}{
		{"GET", "/api/health", http.StatusOK},
		{"GET", "/api/tokens", http.StatusOK},
		{"GET", "/api/tokens?chainId=abc", http.StatusBadRequest},
		{"GET", base, http.StatusOK},
		{"GET", base + "?chainId=1", http.StatusBadRequest},
		{"GET", "/api/tokens/0x1234", http.StatusBadRequest},
		{"GET", base + "/stats", http.StatusOK},
		{"GET", base + "/trades?limit=5", http.StatusOK},
		{"GET", base + "/candles?timeframe=1m", http.StatusOK},
		{"GET", base + "/candles?timeframe=7m", http.StatusBadRequest},
		{"GET", base + "/holders", http.StatusOK},
		{"GET", base + "/quote?side=buy&amount=1", http.StatusOK},
		{"GET", base + "/quote?side=buy&amount=0", http.StatusBadRequest},
		{"GET", base + "/latest-trades", http.StatusOK},
		{"DELETE", base, http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d, body %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestStatsBody(t *testing.T) {
	router := newRouter(&fakeService{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/tokens/"+tokenAddr+"/stats?chainId=56", nil))

	var body map[string]any
	if err := sonic.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["state"] != "ICO" || body["fundingProgress"] != "25" {
		t.Fatalf("body = %v", body)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content-type = %s", ct)
	}
}

func TestUpsertToken(t *testing.T) {
	svc := &fakeService{}
	router := newRouter(svc)

	rec := httptest.NewRecorder()
	body := fmt.Sprintf(`{"address":%q,"name":"Moon","symbol":"MOON","tags":["meme"]}`, tokenAddr)
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/tokens", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if svc.upserted == nil || svc.upserted.ChainID != 56 || len(svc.upserted.Tags) != 1 {
		t.Fatalf("upserted = %+v", svc.upserted)
	}

	for _, bad := range []string{`{"symbol":"X"}`, `not json`} {
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/tokens", strings.NewReader(bad)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d", bad, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	router := server.NewRouter(config.ServerConfig{CORSOrigins: []string{"https://app.example"}},
		handler.NewTokenHandler(&fakeService{}, zap.NewNop()), zap.NewNop())

	req := httptest.NewRequest("OPTIONS", "/api/tokens", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("preflight = %d %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest("GET", "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("disallowed origin got CORS header")
	}
}

func TestSSEStream(t *testing.T) {
	srv := httptest.NewServer(newRouter(&fakeService{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/tokens/" + tokenAddr + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %s", ct)
	}

	var types []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev model.StreamEvent
		if err := sonic.UnmarshalString(strings.TrimPrefix(line, "data: "), &ev); err != nil {
			t.Fatal(err)
		}
		types = append(types, ev.Type)
	}
	if len(types) != 2 || types[0] != model.EventConnected || types[1] != model.EventStats {
		t.Fatalf("events = %v", types)
	}
}

func TestShutdownEndsOpenStreams(t *testing.T) {
	s := server.NewServer(config.ServerConfig{RequestTimeout: 5},
		handler.NewTokenHandler(&fakeService{holdStream: true}, zap.NewNop()), zap.NewNop())
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	served := make(chan error, 1)
	go func() { served <- s.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/api/tokens/" + tokenAddr + "/stream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	// 读到 connected 说明推送已经在阻塞
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	start := time.Now()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Shutdown took %s with an open stream", elapsed)
	}
	if err := <-served; err != nil {
		t.Fatalf("Serve: %v", err)
	}
}

func TestSSEStreamRejectsBadAddress(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&fakeService{}).ServeHTTP(rec, httptest.NewRequest("GET", "/api/tokens/0xbad/stream", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWebSocketStream(t *testing.T) {
	srv := httptest.NewServer(newRouter(&fakeService{}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/tokens/" + tokenAddr
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	var got []model.StreamEvent
	for i := 0; i < 2; i++ {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		var ev model.StreamEvent
		if err := sonic.Unmarshal(data, &ev); err != nil {
			t.Fatal(err)
		}
		got = append(got, ev)
	}
	if got[0].Type != model.EventConnected || got[1].Type != model.EventStats {
		t.Fatalf("events = %+v", got)
	}
	if data, ok := got[1].Data.(map[string]interface{}); !ok || data["transport"] != "ws" {
		t.Fatalf("stats data = %#v", got[1].Data)
	}
}
