package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"web3-launchpad/internal/launchpad/config"
	"web3-launchpad/internal/launchpad/handler"
	"web3-launchpad/internal/launchpad/middleware"

	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	tl         *zap.Logger

	// 所有请求 ctx 的根, Shutdown 时先取消, 推送循环随之退出
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewRouter 注册全部路由并套上中间件
func NewRouter(cfg config.ServerConfig, h *handler.TokenHandler, tl *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health)

	mux.HandleFunc("GET /api/tokens", h.ListTokens)
	mux.HandleFunc("POST /api/tokens", h.UpsertToken)
	mux.HandleFunc("GET /api/tokens/{address}", h.GetToken)
	mux.HandleFunc("GET /api/tokens/{address}/stats", h.GetStats)
	mux.HandleFunc("GET /api/tokens/{address}/trades", h.GetTrades)
	mux.HandleFunc("GET /api/tokens/{address}/candles", h.GetCandles)
	mux.HandleFunc("GET /api/tokens/{address}/holders", h.GetHolders)
	mux.HandleFunc("GET /api/tokens/{address}/quote", h.GetQuote)
	mux.HandleFunc("GET /api/tokens/{address}/latest-trades", h.LatestTrades)

	mux.HandleFunc("GET /api/tokens/{address}/stream", h.Stream)
	mux.HandleFunc("GET /ws/tokens/{address}", h.StreamWS)

	var root http.Handler = mux
	root = middleware.Timeout(time.Duration(cfg.RequestTimeout) * time.Second)(root)
	root = middleware.Logging(tl)(root)
	root = middleware.CORS(cfg.CORSOrigins)(root)
	return root
}

func NewServer(cfg config.ServerConfig, h *handler.TokenHandler, tl *zap.Logger) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(cfg, h, tl),
			ReadHeaderTimeout: 15 * time.Second,
			// 推送接口是长连接, 不设置 WriteTimeout
			IdleTimeout: 60 * time.Second,
			BaseContext: func(net.Listener) context.Context { return baseCtx },
		},
		tl:      tl,
		baseCtx: baseCtx,
		cancel:  cancel,
	}
}

// Start 阻塞直到出错或被 Shutdown
func (s *Server) Start() error {
	s.tl.Info("api server starting", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server listen: %w", err)
	}
	return nil
}

// Serve 使用已有的 listener, 行为同 Start
func (s *Server) Serve(l net.Listener) error {
	s.tl.Info("api server starting", zap.String("addr", l.Addr().String()))
	if err := s.httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server serve: %w", err)
	}
	return nil
}

// Shutdown 先取消请求 ctx 让推送连接结束, 再等待其余请求完成
func (s *Server) Shutdown(ctx context.Context) error {
	s.tl.Info("api server shutting down")
	s.cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}
