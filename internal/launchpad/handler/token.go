package handler

import (
	"context"
	"net/http"
	"time"

	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/internal/launchpad/service"
	"web3-launchpad/pkg/logger"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// LaunchpadService handler 依赖的服务接口
type LaunchpadService interface {
	DefaultChainID() uint64
	ListTokens(ctx context.Context, chainID uint64, limit, offset int) ([]*model.Token, error)
	UpsertToken(ctx context.Context, token *model.Token) error
	GetToken(ctx context.Context, chainID uint64, address string) (model.TokenView, error)
	GetStats(ctx context.Context, chainID uint64, address string) (model.ICOStats, error)
	GetTrades(ctx context.Context, chainID uint64, address string, limit int) ([]model.Trade, error)
	GetCandles(ctx context.Context, chainID uint64, address, timeframe string, limit int) ([]model.Candle, error)
	GetHolders(ctx context.Context, chainID uint64, address string, limit int) (model.HoldersResult, error)
	Quote(ctx context.Context, chainID uint64, address, side, amount string) (model.Quote, error)
	LatestTrades(ctx context.Context, chainID uint64, address string, limit int) ([]model.Trade, error)
	OpenStream(chainID uint64, address string) (service.StreamFunc, error)
}

type TokenHandler struct {
	svc LaunchpadService
	tl  *zap.Logger
}

func NewTokenHandler(svc LaunchpadService, tl *zap.Logger) *TokenHandler {
	return &TokenHandler{svc: svc, tl: tl}
}

func (h *TokenHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type listTokensResponse struct {
	Tokens []*model.Token `json:"tokens"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListTokens GET /api/tokens?chainId=&limit=&offset=
func (h *TokenHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	id, err := chainID(r, h.svc.DefaultChainID())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	limit, offset := queryInt(r, "limit", 20), queryInt(r, "offset", 0)
	tokens, err := h.svc.ListTokens(r.Context(), id, limit, offset)
	if err != nil {
		if !service.IsInputError(err) {
			logger.WithTrace(r.Context(), h.tl).Error("list tokens failed", zap.Error(err))
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listTokensResponse{Tokens: tokens, Limit: limit, Offset: offset})
}

// UpsertToken POST /api/tokens
func (h *TokenHandler) UpsertToken(w http.ResponseWriter, r *http.Request) {
	var token model.Token
	if err := sonic.ConfigDefault.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&token); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if token.ChainID == 0 {
		token.ChainID = h.svc.DefaultChainID()
	}
	if err := h.svc.UpsertToken(r.Context(), &token); err != nil {
		if !service.IsInputError(err) {
			logger.WithTrace(r.Context(), h.tl).Error("upsert token failed", zap.String("address", token.Address), zap.Error(err))
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &token)
}

// GetToken GET /api/tokens/{address}
func (h *TokenHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, id uint64, addr string) (any, error) {
		return h.svc.GetToken(ctx, id, addr)
	})
}

// GetStats GET /api/tokens/{address}/stats
func (h *TokenHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, id uint64, addr string) (any, error) {
		return h.svc.GetStats(ctx, id, addr)
	})
}

// GetTrades GET /api/tokens/{address}/trades?limit=
func (h *TokenHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, id uint64, addr string) (any, error) {
		return h.svc.GetTrades(ctx, id, addr, queryInt(r, "limit", 0))
	})
}

// GetCandles GET /api/tokens/{address}/candles?timeframe=&limit=
func (h *TokenHandler) GetCandles(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, id uint64, addr string) (any, error) {
		return h.svc.GetCandles(ctx, id, addr, r.URL.Query().Get("timeframe"), queryInt(r, "limit", 0))
	})
}

// GetHolders GET /api/tokens/{address}/holders?limit=
func (h *TokenHandler) GetHolders(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, id uint64, addr string) (any, error) {
		return h.svc.GetHolders(ctx, id, addr, queryInt(r, "limit", 0))
	})
}

// GetQuote GET /api/tokens/{address}/quote?side=buy|sell&amount=
func (h *TokenHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.serve(w, r, func(ctx context.Context, id uint64, addr string) (any, error) {
		return h.svc.Quote(ctx, id, addr, q.Get("side"), q.Get("amount"))
	})
}

// LatestTrades GET /api/tokens/{address}/latest-trades?limit=
func (h *TokenHandler) LatestTrades(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, id uint64, addr string) (any, error) {
		return h.svc.LatestTrades(ctx, id, addr, queryInt(r, "limit", 0))
	})
}

func (h *TokenHandler) serve(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uint64, addr string) (any, error)) {
	id, err := chainID(r, h.svc.DefaultChainID())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	addr := r.PathValue("address")
	out, err := fn(r.Context(), id, addr)
	if err != nil {
		if !service.IsInputError(err) {
			logger.WithTrace(r.Context(), h.tl).Error("request failed",
				zap.String("path", r.URL.Path), zap.String("address", addr), zap.Error(err))
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
