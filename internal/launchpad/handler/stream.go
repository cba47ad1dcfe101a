package handler

import (
	"context"
	"net/http"

	"web3-launchpad/internal/launchpad/stream"
	"web3-launchpad/pkg/logger"

	"go.uber.org/zap"
)

// Stream GET /api/tokens/{address}/stream, SSE 推送
func (h *TokenHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, err := chainID(r, h.svc.DefaultChainID())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	serve, err := h.svc.OpenStream(id, r.PathValue("address"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	em, err := stream.NewSSEEmitter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := serve(r.Context(), "sse", em); err != nil {
		logger.WithTrace(r.Context(), h.tl).Debug("sse stream ended", zap.Error(err))
	}
}

// StreamWS GET /ws/tokens/{address}, 与 SSE 相同的事件, 每条一个文本帧
func (h *TokenHandler) StreamWS(w http.ResponseWriter, r *http.Request) {
	id, err := chainID(r, h.svc.DefaultChainID())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	serve, err := h.svc.OpenStream(id, r.PathValue("address"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	conn, err := stream.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已写入错误响应
		logger.WithTrace(r.Context(), h.tl).Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	em := stream.NewWSEmitter(conn)
	defer em.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	em.Watch(ctx, cancel)

	if err := serve(ctx, "ws", em); err != nil {
		logger.WithTrace(r.Context(), h.tl).Debug("ws stream ended", zap.Error(err))
	}
}
