package stream

import (
	"errors"
	"net/http"
	"sync"

	"web3-launchpad/internal/launchpad/model"

	"github.com/bytedance/sonic"
)

var ErrStreamingUnsupported = errors.New("streaming unsupported")

// SSEEmitter text/event-stream, 每个事件一行 data: <json>
type SSEEmitter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func NewSSEEmitter(w http.ResponseWriter) (*SSEEmitter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSEEmitter{w: w, flusher: flusher}, nil
}

func (e *SSEEmitter) Emit(ev model.StreamEvent) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, '\n', '\n')
	if _, err := e.w.Write(buf); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}
