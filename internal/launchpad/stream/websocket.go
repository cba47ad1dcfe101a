package stream

import (
	"context"
	"net/http"
	"sync"
	"time"

	"web3-launchpad/internal/launchpad/model"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSEmitter 每个事件一条文本消息
type WSEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWSEmitter(conn *websocket.Conn) *WSEmitter {
	return &WSEmitter{conn: conn}
}

func (e *WSEmitter) Emit(ev model.StreamEvent) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	return e.write(websocket.TextMessage, data)
}

func (e *WSEmitter) write(messageType int, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return e.conn.WriteMessage(messageType, data)
}

// Watch 读循环 + 心跳; 对端关闭或读失败时调用 cancel.
// 推送是单向的, 客户端消息直接丢弃
func (e *WSEmitter) Watch(ctx context.Context, cancel context.CancelFunc) {
	e.conn.SetReadLimit(512)
	_ = e.conn.SetReadDeadline(time.Now().Add(pongWait))
	e.conn.SetPongHandler(func(string) error {
		return e.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer cancel()
		for {
			if _, _, err := e.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.write(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			}
		}
	}()
}

// Close 发送 close 帧后关闭连接
func (e *WSEmitter) Close() error {
	_ = e.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return e.conn.Close()
}
