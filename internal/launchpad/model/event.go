package model

import "time"

const (
	EventConnected = "connected"
	EventTrade     = "trade"
	EventStats     = "stats"
	EventError     = "error"
)

// StreamEvent 推送给客户端的一条消息
type StreamEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

func NewStreamEvent(eventType string, data interface{}) StreamEvent {
	return StreamEvent{Type: eventType, Data: data, Timestamp: time.Now().UnixMilli()}
}

func NewErrorEvent(msg string) StreamEvent {
	return StreamEvent{Type: EventError, Message: msg, Timestamp: time.Now().UnixMilli()}
}

// ConnectedPayload connected 事件内容
type ConnectedPayload struct {
	SessionID    string `json:"sessionId"`
	TokenAddress string `json:"tokenAddress"`
	ChainID      uint64 `json:"chainId"`
	FromBlock    uint64 `json:"fromBlock"`
}
