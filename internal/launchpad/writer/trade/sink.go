package trade

import (
	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/internal/launchpad/writer"
)

// Sink 把推送循环发现的成交交给异步 writer, 不阻塞
type Sink struct {
	w *writer.AsyncBatchWriter[model.TradeMessage]
}

func NewSink(w *writer.AsyncBatchWriter[model.TradeMessage]) *Sink {
	return &Sink{w: w}
}

func (s *Sink) Publish(chainID uint64, trades []model.Trade) {
	for _, t := range trades {
		s.w.Submit(model.TradeMessage{ChainID: chainID, Trade: t})
	}
}
