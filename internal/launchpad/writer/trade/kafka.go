package trade

import (
	"context"
	"time"

	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/internal/launchpad/writer"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const RETRY_COUNT = 3

// MessageWriter *kafka.Writer 满足该接口
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaTradeWriter struct {
	mq    MessageWriter
	tl    *zap.Logger
	topic string
}

func NewKafkaTradeWriter(mq MessageWriter, tl *zap.Logger, topic string) writer.BatchWriter[model.TradeMessage] {
	return &KafkaTradeWriter{mq: mq, tl: tl, topic: topic}
}

func (w *KafkaTradeWriter) BWrite(ctx context.Context, trades []model.TradeMessage) error {
	if len(trades) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(trades))
	for _, t := range trades {
		msg, err := w.marshalToMsg(t)
		if err != nil {
			w.tl.Warn("marshal trade message failed", zap.String("id", t.Trade.ID), zap.Error(err))
			continue
		}
		msgs = append(msgs, msg)
	}

	newCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var err error
	for attempt := 0; attempt < RETRY_COUNT; attempt++ {
		err = w.mq.WriteMessages(newCtx, msgs...)
		if err == nil {
			break
		}
	}
	if err != nil {
		w.tl.Warn("MQ write failed, exceeded the maximum number of retries", zap.Error(err))
		return err
	}
	return nil
}

func (w *KafkaTradeWriter) Close() error {
	return nil
}

func (w *KafkaTradeWriter) marshalToMsg(t model.TradeMessage) (kafka.Message, error) {
	data, err := sonic.Marshal(t)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: w.topic,
		Key:   []byte(t.Trade.TokenAddress),
		Value: data,
	}, nil
}
