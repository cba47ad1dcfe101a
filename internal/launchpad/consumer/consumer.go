package consumer

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"web3-launchpad/internal/launchpad/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type KafkaConsumer interface {
	Run(ctx context.Context)
	Stop() error
	ID() string
}

// MessageHandler 解耦消息处理逻辑
type MessageHandler interface {
	HandleMessage(msg kafka.Message)
}

type Consumer struct {
	logger      *zap.Logger
	kafkaReader *kafka.Reader
	limiter     *rate.Limiter
	started     atomic.Bool
	done        chan struct{}
}

func NewConsumer(conf config.KafkaConfig, logger *zap.Logger, topic string) *Consumer {
	return &Consumer{
		logger:      logger,
		kafkaReader: newKafkaReader(conf, topic),
		limiter:     rate.NewLimiter(rate.Limit(3000), 3000),
		done:        make(chan struct{}),
	}
}

func (c *Consumer) Start(ctx context.Context, handler MessageHandler) {
	c.started.Store(true)
	go func() {
		defer close(c.done)
		c.run(ctx, handler)
	}()
}

func (c *Consumer) run(ctx context.Context, handler MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Warn("closing Kafka consumer...")
			_ = c.kafkaReader.Close()
			return
		default:
		}

		if err := c.limiter.Wait(ctx); err != nil {
			continue
		}

		ctxWithTimeout, cancel := context.WithTimeout(ctx, 2*time.Second)
		msg, err := c.kafkaReader.ReadMessage(ctxWithTimeout)
		cancel()

		if err != nil {
			// reader 已关闭
			if errors.Is(err, io.EOF) {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				c.logger.Debug("Kafka running...")
			} else if !errors.Is(err, context.Canceled) {
				c.logger.Warn("Kafka Read Error", zap.Error(err))
			}
			continue
		}

		handler.HandleMessage(msg)
	}
}

// Stop 关闭 reader 并等待读循环退出
func (c *Consumer) Stop() error {
	err := c.kafkaReader.Close()
	if c.started.Load() {
		<-c.done
	}
	return err
}

func newKafkaReader(conf config.KafkaConfig, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:                strings.Split(conf.Brokers, ","),
		Topic:                  topic,
		GroupID:                conf.GroupID,
		StartOffset:            kafka.LastOffset,
		CommitInterval:         5 * time.Second,
		QueueCapacity:          2000,
		MinBytes:               1024,
		MaxBytes:               10e6,
		ReadBatchTimeout:       500 * time.Millisecond,
		PartitionWatchInterval: 5 * time.Second,
	})
}
