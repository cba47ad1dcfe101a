package consumer

import (
	"context"
	"hash/crc32"
	"strconv"
	"sync"
	"time"

	"web3-launchpad/internal/launchpad/config"
	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/internal/launchpad/monitor"
	"web3-launchpad/pkg/utils"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const maxTradeAge = 24 * time.Hour

// TradeRecorder 写入最新成交列表
type TradeRecorder interface {
	Record(ctx context.Context, chainID uint64, trade model.Trade) error
}

// TradeConsumer 消费推送服务发现的成交, 同一 token 的消息落在同一个 worker
type TradeConsumer struct {
	*Consumer
	id         string
	topic      string
	workerSize int
	buffers    []chan model.TradeMessage
	recorder   TradeRecorder
	wg         sync.WaitGroup
	logger     *zap.Logger
}

func NewTradeConsumer(conf config.Config, logger *zap.Logger, recorder TradeRecorder) *TradeConsumer {
	return newTradeConsumer(NewConsumer(conf.Kafka, logger, conf.Kafka.TopicTrade), conf.Kafka.TopicTrade, conf.Worker.WorkerNum, recorder, logger)
}

func newTradeConsumer(c *Consumer, topic string, workerSize int, recorder TradeRecorder, logger *zap.Logger) *TradeConsumer {
	if workerSize <= 0 {
		workerSize = 1
	}
	buffers := make([]chan model.TradeMessage, workerSize)
	for i := range buffers {
		buffers[i] = make(chan model.TradeMessage, 2000)
	}
	return &TradeConsumer{
		Consumer:   c,
		id:         "trade_consumer",
		topic:      topic,
		workerSize: workerSize,
		buffers:    buffers,
		recorder:   recorder,
		logger:     logger,
	}
}

func (tc *TradeConsumer) Run(ctx context.Context) {
	tc.startWorkers(ctx)
	tc.Consumer.Start(ctx, tc)
}

func (tc *TradeConsumer) startWorkers(ctx context.Context) {
	for i := 0; i < tc.workerSize; i++ {
		tc.wg.Add(1)
		go func(idx int) {
			defer tc.wg.Done()
			workerID := strconv.Itoa(idx)
			for {
				select {
				case msg, ok := <-tc.buffers[idx]:
					if !ok {
						return
					}
					startTime := time.Now()
					tc.handle(msg)
					monitor.KafkaWorkerMessagesProcessed.WithLabelValues(workerID).Inc()
					monitor.KafkaWorkerProcessDuration.WithLabelValues(workerID).Observe(time.Since(startTime).Seconds())
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}
}

func (tc *TradeConsumer) handle(msg model.TradeMessage) {
	// 较短超时, 避免阻塞消费
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := tc.recorder.Record(ctx, msg.ChainID, msg.Trade); err != nil {
		tc.logger.Warn("record latest trade failed", zap.String("id", msg.Trade.ID), zap.Error(err))
	}
}

// HandleMessage 实现 MessageHandler 接口
func (tc *TradeConsumer) HandleMessage(msg kafka.Message) {
	monitor.KafkaMessagesReceived.WithLabelValues(tc.topic).Inc()

	var trade model.TradeMessage
	if err := sonic.Unmarshal(msg.Value, &trade); err != nil {
		tc.logger.Warn("JSON Parse Error", zap.String("consumerID", tc.id), zap.Error(err), zap.String("raw", string(msg.Value)))
		return
	}
	if trade.Trade.ID == "" || !utils.IsEvmAddress(trade.Trade.TokenAddress) {
		return
	}
	// 兼容秒级时间戳
	if utils.IsUnixSeconds(trade.Trade.Timestamp) {
		trade.Trade.Timestamp *= 1000
	}
	if time.Since(time.UnixMilli(trade.Trade.Timestamp)) > maxTradeAge {
		return
	}
	tc.dispatch(trade)
}

func (tc *TradeConsumer) ID() string {
	return tc.id
}

// Stop 先停 Kafka 再关闭 buffer, 等 worker 处理完
func (tc *TradeConsumer) Stop() error {
	var err error
	if tc.Consumer != nil {
		err = tc.Consumer.Stop()
	}
	for i := range tc.buffers {
		close(tc.buffers[i])
	}
	tc.wg.Wait()
	return err
}

func (tc *TradeConsumer) dispatch(trade model.TradeMessage) {
	idx := tc.hashBy(strconv.FormatUint(trade.ChainID, 10) + ":" + utils.NormalizeAddress(trade.Trade.TokenAddress))

	select {
	case tc.buffers[idx] <- trade:
	default:
		tc.logger.Warn("buffers is full", zap.String("consumerID", tc.id), zap.Uint32("idx", idx))
	}
}

func (tc *TradeConsumer) hashBy(key string) uint32 {
	return crc32.ChecksumIEEE([]byte(key)) % uint32(tc.workerSize)
}
