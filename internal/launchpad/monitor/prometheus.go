package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	// RpcCalls 链上 rpc 调用
	RpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_rpc_calls_total",
			Help: "Total number of chain rpc calls.",
		},
		[]string{"chain_id", "method", "status"},
	)
	RpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchpad_rpc_duration_seconds",
			Help:    "Latency of chain rpc calls.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"chain_id", "method"},
	)
	ScanSkippedEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_scan_skipped_events_total",
			Help: "Events skipped during reconstruction because detail could not be fetched.",
		},
		[]string{"scanner"},
	)

	// StreamSessions 推送连接
	StreamSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "launchpad_stream_sessions",
			Help: "Number of open live trade stream sessions.",
		},
		[]string{"transport"},
	)
	StreamTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_stream_ticks_total",
			Help: "Poll ticks executed by stream sessions.",
		},
		[]string{"result"},
	)
	StreamEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_stream_events_total",
			Help: "Events pushed to stream clients.",
		},
		[]string{"type"},
	)

	// KafkaMessagesReceived Kafka 消费相关
	KafkaMessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_received_total",
			Help: "Total number of messages received from Kafka.",
		},
		[]string{"topic"},
	)
	KafkaWorkerMessagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_worker_messages_processed_total",
			Help: "Total number of messages processed by each consumer worker.",
		},
		[]string{"worker_id"},
	)
	KafkaWorkerProcessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_worker_process_duration_seconds",
			Help:    "Time taken to process a message by each consumer worker.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"worker_id"},
	)

	// AsyncWriterMessagesDropped AsyncWriter 指标
	AsyncWriterMessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_messages_dropped_total",
			Help: "Total number of messages dropped due to full queue.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "async_writer_batch_size",
			Help:    "Number of items in each batch submitted to the writer.",
			Buckets: []float64{1, 10, 50, 100, 200, 500},
		},
		[]string{"writer_id"},
	)
	AsyncWriterFlushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "async_writer_flush_duration_seconds",
			Help:    "Time taken to flush a batch.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"writer_id"},
	)
	AsyncWriterFlushErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_flush_errors_total",
			Help: "Total number of failed batch flushes.",
		},
		[]string{"writer_id"},
	)

	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_job_runs_total",
			Help: "Scheduled job executions.",
		},
		[]string{"job", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		RpcCalls,
		RpcDuration,
		ScanSkippedEvents,

		StreamSessions,
		StreamTicks,
		StreamEvents,

		// kafka指标
		KafkaMessagesReceived,
		KafkaWorkerMessagesProcessed,
		KafkaWorkerProcessDuration,

		// async 写入指标
		AsyncWriterMessagesDropped,
		AsyncWriterBatchSize,
		AsyncWriterFlushDuration,
		AsyncWriterFlushErrors,

		JobRuns,
	)
}
