package launchpad

import (
	"context"
	"strings"
	"time"

	"web3-launchpad/internal/launchpad/config"
	"web3-launchpad/internal/launchpad/consumer"
	"web3-launchpad/internal/launchpad/dao"
	"web3-launchpad/internal/launchpad/job"
	"web3-launchpad/internal/launchpad/monitor"
	"web3-launchpad/internal/launchpad/repository"
	"web3-launchpad/internal/launchpad/service"

	"go.uber.org/zap"
)

// WorkerCore 定时同步 ICO 状态 + 消费成交维护最新成交列表
type WorkerCore struct {
	cfg       config.Config
	tl        *zap.Logger
	repo      repository.Repository
	scheduler *job.Scheduler
	consumers []consumer.KafkaConsumer
	metrics   *monitor.MetricsServer
}

func NewWorker(cfg config.Config, logger *zap.Logger) *WorkerCore {
	scheduler := job.NewScheduler(logger)
	repo := repository.New(cfg, logger)

	if err := dao.AutoMigrate(repo.GetDB()); err != nil {
		logger.Warn("auto migrate token table failed", zap.Error(err))
	}

	sources := make(map[uint64]job.StatsSource)
	for _, b := range buildBundles(cfg, repo, logger) {
		sources[b.ChainID] = b.Stats
	}
	statsSync := job.NewICOStatsSync(dao.NewTokenDAO(repo.GetDB(), repo.GetRDB()), sources,
		cfg.Worker.StatsSyncBatch, cfg.Worker.WorkerNum, logger)
	interval := time.Duration(cfg.Worker.StatsSyncInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	scheduler.RegisterJob("ico_stats_sync", interval, statsSync.Run)

	var consumers []consumer.KafkaConsumer
	if strings.TrimSpace(cfg.Kafka.Brokers) != "" {
		latest := service.NewLatestTradesService(repo.GetRDB(), cfg.Worker.LatestTradesKeep, logger)
		consumers = append(consumers, consumer.NewTradeConsumer(cfg, logger, latest))
	} else {
		logger.Info("kafka brokers empty, trade consumer disabled")
	}

	return &WorkerCore{
		cfg:       cfg,
		tl:        logger,
		repo:      repo,
		scheduler: scheduler,
		consumers: consumers,
		metrics:   monitor.NewMetricsServer(cfg.Monitor, logger),
	}
}

func (c *WorkerCore) Start(ctx context.Context) {
	c.tl.Info("Starting worker core...")
	c.metrics.Run()

	for _, cons := range c.consumers {
		go cons.Run(ctx)
	}
	c.scheduler.Start(ctx)
	c.tl.Info("Worker started successfully")

	<-ctx.Done()
	c.tl.Info("Shutting down worker due to context cancellation...")
}

// Stop 优雅关闭 Core 的所有资源
func (c *WorkerCore) Stop(ctx context.Context) {
	c.tl.Info("Stopping worker core...")

	for _, cons := range c.consumers {
		if err := cons.Stop(); err != nil {
			c.tl.Warn("stop consumer", zap.String("id", cons.ID()), zap.Error(err))
		}
	}
	c.scheduler.Stop(ctx)
	_ = c.metrics.Stop(ctx)
	if err := c.repo.Close(); err != nil {
		c.tl.Warn("close repository", zap.Error(err))
	}
	c.tl.Info("Worker core stopped.")
}
