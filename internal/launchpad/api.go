package launchpad

import (
	"context"
	"time"

	"web3-launchpad/internal/launchpad/cache"
	"web3-launchpad/internal/launchpad/config"
	"web3-launchpad/internal/launchpad/dao"
	"web3-launchpad/internal/launchpad/handler"
	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/internal/launchpad/monitor"
	"web3-launchpad/internal/launchpad/repository"
	"web3-launchpad/internal/launchpad/server"
	"web3-launchpad/internal/launchpad/service"
	"web3-launchpad/internal/launchpad/stream"
	"web3-launchpad/internal/launchpad/writer"
	"web3-launchpad/internal/launchpad/writer/trade"

	"go.uber.org/zap"
)

// APICore HTTP 接口 + 推送 + 指标
type APICore struct {
	cfg         config.Config
	tl          *zap.Logger
	repo        repository.Repository
	server      *server.Server
	metrics     *monitor.MetricsServer
	tradeWriter *writer.AsyncBatchWriter[model.TradeMessage]
}

func NewAPI(cfg config.Config, logger *zap.Logger) *APICore {
	repo := repository.New(cfg, logger)

	if err := dao.AutoMigrate(repo.GetDB()); err != nil {
		logger.Warn("auto migrate token table failed", zap.Error(err))
	}

	core := &APICore{
		cfg:     cfg,
		tl:      logger,
		repo:    repo,
		metrics: monitor.NewMetricsServer(cfg.Monitor, logger),
	}

	// 推送发现的成交同时写入 kafka, 供 worker 维护最新成交列表
	var sinks []stream.TradeSink
	if mq := repo.GetMQ(); mq != nil {
		core.tradeWriter = writer.NewAsyncBatchWriter[model.TradeMessage](logger,
			trade.NewKafkaTradeWriter(mq, logger, cfg.Kafka.TopicTrade), 100, time.Second, "kafka_trade", 1)
		sinks = append(sinks, trade.NewSink(core.tradeWriter))
	}

	svc := service.NewLaunchpadService(
		buildBundles(cfg, repo, logger, sinks...),
		dao.NewTokenDAO(repo.GetDB(), repo.GetRDB()),
		cache.NewResponseCache(repo.GetRDB(), cfg.Launchpad.CacheTTLDuration(), logger),
		service.NewLatestTradesService(repo.GetRDB(), cfg.Worker.LatestTradesKeep, logger),
		cfg.Launchpad,
		logger,
	)
	core.server = server.NewServer(cfg.Server, handler.NewTokenHandler(svc, logger), logger)
	return core
}

// Start 阻塞直到 ctx 取消或服务退出
func (c *APICore) Start(ctx context.Context) {
	c.tl.Info("Starting api core...")
	c.metrics.Run()
	if c.tradeWriter != nil {
		c.tradeWriter.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.server.Start()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			c.tl.Error("api server stopped", zap.Error(err))
		}
	}
}

func (c *APICore) Stop(ctx context.Context) {
	c.tl.Info("Stopping api core...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.server.Shutdown(shutdownCtx); err != nil {
		c.tl.Warn("api server shutdown", zap.Error(err))
	}
	if c.tradeWriter != nil {
		c.tradeWriter.Close()
	}
	_ = c.metrics.Stop(shutdownCtx)
	if err := c.repo.Close(); err != nil {
		c.tl.Warn("close repository", zap.Error(err))
	}
	c.tl.Info("Api core stopped.")
}
