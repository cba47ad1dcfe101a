package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"web3-launchpad/internal/launchpad"
	"web3-launchpad/internal/launchpad/config"
	"web3-launchpad/pkg/logger"
)

func main() {
	cfg := config.InitConfig("api")

	logger.InitTrace("web3-launchpad", "api")
	ctx, span := logger.StartSpan(context.Background(), "main", "main")
	defer span.End()

	rootLogger := logger.NewLoggerWithDir("api", cfg.Log.Dir)
	logger.SetLogLevel(cfg.Log.Level)
	tl := logger.WithTrace(ctx, rootLogger)

	// 配置热加载
	go config.WatchConfig("api", &cfg)

	core := launchpad.NewAPI(cfg, tl)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		tl.Info("Starting web3-launchpad api...")
		core.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	tl.Info("Received shutdown signal, starting graceful shutdown...")

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	core.Stop(stopCtx)
}
