package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"web3-launchpad/internal/launchpad/chain"
	"web3-launchpad/internal/launchpad/config"
	"web3-launchpad/pkg/database"
	"web3-launchpad/pkg/evm_client"
	"web3-launchpad/pkg/pricefeed"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var once sync.Once
var r *repositoryImpl

func New(cfg config.Config, logger *zap.Logger) Repository {
	once.Do(func() {
		r = &repositoryImpl{
			cfg:          cfg,
			logger:       logger,
			chainClients: make(map[uint64]*chain.Client),
		}
		r.init()
	})
	return r
}

type repositoryImpl struct {
	cfg          config.Config
	logger       *zap.Logger
	db           *gorm.DB
	rdb          *redis.Client
	mq           *kafka.Writer
	ethClients   []*ethclient.Client
	chainClients map[uint64]*chain.Client
	priceFeed    *pricefeed.Client
}

func (r *repositoryImpl) init() {
	var err error
	r.db, err = database.InitPG(r.cfg.Postgres.DSN, database.Options{
		MaxIdleConns: r.cfg.Postgres.MaxIdleConns,
		MaxOpenConns: r.cfg.Postgres.MaxOpenConns,
	})
	if err != nil {
		panic(err)
	}

	r.rdb = redis.NewClient(&redis.Options{
		Addr:     r.cfg.Redis.Address,
		Password: r.cfg.Redis.Password,
		DB:       r.cfg.Redis.DB,
		PoolSize: 20,
	})
	if err := r.rdb.Ping(context.Background()).Err(); err != nil {
		r.logger.Warn("failed to connect to redis, continue", zap.Error(err))
	}

	if strings.TrimSpace(r.cfg.Kafka.Brokers) != "" {
		brokers := strings.Split(r.cfg.Kafka.Brokers, ",")
		r.mq = &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchSize:    1000,
			BatchBytes:   1024 * 1024, // 1MB
			Async:        true,
			RequiredAcks: kafka.RequireNone,
			Compression:  kafka.Snappy,
			MaxAttempts:  5,
			WriteTimeout: 500 * time.Millisecond,
		}
	} else {
		r.logger.Info("kafka brokers empty, trade publishing disabled")
	}

	for _, ch := range r.cfg.Chains {
		ec, err := evm_client.Dial(ch.RpcUrl, 5*time.Second)
		if err != nil {
			panic(err)
		}
		r.ethClients = append(r.ethClients, ec)
		r.chainClients[ch.ChainID] = chain.NewClient(ec, chain.Options{
			ChainID:        ch.ChainID,
			RateLimit:      ch.RpcRateLimit,
			LogChunkBlocks: r.cfg.Launchpad.LogChunkBlocks,
		}, r.logger)
	}

	r.priceFeed = pricefeed.NewClient(pricefeed.Config{
		BaseURL:   r.cfg.PriceFeed.BaseURL,
		APIKey:    r.cfg.PriceFeed.APIKey,
		RateLimit: r.cfg.PriceFeed.RateLimit,
		Timeout:   time.Duration(r.cfg.PriceFeed.Timeout) * time.Second,
	}, r.logger)
}

func (r *repositoryImpl) GetRDB() *redis.Client {
	return r.rdb
}

func (r *repositoryImpl) GetDB() *gorm.DB {
	return r.db
}

func (r *repositoryImpl) GetMQ() MQClient {
	return r.mq
}

func (r *repositoryImpl) GetChainClient(chainID uint64) (*chain.Client, bool) {
	c, ok := r.chainClients[chainID]
	return c, ok
}

func (r *repositoryImpl) GetPriceFeed() *pricefeed.Client {
	return r.priceFeed
}

func (r *repositoryImpl) Close() error {
	var errs []error
	if r.mq != nil {
		if err := r.mq.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.rdb.Close(); err != nil {
		errs = append(errs, err)
	}
	if sqlDB, err := r.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, ec := range r.ethClients {
		ec.Close()
	}
	if err := r.priceFeed.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
