package repository

import (
	"web3-launchpad/internal/launchpad/chain"
	"web3-launchpad/pkg/pricefeed"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

type RedisClient = *redis.Client
type DBClient = *gorm.DB
type MQClient = *kafka.Writer

type Repository interface {
	GetRDB() RedisClient
	GetDB() DBClient
	// GetMQ brokers 未配置时为 nil
	GetMQ() MQClient
	GetChainClient(chainID uint64) (*chain.Client, bool)
	GetPriceFeed() *pricefeed.Client
	Close() error
}
