package cache

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	LOCAL_CLEANUP_INTERVAL = time.Minute
	DEFAULT_TTL            = 5 * time.Second
)

// ResponseCache 接口响应缓存: 本地 go-cache + Redis, rds 为 nil 时只用本地
type ResponseCache struct {
	localCache *cache.Cache
	redis      *redis.Client
	ttl        time.Duration
	tl         *zap.Logger
}

func NewResponseCache(rds *redis.Client, ttl time.Duration, tl *zap.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = DEFAULT_TTL
	}
	return &ResponseCache{
		localCache: cache.New(ttl, LOCAL_CLEANUP_INTERVAL),
		redis:      rds,
		ttl:        ttl,
		tl:         tl,
	}
}

// Get 命中时把缓存内容解到 out
func (c *ResponseCache) Get(ctx context.Context, key string, out interface{}) bool {
	if raw, found := c.localCache.Get(key); found {
		return sonic.Unmarshal(raw.([]byte), out) == nil
	}
	if c.redis == nil {
		return false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.tl.Debug("redis get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return false
	}
	c.localCache.Set(key, data, cache.DefaultExpiration)
	return true
}

func (c *ResponseCache) Set(ctx context.Context, key string, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		c.tl.Warn("marshal cache value failed", zap.String("key", key), zap.Error(err))
		return
	}
	c.localCache.Set(key, data, cache.DefaultExpiration)
	if c.redis != nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.tl.Debug("redis set failed", zap.String("key", key), zap.Error(err))
		}
	}
}

func (c *ResponseCache) Delete(ctx context.Context, key string) {
	c.localCache.Delete(key)
	if c.redis != nil {
		c.redis.Del(ctx, key)
	}
}

// Load 读穿缓存, fn 出错时不写缓存
func Load[T any](ctx context.Context, c *ResponseCache, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if c != nil && c.Get(ctx, key, &cached) {
		return cached, nil
	}
	v, err := fn(ctx)
	if err != nil {
		return v, err
	}
	if c != nil {
		c.Set(ctx, key, v)
	}
	return v, nil
}
