package service

import (
	"context"
	"errors"
	"time"

	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/pkg/utils"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const latestTradesTTL = 7 * 24 * time.Hour

var errEmptyTradeID = errors.New("trade id is empty")

// LatestTradesService 维护每个 token 的最新成交列表
//
//	key:      launchpad:latest_trades:<chain_id>:<token>       zset, member 成交 id, score 成交时间(毫秒)
//	data key: launchpad:latest_trades:<chain_id>:<token>:data  hash, field 成交 id, value Trade JSON
//
// 同一笔成交重复写入只覆盖 JSON, 不会产生新成员
type LatestTradesService struct {
	rdb  *redis.Client
	keep int
	tl   *zap.Logger
}

func NewLatestTradesService(rdb *redis.Client, keep int, tl *zap.Logger) *LatestTradesService {
	if keep <= 0 {
		keep = 50
	}
	return &LatestTradesService{rdb: rdb, keep: keep, tl: tl}
}

// Record 写入一条成交并裁剪到 keep 条
func (s *LatestTradesService) Record(ctx context.Context, chainID uint64, trade model.Trade) error {
	if trade.ID == "" {
		return errEmptyTradeID
	}
	payload, err := sonic.MarshalString(trade)
	if err != nil {
		return err
	}
	token := utils.NormalizeAddress(trade.TokenAddress)
	key := utils.LatestTradesKey(chainID, token)
	dataKey := utils.LatestTradesDataKey(chainID, token)

	if _, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, dataKey, trade.ID, payload)
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(trade.Timestamp), Member: trade.ID})
		return nil
	}); err != nil {
		return err
	}

	// 索引 0 是最旧的一条, 0..-(keep+1) 之外最多剩 keep 条
	stale, err := s.rdb.ZRange(ctx, key, 0, int64(-s.keep-1)).Result()
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(stale) > 0 {
			members := make([]interface{}, len(stale))
			for i, id := range stale {
				members[i] = id
			}
			pipe.ZRem(ctx, key, members...)
			pipe.HDel(ctx, dataKey, stale...)
		}
		pipe.Expire(ctx, key, latestTradesTTL)
		pipe.Expire(ctx, dataKey, latestTradesTTL)
		return nil
	})
	return err
}

// List 按时间倒序返回, 缺失或解析失败的成员跳过
func (s *LatestTradesService) List(ctx context.Context, chainID uint64, tokenAddress string, limit int) ([]model.Trade, error) {
	if limit <= 0 || limit > s.keep {
		limit = s.keep
	}
	token := utils.NormalizeAddress(tokenAddress)
	key := utils.LatestTradesKey(chainID, token)
	ids, err := s.rdb.ZRevRange(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Trade, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	values, err := s.rdb.HMGet(ctx, utils.LatestTradesDataKey(chainID, token), ids...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			s.tl.Debug("latest trade payload missing", zap.String("key", key), zap.String("id", ids[i]))
			continue
		}
		var t model.Trade
		if err := sonic.UnmarshalString(raw, &t); err != nil {
			s.tl.Debug("skip malformed latest trade", zap.String("key", key), zap.Error(err))
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
