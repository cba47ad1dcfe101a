package job

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"web3-launchpad/internal/launchpad/dao"
	"web3-launchpad/internal/launchpad/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// StatsSource 单条链的 ICO 快照读取
type StatsSource interface {
	GetTokenICOStats(ctx context.Context, token common.Address) (model.ICOStats, error)
}

// ICOStatsSync 把链上 ICO 状态同步到 token 元数据表, 列表页直接读库
type ICOStatsSync struct {
	tokens      dao.TokenDAO
	sources     map[uint64]StatsSource
	batch       int
	concurrency int
	logger      *zap.Logger
}

func NewICOStatsSync(tokens dao.TokenDAO, sources map[uint64]StatsSource, batch, concurrency int, logger *zap.Logger) *ICOStatsSync {
	if batch <= 0 {
		batch = 200
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &ICOStatsSync{
		tokens:      tokens,
		sources:     sources,
		batch:       batch,
		concurrency: concurrency,
		logger:      logger,
	}
}

func (j *ICOStatsSync) Run(ctx context.Context) error {
	for chainID, src := range j.sources {
		if err := j.syncChain(ctx, chainID, src); err != nil {
			return fmt.Errorf("sync chain %d: %w", chainID, err)
		}
	}
	return nil
}

func (j *ICOStatsSync) syncChain(ctx context.Context, chainID uint64, src StatsSource) error {
	tokens, err := j.tokens.ListForStatsSync(ctx, chainID, j.batch)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	var updated, skipped atomic.Int64
	p := pool.New().WithMaxGoroutines(j.concurrency)
	for _, t := range tokens {
		p.Go(func() {
			stats, err := src.GetTokenICOStats(ctx, common.HexToAddress(t.Address))
			if err != nil {
				skipped.Add(1)
				j.logger.Debug("ico stats unavailable, skip", zap.String("token", t.Address), zap.Error(err))
				return
			}
			if err := j.tokens.UpdateStats(ctx, chainID, t.Address, stats, time.Now().UnixMilli()); err != nil {
				skipped.Add(1)
				j.logger.Warn("update token stats failed", zap.String("token", t.Address), zap.Error(err))
				return
			}
			updated.Add(1)
		})
	}
	p.Wait()

	j.logger.Info("ico stats synced",
		zap.Uint64("chain_id", chainID),
		zap.Int64("updated", updated.Load()),
		zap.Int64("skipped", skipped.Load()))
	return nil
}
