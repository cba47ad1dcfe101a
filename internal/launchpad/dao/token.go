package dao

import (
	"context"

	"web3-launchpad/internal/launchpad/model"
)

// TokenDAO token 元数据访问接口
type TokenDAO interface {
	// GetByAddress 不存在时返回 nil, nil
	GetByAddress(ctx context.Context, chainID uint64, tokenAddress string) (*model.Token, error)

	// List 按创建时间倒序
	List(ctx context.Context, chainID uint64, limit, offset int) ([]*model.Token, error)

	// Upsert 按 (chain_id, address) 写入元数据, 不覆盖 worker 同步的状态列
	Upsert(ctx context.Context, token *model.Token) error

	// UpdateStats worker 同步 ICO 状态
	UpdateStats(ctx context.Context, chainID uint64, tokenAddress string, stats model.ICOStats, updatedAt int64) error

	// ListForStatsSync 未毕业的 token, 最久未同步的在前
	ListForStatsSync(ctx context.Context, chainID uint64, limit int) ([]*model.Token, error)
}
