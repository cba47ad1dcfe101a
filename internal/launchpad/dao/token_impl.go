package dao

import (
	"context"
	"errors"
	"time"

	"web3-launchpad/internal/launchpad/model"
	"web3-launchpad/pkg/utils"

	"github.com/bytedance/sonic"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	tokenCacheTTL = 30 * time.Minute
	nullCacheTTL  = time.Minute
)

type tokenDAO struct {
	db         *gorm.DB
	rds        *redis.Client
	localCache *cache.Cache
}

func NewTokenDAO(db *gorm.DB, rds *redis.Client) TokenDAO {
	return &tokenDAO{
		db:         db,
		rds:        rds,
		localCache: cache.New(10*time.Minute, time.Minute),
	}
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.Token{})
}

func (t *tokenDAO) GetByAddress(ctx context.Context, chainID uint64, tokenAddress string) (*model.Token, error) {
	tokenAddress = utils.NormalizeAddress(tokenAddress)
	cacheKey := utils.TokenInfoKey(chainID, tokenAddress)

	if cached, found := t.localCache.Get(cacheKey); found {
		if token, ok := cached.(*model.Token); ok {
			return token, nil
		}
	}

	if t.rds != nil {
		cached, err := t.rds.Get(ctx, cacheKey).Result()
		if err == nil {
			if cached == "null" {
				return nil, nil
			}
			var token model.Token
			if sonic.Unmarshal([]byte(cached), &token) == nil {
				t.localCache.Set(cacheKey, &token, cache.DefaultExpiration)
				return &token, nil
			}
		}
	}

	var token model.Token
	err := t.db.WithContext(ctx).
		Where("chain_id = ? AND address = ?", chainID, tokenAddress).
		First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 缓存空结果，避免缓存穿透
			t.localCache.Set(cacheKey, (*model.Token)(nil), nullCacheTTL)
			if t.rds != nil {
				t.rds.Set(ctx, cacheKey, "null", nullCacheTTL)
			}
			return nil, nil
		}
		return nil, err
	}

	t.updateCache(ctx, cacheKey, &token)
	return &token, nil
}

func (t *tokenDAO) updateCache(ctx context.Context, cacheKey string, token *model.Token) {
	t.localCache.Set(cacheKey, token, cache.DefaultExpiration)
	if t.rds == nil {
		return
	}
	if data, err := sonic.Marshal(token); err == nil {
		t.rds.Set(ctx, cacheKey, string(data), tokenCacheTTL)
	}
}

func (t *tokenDAO) clearCache(ctx context.Context, chainID uint64, tokenAddress string) {
	cacheKey := utils.TokenInfoKey(chainID, tokenAddress)
	t.localCache.Delete(cacheKey)
	if t.rds != nil {
		t.rds.Del(ctx, cacheKey)
	}
}

func (t *tokenDAO) List(ctx context.Context, chainID uint64, limit, offset int) ([]*model.Token, error) {
	var tokens []*model.Token
	err := t.db.WithContext(ctx).
		Where("chain_id = ?", chainID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (t *tokenDAO) Upsert(ctx context.Context, token *model.Token) error {
	token.Address = utils.NormalizeAddress(token.Address)
	token.Creator = utils.NormalizeAddress(token.Creator)
	now := time.Now().UnixMilli()
	if token.CreatedAt == 0 {
		token.CreatedAt = now
	}
	token.UpdatedAt = now

	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chain_id"}, {Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "symbol", "description", "image_url", "creator", "tags", "social_info", "updated_at",
		}),
	}).Create(token).Error
	if err != nil {
		return err
	}
	t.clearCache(ctx, token.ChainID, token.Address)
	return nil
}

func (t *tokenDAO) UpdateStats(ctx context.Context, chainID uint64, tokenAddress string, stats model.ICOStats, updatedAt int64) error {
	tokenAddress = utils.NormalizeAddress(tokenAddress)
	updates := map[string]interface{}{
		"state":             int16(stats.State),
		"collateral_raised": stats.CollateralRaised,
		"funding_progress":  stats.FundingProgress,
		"current_price":     stats.CurrentPrice,
		"stats_updated_at":  updatedAt,
		"updated_at":        updatedAt,
	}
	if stats.State == model.StateGraduated {
		updates["graduated_at"] = gorm.Expr("COALESCE(graduated_at, ?)", updatedAt)
	}

	err := t.db.WithContext(ctx).
		Model(&model.Token{}).
		Where("chain_id = ? AND address = ?", chainID, tokenAddress).
		Updates(updates).Error
	if err != nil {
		return err
	}
	t.clearCache(ctx, chainID, tokenAddress)
	return nil
}

func (t *tokenDAO) ListForStatsSync(ctx context.Context, chainID uint64, limit int) ([]*model.Token, error) {
	var tokens []*model.Token
	err := t.db.WithContext(ctx).
		Where("chain_id = ? AND state <> ?", chainID, int16(model.StateGraduated)).
		Order("stats_updated_at ASC NULLS FIRST").
		Limit(limit).
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}
