package model

import (
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Token 代币元数据 + worker 同步的 ICO 状态
type Token struct {
	ID               int64            `gorm:"column:id;primaryKey;autoIncrement:true" json:"-"`
	ChainID          uint64           `gorm:"column:chain_id;not null;uniqueIndex:idx_launchpad_token_chain_address" json:"chainId"`
	Address          string           `gorm:"column:address;type:varchar(64);not null;uniqueIndex:idx_launchpad_token_chain_address" json:"address"` // 小写
	Name             string           `gorm:"column:name;type:varchar(256);not null" json:"name"`
	Symbol           string           `gorm:"column:symbol;type:varchar(64);not null;index" json:"symbol"`
	Description      *string          `gorm:"column:description" json:"description,omitempty"`
	ImageURL         *string          `gorm:"column:image_url" json:"imageUrl,omitempty"`
	Creator          string           `gorm:"column:creator;type:varchar(64);index" json:"creator"`
	Tags             pq.StringArray   `gorm:"column:tags;type:text[]" json:"tags,omitempty"`
	SocialInfo       *datatypes.JSON  `gorm:"column:social_info" json:"socialInfo,omitempty"`
	State            int16            `gorm:"column:state;not null;default:0" json:"-"`
	CollateralRaised decimal.Decimal  `gorm:"column:collateral_raised;type:decimal(50,20);not null;default:0" json:"collateralRaised"`
	FundingProgress  decimal.Decimal  `gorm:"column:funding_progress;type:decimal(10,4);not null;default:0" json:"fundingProgress"`
	CurrentPrice     decimal.Decimal  `gorm:"column:current_price;type:decimal(50,20);not null;default:0" json:"currentPrice"`
	MarketCap        *decimal.Decimal `gorm:"column:market_cap" json:"marketCap,omitempty"`
	GraduatedAt      *int64           `gorm:"column:graduated_at" json:"graduatedAt,omitempty"`
	StatsUpdatedAt   *int64           `gorm:"column:stats_updated_at" json:"statsUpdatedAt,omitempty"`
	CreatedAt        int64            `gorm:"column:created_at;not null" json:"createdAt"` // 毫秒
	UpdatedAt        int64            `gorm:"column:updated_at;not null" json:"updatedAt"`
}

func (*Token) TableName() string {
	return "launchpad_tokens"
}

func (t *Token) TokenState() TokenState {
	return TokenState(t.State)
}

// TokenView token 详情接口返回
type TokenView struct {
	Token          *Token          `json:"token,omitempty"`
	ChainID        uint64          `json:"chainId"`
	Address        string          `json:"address"` // checksum
	Stats          ICOStats        `json:"stats"`
	TotalSupply    decimal.Decimal `json:"totalSupply"`
	NativeUSDPrice decimal.Decimal `json:"nativeUsdPrice"`
	PriceUSD       decimal.Decimal `json:"priceUsd"`
	MarketCapUSD   decimal.Decimal `json:"marketCapUsd"`
}
