package pricefeed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"web3-launchpad/pkg/httpclient"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const priceCacheTTL = time.Minute

type Config struct {
	BaseURL   string
	APIKey    string
	RateLimit int // 每分钟
	Timeout   time.Duration
}

// Client 查询原生币的 USD 价格 (coingecko simple/price 格式)
type Client struct {
	baseURL    string
	httpClient *httpclient.HTTPClient
	localCache *cache.Cache
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	httpClient := httpclient.NewHTTPClient(httpclient.HTTPClientConfig{
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		MaxRetries: 2,
		APIKey:     cfg.APIKey,
		APIKeyName: "x-cg-demo-api-key",
	}, logger)

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		localCache: cache.New(priceCacheTTL, 5*time.Minute),
		logger:     logger,
	}
}

// simplePriceResp {"ethereum":{"usd":3012.5}}
type simplePriceResp map[string]map[string]float64

// USDPrice 返回 coinID 的美元价格, 1 分钟本地缓存
func (c *Client) USDPrice(ctx context.Context, coinID string) (decimal.Decimal, error) {
	if coinID == "" {
		return decimal.Zero, fmt.Errorf("empty coin id")
	}
	if cached, found := c.localCache.Get(coinID); found {
		return cached.(decimal.Decimal), nil
	}

	var resp simplePriceResp
	err := c.httpClient.Get(ctx, c.baseURL+"/api/v3/simple/price", map[string]string{
		"ids":           coinID,
		"vs_currencies": "usd",
	}, &resp)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch %s usd price: %w", coinID, err)
	}

	quote, ok := resp[coinID]["usd"]
	if !ok {
		return decimal.Zero, fmt.Errorf("usd price of %s missing in response", coinID)
	}
	price := decimal.NewFromFloat(quote)
	c.localCache.Set(coinID, price, cache.DefaultExpiration)
	return price, nil
}

func (c *Client) Close() error {
	return c.httpClient.Close()
}
