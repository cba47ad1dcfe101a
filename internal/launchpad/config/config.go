package config

import (
	"fmt"
	"strings"
	"time"

	"web3-launchpad/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 定义整个配置的结构
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Launchpad LaunchpadConfig `mapstructure:"launchpad"`
	PriceFeed PriceFeedConfig `mapstructure:"price_feed"`
	Chains    []ChainConfig   `mapstructure:"chains"`
}

// LogConfig Log 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

type ServerConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// 普通请求超时(秒), stream 接口不受限制
	RequestTimeout int `mapstructure:"request_timeout"`
}

type MonitorConfig struct {
	Enable         bool   `mapstructure:"enable"`
	PrometheusAddr string `mapstructure:"prometheus_addr"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig Kafka 配置, brokers 为空时不推送
type KafkaConfig struct {
	Brokers    string `mapstructure:"brokers"`
	TopicTrade string `mapstructure:"topic_trade"`
	GroupID    string `mapstructure:"group_id"`
}

type WorkerConfig struct {
	WorkerNum         int `mapstructure:"worker_num"`
	StatsSyncInterval int `mapstructure:"stats_sync_interval"` // 秒
	StatsSyncBatch    int `mapstructure:"stats_sync_batch"`
	LatestTradesKeep  int `mapstructure:"latest_trades_keep"`
}

// LaunchpadConfig 扫描窗口、轮询间隔、费率等
type LaunchpadConfig struct {
	SwapWindowBlocks   uint64  `mapstructure:"swap_window_blocks"`
	IcoWindowBlocks    uint64  `mapstructure:"ico_window_blocks"`
	HolderWindowBlocks uint64  `mapstructure:"holder_window_blocks"`
	LogChunkBlocks     uint64  `mapstructure:"log_chunk_blocks"`
	StreamInterval     int     `mapstructure:"stream_interval"` // 秒
	StreamLookback     uint64  `mapstructure:"stream_lookback"`
	FetchConcurrency   int     `mapstructure:"fetch_concurrency"`
	SearchIterations   int     `mapstructure:"search_iterations"`
	SearchTolerance    float64 `mapstructure:"search_tolerance"`
	FeeRate            float64 `mapstructure:"fee_rate"`
	SellSlippage       float64 `mapstructure:"sell_slippage"`
	InitialMint        float64 `mapstructure:"initial_mint"`
	DefaultStartPrice  float64 `mapstructure:"default_start_price"`
	CacheTTL           int     `mapstructure:"cache_ttl"` // 秒
	MaxTradesLimit     int     `mapstructure:"max_trades_limit"`
	MaxHoldersLimit    int     `mapstructure:"max_holders_limit"`
}

// ChainConfig 每条链的 rpc 及合约地址
type ChainConfig struct {
	ChainID           uint64  `mapstructure:"chain_id"`
	Name              string  `mapstructure:"name"`
	RpcUrl            string  `mapstructure:"rpc_url"`
	RpcRateLimit      int     `mapstructure:"rpc_rate_limit"` // 每秒
	FactoryAddress    string  `mapstructure:"factory_address"`
	DexFactoryAddress string  `mapstructure:"dex_factory_address"`
	WrappedNative     string  `mapstructure:"wrapped_native"`
	FundingGoal       float64 `mapstructure:"funding_goal"`
	NativeCoinID      string  `mapstructure:"native_coin_id"`
}

type PriceFeedConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	RateLimit int    `mapstructure:"rate_limit"`
	Timeout   int    `mapstructure:"timeout"`
}

func (c LaunchpadConfig) StreamIntervalDuration() time.Duration {
	return time.Duration(c.StreamInterval) * time.Second
}

func (c LaunchpadConfig) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// Chain 按 chain id 查找配置
func (c Config) Chain(chainID uint64) (ChainConfig, bool) {
	for _, ch := range c.Chains {
		if ch.ChainID == chainID {
			return ch, true
		}
	}
	return ChainConfig{}, false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 30)
	v.SetDefault("worker.worker_num", 4)
	v.SetDefault("worker.stats_sync_interval", 60)
	v.SetDefault("worker.stats_sync_batch", 200)
	v.SetDefault("worker.latest_trades_keep", 50)
	// 仅为了让 AutomaticEnv 能覆盖这些 key
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("price_feed.api_key", "")
	v.SetDefault("kafka.topic_trade", "launchpad.trade")
	v.SetDefault("kafka.group_id", "launchpad-worker")

	v.SetDefault("launchpad.swap_window_blocks", 10_000)
	v.SetDefault("launchpad.ico_window_blocks", 100_000)
	v.SetDefault("launchpad.holder_window_blocks", 50_000)
	v.SetDefault("launchpad.log_chunk_blocks", 5_000)
	v.SetDefault("launchpad.stream_interval", 3)
	v.SetDefault("launchpad.stream_lookback", 10)
	v.SetDefault("launchpad.fetch_concurrency", 8)
	v.SetDefault("launchpad.search_iterations", 50)
	v.SetDefault("launchpad.search_tolerance", 0.001)
	v.SetDefault("launchpad.fee_rate", 0.01)
	v.SetDefault("launchpad.sell_slippage", 0.05)
	v.SetDefault("launchpad.initial_mint", 800_000_000)
	v.SetDefault("launchpad.default_start_price", 0.000000001)
	v.SetDefault("launchpad.cache_ttl", 5)
	v.SetDefault("launchpad.max_trades_limit", 500)
	v.SetDefault("launchpad.max_holders_limit", 200)

	v.SetDefault("price_feed.base_url", "https://api.coingecko.com")
	v.SetDefault("price_feed.rate_limit", 30)
	v.SetDefault("price_feed.timeout", 10)
}

// Load 读取 ./config/config.<name>.yaml, 环境变量覆盖 (LOG_LEVEL, POSTGRES_DSN ...)
func Load(name string, paths ...string) (Config, error) {
	var config Config

	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config." + name)
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config/"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return config, fmt.Errorf("read config file: %w", err)
	}

	if err := decode(v, &config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}
	return config, nil
}

func decode(v *viper.Viper, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return err
	}
	// AllSettings 已按 key 合并环境变量
	return dec.Decode(v.AllSettings())
}

func InitConfig(name string) Config {
	config, err := Load(name)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %s", err))
	}
	return config
}

// WatchConfig 配置热加载, 仅刷新日志级别与可动态生效的字段
func WatchConfig(name string, config *Config) {
	v := viper.New()
	v.SetConfigName("config." + name)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config/")
	if err := v.ReadInConfig(); err != nil {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig, err := Load(name)
		if err != nil {
			return
		}
		*config = newConfig
		logger.SetLogLevel(config.Log.Level)
	})
	v.WatchConfig()
}
