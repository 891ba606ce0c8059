package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"TradeCouncil/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Engine struct {
		ConsensusThreshold float64       `yaml:"consensus_threshold"`
		FallbackPrice      float64       `yaml:"fallback_price"`
		FetchTimeout       time.Duration `yaml:"fetch_timeout"`
		StopLossPct        float64       `yaml:"stop_loss_pct"`
		TakeProfitPct      float64       `yaml:"take_profit_pct"`
	} `yaml:"engine"`
	Watchlist struct {
		Assets []string `yaml:"assets"`
	} `yaml:"watchlist"`
	Scheduler struct {
		Enabled   bool          `yaml:"enabled"`
		Interval  time.Duration `yaml:"interval"`
		Mode      string        `yaml:"mode"`
		Timeframe string        `yaml:"timeframe"`
		Burst     float64       `yaml:"burst"`
		Refill    float64       `yaml:"refill_per_sec"`
	} `yaml:"scheduler"`
	MarketData struct {
		BaseURL           string        `yaml:"base_url"`
		StreamURL         string        `yaml:"stream_url"`
		StreamEnabled     bool          `yaml:"stream_enabled"`
		KlineLimit        int           `yaml:"kline_limit"`
		CacheTTL          time.Duration `yaml:"cache_ttl"`
		RequestTimeout    time.Duration `yaml:"request_timeout"`
		ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
		ReconnectAttempts int           `yaml:"reconnect_attempts"`
		PingInterval      time.Duration `yaml:"ping_interval"`
		TickMaxRPS        int           `yaml:"tick_max_rps"`
	} `yaml:"marketdata"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Cache struct {
		MemoryMaxSize   int           `yaml:"memory_max_size"`
		CleanupInterval time.Duration `yaml:"cleanup_interval"`
	} `yaml:"cache"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		QueueSize  int           `yaml:"queue_size"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		Table            string        `yaml:"table"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

const (
	SchedulerModeInline = "inline"
	SchedulerModeQueue  = "queue"
)

// Load reads and parses a YAML configuration file, fills defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.fillDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides selected fields with
// environment variables, so deployments can tune without editing the file.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyEnv()
	c.fillDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.Server.Port = util.ParseIntDefault(v, c.Server.Port)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("WATCHLIST"); v != "" {
		c.Watchlist.Assets = util.SplitCSV(v)
	}
	if v := os.Getenv("CONSENSUS_THRESHOLD"); v != "" {
		c.Engine.ConsensusThreshold = util.ParseFloatDefault(v, c.Engine.ConsensusThreshold)
	}
	if v := os.Getenv("SCHEDULER_INTERVAL"); v != "" {
		c.Scheduler.Interval = util.ParseDurationDefault(v, c.Scheduler.Interval)
	}
	if v := os.Getenv("SCHEDULER_MODE"); v != "" {
		c.Scheduler.Mode = v
	}
	if v := os.Getenv("MARKETDATA_BASE_URL"); v != "" {
		c.MarketData.BaseURL = v
	}
	if v := os.Getenv("MARKETDATA_STREAM_URL"); v != "" {
		c.MarketData.StreamURL = v
	}
	if v := os.Getenv("MARKETDATA_STREAM_ENABLED"); v != "" {
		c.MarketData.StreamEnabled = util.ParseBoolDefault(v, c.MarketData.StreamEnabled)
	}
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		c.Redis.Enabled = util.ParseBoolDefault(v, c.Redis.Enabled)
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		c.Redis.Port = util.ParseIntDefault(v, c.Redis.Port)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		c.Kafka.Enabled = util.ParseBoolDefault(v, c.Kafka.Enabled)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitCSV(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_ENABLED"); v != "" {
		c.ClickHouse.Enabled = util.ParseBoolDefault(v, c.ClickHouse.Enabled)
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
}

func (c *Config) fillDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stdout"
	}
	if c.Engine.ConsensusThreshold == 0 {
		c.Engine.ConsensusThreshold = 0.7
	}
	if c.Engine.FallbackPrice == 0 {
		c.Engine.FallbackPrice = 100
	}
	if c.Engine.FetchTimeout == 0 {
		c.Engine.FetchTimeout = 10 * time.Second
	}
	if c.Engine.StopLossPct == 0 {
		c.Engine.StopLossPct = 0.02
	}
	if c.Engine.TakeProfitPct == 0 {
		c.Engine.TakeProfitPct = 0.05
	}
	if c.Scheduler.Interval == 0 {
		c.Scheduler.Interval = 10 * time.Second
	}
	if c.Scheduler.Mode == "" {
		c.Scheduler.Mode = SchedulerModeInline
	}
	if c.Scheduler.Timeframe == "" {
		c.Scheduler.Timeframe = "1h"
	}
	if c.Scheduler.Burst == 0 {
		c.Scheduler.Burst = 1
	}
	if c.Scheduler.Refill == 0 {
		c.Scheduler.Refill = 0.1
	}
	if c.MarketData.BaseURL == "" {
		c.MarketData.BaseURL = "https://api.binance.com"
	}
	if c.MarketData.StreamURL == "" {
		c.MarketData.StreamURL = "wss://stream.binance.com:9443/ws"
	}
	if c.MarketData.KlineLimit == 0 {
		c.MarketData.KlineLimit = 500
	}
	if c.MarketData.CacheTTL == 0 {
		c.MarketData.CacheTTL = 45 * time.Second
	}
	if c.MarketData.RequestTimeout == 0 {
		c.MarketData.RequestTimeout = 10 * time.Second
	}
	if c.MarketData.ReconnectDelay == 0 {
		c.MarketData.ReconnectDelay = 5 * time.Second
	}
	if c.MarketData.ReconnectAttempts == 0 {
		c.MarketData.ReconnectAttempts = 5
	}
	if c.MarketData.PingInterval == 0 {
		c.MarketData.PingInterval = 30 * time.Second
	}
	if c.MarketData.TickMaxRPS == 0 {
		c.MarketData.TickMaxRPS = 20
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "tradecouncil"
	}
	if c.Cache.MemoryMaxSize == 0 {
		c.Cache.MemoryMaxSize = 1000
	}
	if c.Cache.CleanupInterval == 0 {
		c.Cache.CleanupInterval = 5 * time.Minute
	}
	if c.Queue.Workers == 0 {
		c.Queue.Workers = 4
	}
	if c.Queue.QueueSize == 0 {
		c.Queue.QueueSize = 64
	}
	if c.Queue.RetryLimit == 0 {
		c.Queue.RetryLimit = 3
	}
	if c.Queue.RetryDelay == 0 {
		c.Queue.RetryDelay = 5 * time.Second
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "recommendations"
	}
	if c.Kafka.Consumer.GroupID == "" {
		c.Kafka.Consumer.GroupID = "tradecouncil-history"
	}
	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = 9000
	}
	if c.ClickHouse.Database == "" {
		c.ClickHouse.Database = "default"
	}
	if c.ClickHouse.User == "" {
		c.ClickHouse.User = "default"
	}
	if c.ClickHouse.Table == "" {
		c.ClickHouse.Table = "recommendations"
	}
}

// Validate checks cross-field invariants. Called by Load after defaults are
// in place.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Engine.ConsensusThreshold <= 0 || c.Engine.ConsensusThreshold > 1 {
		return fmt.Errorf("engine.consensus_threshold must be in (0, 1], got %v", c.Engine.ConsensusThreshold)
	}
	if c.Engine.StopLossPct <= 0 || c.Engine.StopLossPct >= 1 {
		return fmt.Errorf("engine.stop_loss_pct must be in (0, 1), got %v", c.Engine.StopLossPct)
	}
	if c.Engine.TakeProfitPct <= 0 || c.Engine.TakeProfitPct >= 1 {
		return fmt.Errorf("engine.take_profit_pct must be in (0, 1), got %v", c.Engine.TakeProfitPct)
	}
	if c.Scheduler.Mode != SchedulerModeInline && c.Scheduler.Mode != SchedulerModeQueue {
		return fmt.Errorf("scheduler.mode must be %q or %q, got %q", SchedulerModeInline, SchedulerModeQueue, c.Scheduler.Mode)
	}
	if c.Scheduler.Mode == SchedulerModeQueue && !c.Redis.Enabled {
		return fmt.Errorf("scheduler.mode %q requires redis.enabled", SchedulerModeQueue)
	}
	switch c.Scheduler.Timeframe {
	case "1m", "5m", "15m", "1h", "4h", "1d":
	default:
		return fmt.Errorf("scheduler.timeframe %q is not supported", c.Scheduler.Timeframe)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}
