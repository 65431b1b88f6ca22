package config

import (
	"fmt"
	"math"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Forecast ForecastConfig `mapstructure:"forecast"`
	Anomaly  AnomalyConfig  `mapstructure:"anomaly"`
	History  HistoryConfig  `mapstructure:"history"`
	Training TrainingConfig `mapstructure:"training"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`      // Bind address (e.g., 0.0.0.0 for all interfaces)
	HTTPPort        int           `mapstructure:"http_port"` // HTTP API port
	GRPCPort        int           `mapstructure:"grpc_port"` // gRPC health port, 0 disables it
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// CacheConfig configures the forecast result cache
type CacheConfig struct {
	Backend   string        `mapstructure:"backend"` // redis (default), memory
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	PoolSize  int           `mapstructure:"pool_size"`
	TTL       time.Duration `mapstructure:"ttl"`        // Expiry of every forecast entry
	OpTimeout time.Duration `mapstructure:"op_timeout"` // Upper bound on a single get/set
}

// WeightsConfig holds the ensemble weights
type WeightsConfig struct {
	Trend   float64 `mapstructure:"trend"`
	Pattern float64 `mapstructure:"pattern"`
}

// HorizonLimit is the largest forecast horizon the service ever accepts.
// max_horizon may lower it, never raise it.
const HorizonLimit = 90

// ForecastConfig configures the forecast engine
type ForecastConfig struct {
	Weights        WeightsConfig `mapstructure:"weights"`
	ConfidenceBand float64       `mapstructure:"confidence_band"` // Fractional half-width of the band, 0.15 = ±15%
	HistoryDays    int           `mapstructure:"history_days"`    // Length of the series pulled for a forecast
	DefaultHorizon int           `mapstructure:"default_horizon"`
	MaxHorizon     int           `mapstructure:"max_horizon"`
}

// AnomalyConfig configures the anomaly detector
type AnomalyConfig struct {
	DefaultWindow int     `mapstructure:"default_window"`
	Multiplier    float64 `mapstructure:"multiplier"` // IQR fence multiplier
}

// HistoryConfig selects the sales history source
type HistoryConfig struct {
	Backend string        `mapstructure:"backend"` // synthetic (default), postgres
	DSN     string        `mapstructure:"dsn"`
	Seed    int64         `mapstructure:"seed"`
	LRUSize int           `mapstructure:"lru_size"` // 0 disables the in-process history cache
	LRUTTL  time.Duration `mapstructure:"lru_ttl"`
}

// TrainingConfig configures training job acceptance
type TrainingConfig struct {
	MinLookbackDays int     `mapstructure:"min_lookback_days"`
	MaxLookbackDays int     `mapstructure:"max_lookback_days"`
	DefaultLookback int     `mapstructure:"default_lookback"`
	EstimatedTime   string  `mapstructure:"estimated_time"`
	RateLimit       float64 `mapstructure:"rate_limit"` // Accepted jobs per second
	Burst           int     `mapstructure:"burst"`
	RunWorker       bool    `mapstructure:"run_worker"` // Consume training jobs in this process
}

// QueueConfig represents message queue configuration
type QueueConfig struct {
	Type     string `mapstructure:"type"` // Queue type: memory (default), nats, redis, kafka
	URL      string `mapstructure:"url"`  // Queue server URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Subject  string `mapstructure:"subject"` // Subject/stream/topic carrying training jobs

	// Redis-specific options
	RedisDB       int    `mapstructure:"redis_db"`
	RedisGroup    string `mapstructure:"redis_group"`
	RedisConsumer string `mapstructure:"redis_consumer"`

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaGroupID string   `mapstructure:"kafka_group_id"`
}

// MetadataConfig selects where job and model metadata live
type MetadataConfig struct {
	Backend     string        `mapstructure:"backend"` // memory (default), etcd
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	Prefix      string        `mapstructure:"prefix"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// TracingConfig configures OpenTelemetry tracing
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"` // OTLP gRPC collector
	SampleRate  float64 `mapstructure:"sample_rate"`
	ServiceName string  `mapstructure:"service_name"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, Kitchen
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	if err := c.Forecast.Validate(); err != nil {
		return fmt.Errorf("forecast config: %w", err)
	}

	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history config: %w", err)
	}

	if err := c.Training.Validate(); err != nil {
		return fmt.Errorf("training config: %w", err)
	}

	if err := c.Metadata.Validate(); err != nil {
		return fmt.Errorf("metadata config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}

	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc_port: %d", c.GRPCPort)
	}

	if c.HTTPPort == c.GRPCPort {
		return fmt.Errorf("http_port and grpc_port cannot be the same")
	}

	return nil
}

// Validate validates cache configuration
func (c *CacheConfig) Validate() error {
	if c.Backend != "redis" && c.Backend != "memory" {
		return fmt.Errorf("cache.backend must be 'redis' or 'memory'")
	}

	if c.Backend == "redis" && c.Addr == "" {
		return fmt.Errorf("cache.addr is required for redis backend")
	}

	if c.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	if c.OpTimeout <= 0 {
		return fmt.Errorf("cache.op_timeout must be positive")
	}

	return nil
}

// Validate validates forecast configuration. Weights must be non-negative
// and sum to one so the ensemble stays a weighted average.
func (c *ForecastConfig) Validate() error {
	if c.Weights.Trend < 0 || c.Weights.Pattern < 0 {
		return fmt.Errorf("forecast.weights must be non-negative")
	}

	if math.Abs(c.Weights.Trend+c.Weights.Pattern-1) > 1e-9 {
		return fmt.Errorf("forecast.weights must sum to 1, got %.4f", c.Weights.Trend+c.Weights.Pattern)
	}

	if c.ConfidenceBand < 0 || c.ConfidenceBand >= 1 {
		return fmt.Errorf("forecast.confidence_band must be in [0, 1)")
	}

	if c.HistoryDays < 1 {
		return fmt.Errorf("forecast.history_days must be positive")
	}

	if c.MaxHorizon < 1 || c.MaxHorizon > HorizonLimit {
		return fmt.Errorf("forecast.max_horizon must be in [1, %d], got %d", HorizonLimit, c.MaxHorizon)
	}

	if c.DefaultHorizon < 1 || c.DefaultHorizon > c.MaxHorizon {
		return fmt.Errorf("forecast.default_horizon must be in [1, %d]", c.MaxHorizon)
	}

	return nil
}

// Validate validates history configuration
func (c *HistoryConfig) Validate() error {
	switch c.Backend {
	case "synthetic":
	case "postgres":
		if c.DSN == "" {
			return fmt.Errorf("history.dsn is required for postgres backend")
		}
	default:
		return fmt.Errorf("history.backend must be 'synthetic' or 'postgres'")
	}

	if c.LRUSize < 0 {
		return fmt.Errorf("history.lru_size cannot be negative")
	}

	return nil
}

// Validate validates training configuration
func (c *TrainingConfig) Validate() error {
	if c.MinLookbackDays < 1 || c.MinLookbackDays > c.MaxLookbackDays {
		return fmt.Errorf("training lookback bounds are invalid: [%d, %d]", c.MinLookbackDays, c.MaxLookbackDays)
	}

	if c.DefaultLookback < c.MinLookbackDays || c.DefaultLookback > c.MaxLookbackDays {
		return fmt.Errorf("training.default_lookback must be within lookback bounds")
	}

	if c.RateLimit <= 0 {
		return fmt.Errorf("training.rate_limit must be positive")
	}

	if c.Burst < 1 {
		return fmt.Errorf("training.burst must be at least 1")
	}

	return nil
}

// Validate validates metadata configuration
func (c *MetadataConfig) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "etcd":
		if len(c.Endpoints) == 0 {
			return fmt.Errorf("metadata.endpoints is required for etcd backend")
		}
		if c.DialTimeout <= 0 {
			return fmt.Errorf("metadata.dial_timeout must be positive")
		}
		return nil
	default:
		return fmt.Errorf("metadata.backend must be 'memory' or 'etcd'")
	}
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
