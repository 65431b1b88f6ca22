package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/mlpipeline")
	}

	setDefaults(v)

	// MLPIPELINE_CACHE_ADDR overrides cache.addr
	v.SetEnvPrefix("MLPIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults mirrors DefaultConfig so a missing file and an empty file behave the same
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.grpc_port", d.Server.GRPCPort)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	v.SetDefault("auth.enabled", d.Auth.Enabled)
	v.SetDefault("auth.api_keys", d.Auth.APIKeys)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.addr", d.Cache.Addr)
	v.SetDefault("cache.db", d.Cache.DB)
	v.SetDefault("cache.pool_size", d.Cache.PoolSize)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.op_timeout", d.Cache.OpTimeout)

	v.SetDefault("forecast.weights.trend", d.Forecast.Weights.Trend)
	v.SetDefault("forecast.weights.pattern", d.Forecast.Weights.Pattern)
	v.SetDefault("forecast.confidence_band", d.Forecast.ConfidenceBand)
	v.SetDefault("forecast.history_days", d.Forecast.HistoryDays)
	v.SetDefault("forecast.default_horizon", d.Forecast.DefaultHorizon)
	v.SetDefault("forecast.max_horizon", d.Forecast.MaxHorizon)

	v.SetDefault("anomaly.default_window", d.Anomaly.DefaultWindow)
	v.SetDefault("anomaly.multiplier", d.Anomaly.Multiplier)

	v.SetDefault("history.backend", d.History.Backend)
	v.SetDefault("history.seed", d.History.Seed)
	v.SetDefault("history.lru_size", d.History.LRUSize)
	v.SetDefault("history.lru_ttl", d.History.LRUTTL)

	v.SetDefault("training.min_lookback_days", d.Training.MinLookbackDays)
	v.SetDefault("training.max_lookback_days", d.Training.MaxLookbackDays)
	v.SetDefault("training.default_lookback", d.Training.DefaultLookback)
	v.SetDefault("training.estimated_time", d.Training.EstimatedTime)
	v.SetDefault("training.rate_limit", d.Training.RateLimit)
	v.SetDefault("training.burst", d.Training.Burst)
	v.SetDefault("training.run_worker", d.Training.RunWorker)

	v.SetDefault("queue.type", d.Queue.Type)
	v.SetDefault("queue.url", d.Queue.URL)
	v.SetDefault("queue.subject", d.Queue.Subject)
	v.SetDefault("queue.redis_group", d.Queue.RedisGroup)
	v.SetDefault("queue.kafka_group_id", d.Queue.KafkaGroupID)

	v.SetDefault("metadata.backend", d.Metadata.Backend)
	v.SetDefault("metadata.endpoints", d.Metadata.Endpoints)
	v.SetDefault("metadata.dial_timeout", d.Metadata.DialTimeout)
	v.SetDefault("metadata.prefix", d.Metadata.Prefix)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", d.Tracing.Endpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			HTTPPort:        8000,
			GRPCPort:        8001,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Backend:   "redis",
			Addr:      "localhost:6379",
			PoolSize:  10,
			TTL:       3600 * time.Second,
			OpTimeout: 200 * time.Millisecond,
		},
		Forecast: ForecastConfig{
			Weights: WeightsConfig{
				Trend:   0.4,
				Pattern: 0.6,
			},
			ConfidenceBand: 0.15,
			HistoryDays:    90,
			DefaultHorizon: 14,
			MaxHorizon:     90,
		},
		Anomaly: AnomalyConfig{
			DefaultWindow: 30,
			Multiplier:    1.5,
		},
		History: HistoryConfig{
			Backend: "synthetic",
			Seed:    42,
			LRUSize: 1024,
			LRUTTL:  5 * time.Minute,
		},
		Training: TrainingConfig{
			MinLookbackDays: 30,
			MaxLookbackDays: 365,
			DefaultLookback: 90,
			EstimatedTime:   "5-10 minutes",
			RateLimit:       5,
			Burst:           10,
			RunWorker:       true,
		},
		Queue: QueueConfig{
			Type:         "memory",
			URL:          "nats://localhost:4222",
			Subject:      "mlpipeline.training",
			RedisGroup:   "mlpipeline-trainers",
			KafkaGroupID: "mlpipeline-trainers",
		},
		Metadata: MetadataConfig{
			Backend:     "memory",
			Endpoints:   []string{"http://localhost:2379"},
			DialTimeout: 5 * time.Second,
			Prefix:      "/mlpipeline",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4317",
			SampleRate:  1.0,
			ServiceName: "ml-pipeline",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
		},
	}
}
