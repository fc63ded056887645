package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and
// environment variables. The pipeline core never reads config itself; values
// are passed to component constructors at wiring time.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	SourcesFile    string `mapstructure:"sources_file"`
	PublishersFile string `mapstructure:"publishers_file"`

	CollectIntervalSeconds int64         `mapstructure:"collect_interval"`
	CollectInterval        time.Duration `mapstructure:"-"`

	StorageType string `mapstructure:"storage_type"`
	StoragePath string `mapstructure:"storage_path"`

	LookbackDays int `mapstructure:"lookback_days"`

	FetchTimeoutSeconds int64         `mapstructure:"fetch_timeout_seconds"`
	FetchTimeout        time.Duration `mapstructure:"-"`

	RetryMaxAttempts    int           `mapstructure:"retry_max_attempts"`
	RetryBaseBackoffMs  int64         `mapstructure:"retry_base_backoff_ms"`
	RetryMaxBackoffMs   int64         `mapstructure:"retry_max_backoff_ms"`
	RetryJitterFraction float64       `mapstructure:"retry_jitter_fraction"`
	RetryBaseBackoff    time.Duration `mapstructure:"-"`
	RetryMaxBackoff     time.Duration `mapstructure:"-"`

	RateLimitCapacity        int           `mapstructure:"rate_limit_capacity"`
	RateLimitRefillPerSecond float64       `mapstructure:"rate_limit_refill_per_second"`
	RateLimitMaxWaitSeconds  int64         `mapstructure:"rate_limit_max_wait_seconds"`
	RateLimitMaxWait         time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-digest-collector")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("sources_file", "./configs/sources.yaml")
	v.SetDefault("publishers_file", "./configs/publishers.yaml")
	v.SetDefault("collect_interval", 900) // seconds
	v.SetDefault("storage_type", "fs")
	v.SetDefault("storage_path", "./data/records")
	v.SetDefault("lookback_days", 5)
	v.SetDefault("fetch_timeout_seconds", 15)
	v.SetDefault("retry_max_attempts", 4)
	v.SetDefault("retry_base_backoff_ms", 500)
	v.SetDefault("retry_max_backoff_ms", 30000)
	v.SetDefault("retry_jitter_fraction", 0.2)
	v.SetDefault("rate_limit_capacity", 5)
	v.SetDefault("rate_limit_refill_per_second", 1.0)
	v.SetDefault("rate_limit_max_wait_seconds", 60)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CollectIntervalSeconds <= 0 {
		return nil, fmt.Errorf("invalid collect_interval (must be positive seconds)")
	}
	cfg.CollectInterval = time.Duration(cfg.CollectIntervalSeconds) * time.Second

	if cfg.LookbackDays <= 0 {
		return nil, fmt.Errorf("invalid lookback_days (must be a positive day count)")
	}
	if cfg.FetchTimeoutSeconds <= 0 {
		return nil, fmt.Errorf("invalid fetch_timeout_seconds (must be positive seconds)")
	}
	cfg.FetchTimeout = time.Duration(cfg.FetchTimeoutSeconds) * time.Second

	if cfg.RetryMaxAttempts <= 0 {
		return nil, fmt.Errorf("invalid retry_max_attempts (must be positive)")
	}
	if cfg.RetryBaseBackoffMs <= 0 || cfg.RetryMaxBackoffMs <= 0 {
		return nil, fmt.Errorf("invalid retry backoff (must be positive milliseconds)")
	}
	if cfg.RetryJitterFraction < 0 || cfg.RetryJitterFraction >= 1 {
		return nil, fmt.Errorf("invalid retry_jitter_fraction (must be in [0, 1))")
	}
	cfg.RetryBaseBackoff = time.Duration(cfg.RetryBaseBackoffMs) * time.Millisecond
	cfg.RetryMaxBackoff = time.Duration(cfg.RetryMaxBackoffMs) * time.Millisecond

	if cfg.RateLimitCapacity <= 0 {
		return nil, fmt.Errorf("invalid rate_limit_capacity (must be positive)")
	}
	if cfg.RateLimitRefillPerSecond <= 0 {
		return nil, fmt.Errorf("invalid rate_limit_refill_per_second (must be positive)")
	}
	if cfg.RateLimitMaxWaitSeconds < 0 {
		return nil, fmt.Errorf("invalid rate_limit_max_wait_seconds (must not be negative)")
	}
	cfg.RateLimitMaxWait = time.Duration(cfg.RateLimitMaxWaitSeconds) * time.Second

	return &cfg, nil
}
