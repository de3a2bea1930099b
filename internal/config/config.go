// Package config loads worker configuration from environment variables (and
// an optional config file) via viper, covering queue, database, health, and
// resource-gating settings in one resolved struct.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved worker configuration.
type Config struct {
	RedisURL          string        `mapstructure:"redis_url"`
	DatabaseURL       string        `mapstructure:"database_url"`
	WorkerConcurrency int           `mapstructure:"worker_concurrency"`
	HealthPort        int           `mapstructure:"health_port"`
	AppVersion        string        `mapstructure:"app_version"`
	QueueName         string        `mapstructure:"queue_name"`
	TranslationTable  string        `mapstructure:"translation_table"`
	EngineScript      string        `mapstructure:"engine_script"`
	ScreenshotBaseDir string         `mapstructure:"screenshot_base_dir"`
	Resource          ResourceConfig `mapstructure:"resource"`
	Logging           LoggingConfig  `mapstructure:"logging"`
}

// ResourceConfig gates browser page acquisition under memory pressure.
type ResourceConfig struct {
	SafetyReserveMB   int `mapstructure:"safety_reserve_mb"`
	SafetyThresholdMB int `mapstructure:"safety_threshold_mb"`
}

// LoggingConfig configures zerolog + lumberjack output.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	LogDir     string `mapstructure:"log_dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Load reads configuration from environment variables, falling back to the
// documented defaults for anything unset. configPath may be empty.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	bindEnv(v, "redis_url", "REDIS_URL")
	bindEnv(v, "database_url", "DATABASE_URL")
	bindEnv(v, "worker_concurrency", "WORKER_CONCURRENCY")
	bindEnv(v, "health_port", "HEALTH_PORT")
	bindEnv(v, "app_version", "APP_VERSION")
	bindEnv(v, "queue_name", "QUEUE_NAME")
	bindEnv(v, "translation_table", "TRANSLATION_TABLE_PATH")
	bindEnv(v, "engine_script", "ENGINE_SCRIPT_PATH")
	bindEnv(v, "screenshot_base_dir", "SCREENSHOT_BASE_DIR")

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnv(v *viper.Viper, key, env string) {
	_ = v.BindEnv(key, env)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("worker_concurrency", 2)
	v.SetDefault("health_port", 8080)
	v.SetDefault("app_version", "dev")
	v.SetDefault("queue_name", "scans")
	v.SetDefault("screenshot_base_dir", "./screenshots")

	v.SetDefault("resource.safety_reserve_mb", 512)
	v.SetDefault("resource.safety_threshold_mb", 300)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", true)
}

// validate rejects configurations the worker cannot start with.
func (c *Config) validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("config: REDIS_URL is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required")
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("config: worker concurrency must be >= 1, got %d", c.WorkerConcurrency)
	}
	if c.HealthPort < 1 || c.HealthPort > 65535 {
		return fmt.Errorf("config: health port out of range: %d", c.HealthPort)
	}
	return nil
}

// SafetyReserveBytes converts the configured MB reserve to bytes for the
// browser pool's resource monitor.
func (r ResourceConfig) SafetyReserveBytes() int64 {
	return int64(r.SafetyReserveMB) * 1024 * 1024
}

// SafetyThresholdBytes converts the configured MB threshold to bytes.
func (r ResourceConfig) SafetyThresholdBytes() int64 {
	return int64(r.SafetyThresholdMB) * 1024 * 1024
}

// MaxAge returns the logging max age as a duration, for callers that prefer
// it over the raw day count.
func (l LoggingConfig) MaxAge() time.Duration {
	return time.Duration(l.MaxAgeDays) * 24 * time.Hour
}
