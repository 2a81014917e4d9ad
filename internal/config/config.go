// Package config loads the service configuration from file, environment and
// defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig defines the HTTP server configuration.
type APIConfig struct {
	ListenAddress string        `mapstructure:"listen_address"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
}

// CacheConfig defines the engine tunables.
type CacheConfig struct {
	MaxMemoryMB       int    `mapstructure:"max_memory_mb"`
	DefaultTTLSeconds int64  `mapstructure:"default_ttl_seconds"`
	MaxTTLSeconds     int64  `mapstructure:"max_ttl_seconds"`
	EvictionPolicy    string `mapstructure:"eviction_policy"`
	ReaperInterval    time.Duration `mapstructure:"reaper_interval"`
}

// RateLimitConfig defines the per-caller limiter.
type RateLimitConfig struct {
	Window      time.Duration `mapstructure:"window"`
	Limit       int64         `mapstructure:"limit"`
	GlobalRPS   int           `mapstructure:"global_rps"`
	GlobalBurst int           `mapstructure:"global_burst"`
}

// TEEConfig names the optional confidential-execution provider.
type TEEConfig struct {
	Provider string `mapstructure:"provider"`
	Endpoint string `mapstructure:"endpoint"`
	Seed     string `mapstructure:"seed"`
}

// RegistryConfig defines the worker location plane.
type RegistryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	PodID       string `mapstructure:"pod_id"`
	Region      string `mapstructure:"region"`
	Endpoint    string `mapstructure:"endpoint"`
	StoreDriver string `mapstructure:"store_driver"` // "", "postgres", "redis"
	DatabaseURL string `mapstructure:"database_url"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisDB     int    `mapstructure:"redis_db"`
}

// Config is the complete service configuration.
type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	API         APIConfig       `mapstructure:"api"`
	Cache       CacheConfig     `mapstructure:"cache"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	TEE         TEEConfig       `mapstructure:"tee"`
	Registry    RegistryConfig  `mapstructure:"registry"`
}

// Load reads config.yaml (optional) plus DWS_CACHE_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/dws-cache")

	v.SetEnvPrefix("DWS_CACHE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Common deployment variables without the prefix.
	_ = v.BindEnv("api.listen_address", "LISTEN_ADDRESS")
	_ = v.BindEnv("registry.database_url", "DATABASE_URL")
	_ = v.BindEnv("registry.redis_addr", "REDIS_ADDR")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if port := v.GetString("port"); port != "" && v.GetString("api.listen_address") == defaultListen {
		cfg.API.ListenAddress = ":" + port
	}
	return &cfg, nil
}

const defaultListen = ":8080"

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("api.listen_address", defaultListen)
	v.SetDefault("api.read_timeout", 30*time.Second)
	v.SetDefault("api.write_timeout", 30*time.Second)
	v.SetDefault("api.idle_timeout", 90*time.Second)

	v.SetDefault("cache.max_memory_mb", 256)
	v.SetDefault("cache.default_ttl_seconds", 3600)
	v.SetDefault("cache.max_ttl_seconds", 30*24*3600)
	v.SetDefault("cache.eviction_policy", "lru")
	v.SetDefault("cache.reaper_interval", 10*time.Second)

	v.SetDefault("rate_limit.window", 60*time.Second)
	v.SetDefault("rate_limit.limit", 1000)
	v.SetDefault("rate_limit.global_rps", 2000)
	v.SetDefault("rate_limit.global_burst", 4000)

	v.SetDefault("registry.enabled", true)
	v.SetDefault("registry.region", "local")

	_ = v.BindEnv("port", "PORT")
}
