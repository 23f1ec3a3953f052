package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/orris-inc/storefront/internal/shared/config"
)

type Config struct {
	Server     sharedConfig.ServerConfig     `mapstructure:"server"`
	Database   sharedConfig.DatabaseConfig   `mapstructure:"database"`
	Logger     sharedConfig.LoggerConfig     `mapstructure:"logger"`
	Redis      sharedConfig.RedisConfig      `mapstructure:"redis"`
	Auth       sharedConfig.AuthConfig       `mapstructure:"auth"`
	Catalog    sharedConfig.CatalogConfig    `mapstructure:"catalog"`
	Funnel     sharedConfig.FunnelConfig     `mapstructure:"funnel"`
	Feedback   sharedConfig.FeedbackConfig   `mapstructure:"feedback"`
	Generation sharedConfig.GenerationConfig `mapstructure:"generation"`
	Assignment sharedConfig.AssignmentConfig `mapstructure:"assignment"`
	RateLimit  sharedConfig.RateLimitConfig  `mapstructure:"ratelimit"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables.
// An empty configPath searches ./configs, ../configs and ../../configs for config.yaml.
func Load(env, configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		v.Set("server.mode", env)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func validate(cfg *Config) error {
	if cfg.Catalog.MaxResources <= 0 {
		return fmt.Errorf("catalog.max_resources must be positive, got %d", cfg.Catalog.MaxResources)
	}
	if cfg.Funnel.PaidCapacity < 0 || cfg.Funnel.FreeCapacity < 0 {
		return fmt.Errorf("funnel capacities cannot be negative")
	}
	if cfg.Funnel.MinFreeResources > cfg.Funnel.FreeCapacity {
		return fmt.Errorf("funnel.min_free_resources (%d) exceeds funnel.free_capacity (%d)",
			cfg.Funnel.MinFreeResources, cfg.Funnel.FreeCapacity)
	}
	if cfg.Funnel.MinTotalResources > cfg.Funnel.PaidCapacity+cfg.Funnel.FreeCapacity {
		return fmt.Errorf("funnel.min_total_resources (%d) can never be reached with capacities %d+%d",
			cfg.Funnel.MinTotalResources, cfg.Funnel.PaidCapacity, cfg.Funnel.FreeCapacity)
	}
	if cfg.Feedback.ExpirySeconds <= 0 {
		return fmt.Errorf("feedback.expiry_seconds must be positive")
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	// Database defaults
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "storefront_dev")
	v.SetDefault("database.sqlite_path", "storefront.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Auth defaults
	v.SetDefault("auth.jwt.secret", "change-me-in-production")
	v.SetDefault("auth.jwt.access_exp_minutes", 60)

	// Engine constants
	v.SetDefault("catalog.max_resources", 50)
	v.SetDefault("funnel.paid_capacity", 3)
	v.SetDefault("funnel.free_capacity", 3)
	v.SetDefault("funnel.min_total_resources", 3)
	v.SetDefault("funnel.min_free_resources", 1)
	v.SetDefault("feedback.expiry_seconds", 3)
	v.SetDefault("feedback.queue_size", 20)
	v.SetDefault("assignment.lock_ttl_seconds", 30)
	v.SetDefault("ratelimit.requests_per_minute", 0)

	// Generation defaults (empty endpoint selects the template generator)
	v.SetDefault("generation.endpoint", "")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.timeout_seconds", 60)
}
