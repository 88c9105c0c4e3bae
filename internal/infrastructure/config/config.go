package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/atrium-dev/atrium/internal/shared/config"
)

type Config struct {
	Server      sharedConfig.ServerConfig      `mapstructure:"server"`
	Database    sharedConfig.DatabaseConfig    `mapstructure:"database"`
	Logger      sharedConfig.LoggerConfig      `mapstructure:"logger"`
	Registry    sharedConfig.RegistryConfig    `mapstructure:"registry"`
	TenantCache sharedConfig.TenantCacheConfig `mapstructure:"tenant_cache"`
	Tenancy     sharedConfig.TenancyConfig     `mapstructure:"tenancy"`
	Redis       sharedConfig.RedisConfig       `mapstructure:"redis"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables
func Load(env string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("ATRIUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Allow env parameter to override server mode if provided
	if env != "" && env != "default" {
		viper.Set("server.mode", env)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
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

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Administrative database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.database", "atrium_platform")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 50)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")

	// Tenant registry defaults
	viper.SetDefault("registry.base_url", "http://localhost:8080")
	viper.SetDefault("registry.timeout_seconds", 5)
	viper.SetDefault("registry.max_retries", 3)
	viper.SetDefault("registry.credential_secret", "change-me-in-production")

	// Tenant metadata cache defaults
	viper.SetDefault("tenant_cache.ttl_minutes", 30)
	viper.SetDefault("tenant_cache.max_entries", 1000)

	// Tenancy defaults
	viper.SetDefault("tenancy.database_per_tenant_enabled", false)
	viper.SetDefault("tenancy.drop_storage_on_failure", false)
	viper.SetDefault("tenancy.db_host", "localhost")
	viper.SetDefault("tenancy.db_port", 5432)
	viper.SetDefault("tenancy.admin_database", "atrium_platform")
	viper.SetDefault("tenancy.migrations_path", "./migrations/tenant")
	viper.SetDefault("tenancy.max_tenant_pools", 100)
	viper.SetDefault("tenancy.pool_idle_minutes", 30)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
}
