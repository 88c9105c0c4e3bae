package config

import "fmt"

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig describes the administrative connection to the shared
// PostgreSQL cluster. Per-tenant connections are derived from registry
// records, not from this block.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.Username, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// RegistryConfig configures the remote tenant registry client.
type RegistryConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	MaxRetries       int    `mapstructure:"max_retries"`
	CredentialSecret string `mapstructure:"credential_secret"`
}

// TenantCacheConfig bounds the local tenant metadata cache.
type TenantCacheConfig struct {
	TTLMinutes int `mapstructure:"ttl_minutes"`
	MaxEntries int `mapstructure:"max_entries"`
}

// TenancyConfig controls provisioning, migration, and pool routing.
type TenancyConfig struct {
	DatabasePerTenantEnabled bool   `mapstructure:"database_per_tenant_enabled"`
	DropStorageOnFailure     bool   `mapstructure:"drop_storage_on_failure"`
	DBHost                   string `mapstructure:"db_host"`
	DBPort                   int    `mapstructure:"db_port"`
	AdminDatabase            string `mapstructure:"admin_database"`
	MigrationsPath           string `mapstructure:"migrations_path"`
	MaxTenantPools           int    `mapstructure:"max_tenant_pools"`
	PoolIdleMinutes          int    `mapstructure:"pool_idle_minutes"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
