// Package config provides configuration management for the POS backend.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the POS backend.
type Config struct {
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	ControlPlane ControlPlaneConfig `mapstructure:"control_plane" yaml:"control_plane"`
	TenantPool   TenantPoolConfig   `mapstructure:"tenant_pool" yaml:"tenant_pool"`
	Registry     RegistryConfig     `mapstructure:"registry" yaml:"registry"`
	Auth         AuthConfig         `mapstructure:"auth" yaml:"auth"`
	Broadcast    BroadcastConfig    `mapstructure:"broadcast" yaml:"broadcast"`
	Idempotency  IdempotencyConfig  `mapstructure:"idempotency" yaml:"idempotency"`
	QR           QRConfig           `mapstructure:"qr" yaml:"qr"`
	RateLimiter  RateLimiterConfig  `mapstructure:"rate_limiter" yaml:"rate_limiter"`
	CORS         CORSConfig         `mapstructure:"cors" yaml:"cors"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// RequestTimeout bounds a single datastore operation, independent of the client connection.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// ControlPlaneConfig holds the MySQL server settings. The same server hosts
// the control-plane database and every per-restaurant database.
type ControlPlaneConfig struct {
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	User            string        `mapstructure:"user" yaml:"user"`
	Password        string        `mapstructure:"password" yaml:"-"`
	Database        string        `mapstructure:"database" yaml:"database"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
}

// TenantPoolConfig bounds the per-restaurant connection pools.
type TenantPoolConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	AcquireTimeout  time.Duration `mapstructure:"acquire_timeout" yaml:"acquire_timeout"`
	IdleTTL         time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl"`
}

// RegistryConfig holds tenant registry configuration.
type RegistryConfig struct {
	CacheTTL     time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
	CacheMaxSize int           `mapstructure:"cache_max_size" yaml:"cache_max_size"`
	BcryptCost   int           `mapstructure:"bcrypt_cost" yaml:"bcrypt_cost"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" yaml:"-"`
	Issuer    string `mapstructure:"issuer" yaml:"issuer"`
}

// BroadcastConfig holds live event delivery settings.
type BroadcastConfig struct {
	SendTimeout       time.Duration `mapstructure:"send_timeout" yaml:"send_timeout"`
	BufferSize        int           `mapstructure:"buffer_size" yaml:"buffer_size"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	Redis             RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig enables cross-instance event fan-out through Redis pub/sub.
type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr          string `mapstructure:"addr" yaml:"addr"`
	Password      string `mapstructure:"password" yaml:"-"`
	DB            int    `mapstructure:"db" yaml:"db"`
	ChannelPrefix string `mapstructure:"channel_prefix" yaml:"channel_prefix"`
	QueueSize     int    `mapstructure:"queue_size" yaml:"queue_size"`
}

// IdempotencyConfig controls replay of retried order submissions. It uses
// the broadcast Redis connection.
type IdempotencyConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl"`
	KeyPrefix string        `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// QRConfig controls the table QR codes handed to restaurants.
type QRConfig struct {
	// WebURL is the customer ordering site the code points at.
	WebURL string `mapstructure:"web_url" yaml:"web_url"`
	// Size is the PNG edge length in pixels.
	Size int `mapstructure:"size" yaml:"size"`
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size" yaml:"burst_size"`
}

// CORSConfig lists the dashboard origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port" yaml:"port"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/pos-backend/")
	}

	// POS_CONTROL_PLANE_HOST overrides control_plane.host, and so on.
	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "10s")

	// Control plane defaults
	v.SetDefault("control_plane.host", "localhost")
	v.SetDefault("control_plane.port", 3306)
	v.SetDefault("control_plane.user", "root")
	v.SetDefault("control_plane.password", "")
	v.SetDefault("control_plane.database", "pos_master")
	v.SetDefault("control_plane.max_open_conns", 10)
	v.SetDefault("control_plane.max_idle_conns", 5)
	v.SetDefault("control_plane.conn_max_lifetime", "5m")
	v.SetDefault("control_plane.dial_timeout", "10s")

	// Tenant pool defaults
	v.SetDefault("tenant_pool.max_open_conns", 5)
	v.SetDefault("tenant_pool.max_idle_conns", 2)
	v.SetDefault("tenant_pool.conn_max_lifetime", "5m")
	v.SetDefault("tenant_pool.acquire_timeout", "3s")
	v.SetDefault("tenant_pool.idle_ttl", "15m")

	// Registry defaults
	v.SetDefault("registry.cache_ttl", "10m")
	v.SetDefault("registry.cache_max_size", 10000)
	v.SetDefault("registry.bcrypt_cost", 10)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	// Broadcast defaults
	v.SetDefault("broadcast.send_timeout", "5s")
	v.SetDefault("broadcast.buffer_size", 64)
	v.SetDefault("broadcast.heartbeat_interval", "30s")
	v.SetDefault("broadcast.redis.enabled", false)
	v.SetDefault("broadcast.redis.addr", "localhost:6379")
	v.SetDefault("broadcast.redis.password", "")
	v.SetDefault("broadcast.redis.db", 0)
	v.SetDefault("broadcast.redis.channel_prefix", "pos:events")
	v.SetDefault("broadcast.redis.queue_size", 1024)

	// Idempotency defaults
	v.SetDefault("idempotency.enabled", false)
	v.SetDefault("idempotency.ttl", "24h")
	v.SetDefault("idempotency.key_prefix", "pos:idem")

	// QR defaults
	v.SetDefault("qr.web_url", "http://localhost:3000")
	v.SetDefault("qr.size", 256)

	// Rate limiter defaults
	v.SetDefault("rate_limiter.enabled", true)
	v.SetDefault("rate_limiter.requests_per_second", 500.0)
	v.SetDefault("rate_limiter.burst_size", 100)

	// CORS defaults
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request timeout must be positive")
	}

	if c.ControlPlane.Host == "" || c.ControlPlane.Database == "" {
		return fmt.Errorf("control plane host and database are required")
	}

	if c.TenantPool.MaxOpenConns <= 0 {
		return fmt.Errorf("tenant pool max open connections must be positive")
	}

	if c.TenantPool.AcquireTimeout <= 0 {
		return fmt.Errorf("tenant pool acquire timeout must be positive")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt secret is required")
	}

	if c.Broadcast.SendTimeout <= 0 {
		return fmt.Errorf("broadcast send timeout must be positive")
	}

	if c.Broadcast.BufferSize <= 0 {
		return fmt.Errorf("broadcast buffer size must be positive")
	}

	if c.Broadcast.Redis.Enabled && c.Broadcast.Redis.Addr == "" {
		return fmt.Errorf("broadcast redis address is required when redis is enabled")
	}

	if c.Broadcast.HeartbeatInterval <= 0 {
		return fmt.Errorf("broadcast heartbeat interval must be positive")
	}

	if c.QR.WebURL == "" {
		return fmt.Errorf("qr web url is required")
	}

	if c.QR.Size < 21 {
		return fmt.Errorf("qr size must be at least 21 pixels")
	}

	if c.Idempotency.Enabled {
		if !c.Broadcast.Redis.Enabled {
			return fmt.Errorf("idempotency requires broadcast redis to be enabled")
		}
		if c.Idempotency.TTL <= 0 {
			return fmt.Errorf("idempotency ttl must be positive")
		}
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("rate limiter burst size must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
	}

	return nil
}

// YAML renders the effective configuration. Secrets are omitted.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
