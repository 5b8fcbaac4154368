package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	DNS      DNSConfig      `mapstructure:"dns"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Limits   LimitsConfig   `mapstructure:"limits"`
}

// ServerConfig defines the HTTP API and metrics endpoints
type ServerConfig struct {
	BindAddress string `mapstructure:"bind_address"`
	APIPort     int    `mapstructure:"api_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// RedisConfig defines the Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// DNSConfig defines the DNS sinkhole settings
type DNSConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Port            int      `mapstructure:"port"`
	BindAddress     string   `mapstructure:"bind_address"`
	EnableUDP       bool     `mapstructure:"enable_udp"`
	EnableTCP       bool     `mapstructure:"enable_tcp"`
	UpstreamServers []string `mapstructure:"upstream_servers"`
	BlockTTL        uint32   `mapstructure:"block_ttl"`
	UpstreamTimeout string   `mapstructure:"upstream_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackingConfig defines time attribution settings
type TrackingConfig struct {
	TickInterval  string `mapstructure:"tick_interval"`
	RetentionDays int    `mapstructure:"retention_days"`
	EventBuffer   int    `mapstructure:"event_buffer"`
}

// LimitsConfig defines policy enforcement settings
type LimitsConfig struct {
	NotificationCooldown string `mapstructure:"notification_cooldown"`
	DefaultUnlockMinutes int    `mapstructure:"default_unlock_minutes"`
	RegexCacheSize       int    `mapstructure:"regex_cache_size"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Configure viper
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("TABTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file; a missing file means defaults plus environment
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate config
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.api_port", 8799)
	v.SetDefault("server.metrics_port", 9099)

	// Redis defaults
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	// DNS defaults
	v.SetDefault("dns.enabled", false)
	v.SetDefault("dns.port", 53)
	v.SetDefault("dns.bind_address", "0.0.0.0")
	v.SetDefault("dns.enable_udp", true)
	v.SetDefault("dns.enable_tcp", true)
	v.SetDefault("dns.upstream_servers", []string{"8.8.8.8:53", "1.1.1.1:53"})
	v.SetDefault("dns.block_ttl", 60)
	v.SetDefault("dns.upstream_timeout", "5s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Tracking defaults
	v.SetDefault("tracking.tick_interval", "30s")
	v.SetDefault("tracking.retention_days", 90)
	v.SetDefault("tracking.event_buffer", 256)

	// Limits defaults
	v.SetDefault("limits.notification_cooldown", "5m")
	v.SetDefault("limits.default_unlock_minutes", 5)
	v.SetDefault("limits.regex_cache_size", 128)
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	if cfg.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}

	if cfg.DNS.Enabled {
		if cfg.DNS.Port <= 0 || cfg.DNS.Port > 65535 {
			return fmt.Errorf("invalid DNS port: %d", cfg.DNS.Port)
		}
		if len(cfg.DNS.UpstreamServers) == 0 {
			return fmt.Errorf("at least one upstream DNS server is required")
		}
	}

	if cfg.Tracking.RetentionDays <= 0 {
		return fmt.Errorf("retention_days must be positive")
	}

	return nil
}
