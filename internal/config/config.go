package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the service configuration
type Config struct {
	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Access    AccessConfig    `mapstructure:"access"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`  // seconds
	WriteTimeout int      `mapstructure:"write_timeout"` // seconds
	IdleTimeout  int      `mapstructure:"idle_timeout"`  // seconds
	TLSEnabled   bool     `mapstructure:"tls_enabled"`
	TLSCertFile  string   `mapstructure:"tls_cert_file"`
	TLSKeyFile   string   `mapstructure:"tls_key_file"`
	CORSOrigins  []string `mapstructure:"cors_origins"`

	RateLimitEnabled bool `mapstructure:"rate_limit_enabled"`
	RequestsPerMin   int  `mapstructure:"requests_per_min"`
}

// DatabaseConfig holds relational store settings
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, sqlite3
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
	Path     string `mapstructure:"path"` // sqlite3 only
}

// RedisConfig holds message bus settings
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	Database  int    `mapstructure:"database"`
	PoolSize  int    `mapstructure:"pool_size"`
	QueueName string `mapstructure:"queue_name"`
}

// AuthConfig holds API authentication settings
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// AccessConfig holds access domain tunables
type AccessConfig struct {
	PINLength              int `mapstructure:"pin_length"`
	AntiPassbackWindowSecs int `mapstructure:"anti_passback_window_secs"`
}

// SchedulerConfig holds maintenance sweep settings
type SchedulerConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	GrantSweepSpec   string `mapstructure:"grant_sweep_spec"`
	VisitorSweepSpec string `mapstructure:"visitor_sweep_spec"`
	LogRetentionDays int    `mapstructure:"log_retention_days"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30,
			WriteTimeout:     30,
			IdleTimeout:      120,
			CORSOrigins:      []string{"*"},
			RateLimitEnabled: true,
			RequestsPerMin:   300,
		},
		Database: DatabaseConfig{
			Driver:  "postgres",
			Host:    "localhost",
			Port:    5432,
			Name:    "access_control",
			User:    "postgres",
			SSLMode: "disable",
			Path:    "./access.db",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			QueueName: "access-events",
		},
		Auth: AuthConfig{
			Enabled: true,
		},
		Access: AccessConfig{
			PINLength:              6,
			AntiPassbackWindowSecs: 300,
		},
		Scheduler: SchedulerConfig{
			Enabled:          true,
			GrantSweepSpec:   "@every 1m",
			VisitorSweepSpec: "@every 5m",
			LogRetentionDays: 0,
		},
	}
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/building-access-service")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".building-access-service"))
		}
	}

	v.SetEnvPrefix("ACCESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)

	v.SetDefault("server.host", cfg.Server.Host)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.cors_origins", cfg.Server.CORSOrigins)
	v.SetDefault("server.rate_limit_enabled", cfg.Server.RateLimitEnabled)
	v.SetDefault("server.requests_per_min", cfg.Server.RequestsPerMin)

	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.name", cfg.Database.Name)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.ssl_mode", cfg.Database.SSLMode)
	v.SetDefault("database.path", cfg.Database.Path)

	v.SetDefault("redis.addr", cfg.Redis.Addr)
	v.SetDefault("redis.pool_size", cfg.Redis.PoolSize)
	v.SetDefault("redis.queue_name", cfg.Redis.QueueName)

	v.SetDefault("auth.enabled", cfg.Auth.Enabled)

	v.SetDefault("access.pin_length", cfg.Access.PINLength)
	v.SetDefault("access.anti_passback_window_secs", cfg.Access.AntiPassbackWindowSecs)

	v.SetDefault("scheduler.enabled", cfg.Scheduler.Enabled)
	v.SetDefault("scheduler.grant_sweep_spec", cfg.Scheduler.GrantSweepSpec)
	v.SetDefault("scheduler.visitor_sweep_spec", cfg.Scheduler.VisitorSweepSpec)
	v.SetDefault("scheduler.log_retention_days", cfg.Scheduler.LogRetentionDays)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.TLSEnabled && (c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "") {
		return fmt.Errorf("server.tls_cert_file and server.tls_key_file are required when TLS is enabled")
	}

	switch c.Database.Driver {
	case "postgres":
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required for postgres")
		}
	case "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite3")
		}
	default:
		return fmt.Errorf("database.driver must be one of: postgres, sqlite3")
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}

	if c.Access.PINLength < 4 || c.Access.PINLength > 10 {
		return fmt.Errorf("access.pin_length must be between 4 and 10")
	}
	if c.Access.AntiPassbackWindowSecs < 0 {
		return fmt.Errorf("access.anti_passback_window_secs must not be negative")
	}

	return nil
}
