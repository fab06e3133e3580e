package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete engine configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig contains constraint store configuration
type StoreConfig struct {
	// RulesPath is the durable JSON file holding the constraint set.
	RulesPath string `mapstructure:"rules_path"`
	// WatchEnabled reloads the rule set when the file changes on disk.
	WatchEnabled  bool          `mapstructure:"watch_enabled"`
	WatchDebounce time.Duration `mapstructure:"watch_debounce"`
}

// SupervisorConfig contains analytics store configuration
type SupervisorConfig struct {
	AnalyticsPath string `mapstructure:"analytics_path"`
	// HistoryLimit caps the trigger history per constraint; the oldest
	// entries are evicted first.
	HistoryLimit int `mapstructure:"history_limit"`
	// ExcerptLimit caps how much of a query is kept in trigger history.
	ExcerptLimit int `mapstructure:"excerpt_limit"`
	// DriftWindow is the history window used for drift detection.
	DriftWindow int `mapstructure:"drift_window"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("constraint-engine")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/constraint-engine")

	viper.SetEnvPrefix("CONSTRAINT_ENGINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; defaults and environment apply.
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 9108)
	viper.SetDefault("server.read_timeout", "5s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "10s")

	viper.SetDefault("store.rules_path", "data/constraints.json")
	viper.SetDefault("store.watch_enabled", true)
	viper.SetDefault("store.watch_debounce", "200ms")

	viper.SetDefault("supervisor.analytics_path", "data/constraint_analytics.json")
	viper.SetDefault("supervisor.history_limit", 50)
	viper.SetDefault("supervisor.excerpt_limit", 100)
	viper.SetDefault("supervisor.drift_window", 10)

	viper.SetDefault("metrics.enabled", true)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.environment", "production")
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}
	if c.Store.RulesPath == "" {
		return fmt.Errorf("store.rules_path is required")
	}
	if c.Store.WatchDebounce <= 0 {
		return fmt.Errorf("store.watch_debounce must be positive")
	}
	if c.Supervisor.AnalyticsPath == "" {
		return fmt.Errorf("supervisor.analytics_path is required")
	}
	if c.Supervisor.HistoryLimit < 1 {
		return fmt.Errorf("supervisor.history_limit must be at least 1")
	}
	if c.Supervisor.ExcerptLimit < 1 {
		return fmt.Errorf("supervisor.excerpt_limit must be at least 1")
	}
	if c.Supervisor.DriftWindow < 1 {
		return fmt.Errorf("supervisor.drift_window must be at least 1")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}
