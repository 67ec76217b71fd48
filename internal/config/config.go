// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jbellec/marketwatch/internal/alert"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig                `mapstructure:"server"`
	Auth        AuthConfig                  `mapstructure:"auth"`
	Pipeline    PipelineConfig              `mapstructure:"pipeline"`
	Marketplace MarketplaceConfig           `mapstructure:"marketplace"`
	DB          DBConfig                    `mapstructure:"db"`
	PubSub      PubSubConfig                `mapstructure:"pubsub"`
	Logging     LoggingConfig               `mapstructure:"logging"`
	Plans       map[string]alert.PlanLimits `mapstructure:"plans"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// PipelineConfig governs scheduler and worker pool behavior.
type PipelineConfig struct {
	Workers       int `mapstructure:"workers"`
	QueueDepth    int `mapstructure:"queue_depth"`
	TickMillis    int `mapstructure:"tick_millis"`
	MinIntervalMS int `mapstructure:"min_check_interval_millis"`
}

// MarketplaceConfig configures the upstream catalog client.
type MarketplaceConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	PerPage        int     `mapstructure:"per_page"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	RateBurst      int     `mapstructure:"rate_burst"`
}

// DBConfig controls access to the relational database. An empty DSN keeps
// the service on in-memory stores.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table_prefix"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MARKETWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queue_depth", 256)
	v.SetDefault("pipeline.tick_millis", 1000)
	v.SetDefault("pipeline.min_check_interval_millis", 5000)
	v.SetDefault("marketplace.base_url", "https://www.vinted.fr/api/v2")
	v.SetDefault("marketplace.user_agent", "marketwatch/0.1")
	v.SetDefault("marketplace.timeout_seconds", 15)
	v.SetDefault("marketplace.per_page", 96)
	v.SetDefault("marketplace.rate_per_second", 2)
	v.SetDefault("marketplace.rate_burst", 2)
	v.SetDefault("db.table_prefix", "marketwatch")
	v.SetDefault("logging.development", true)

	// Plan limits mirror the subscription tiers sold by the product.
	v.SetDefault("plans.free", map[string]any{
		"max_filters": 1, "max_checks_per_minute": 1, "max_alerts_per_day": 20,
	})
	v.SetDefault("plans.basic", map[string]any{
		"max_filters": 5, "max_checks_per_minute": 2, "max_alerts_per_day": 100,
	})
	v.SetDefault("plans.pro", map[string]any{
		"max_filters": 20, "max_checks_per_minute": 5, "max_alerts_per_day": 500,
	})
	v.SetDefault("plans.elite", map[string]any{
		"max_filters": 100, "max_checks_per_minute": 10, "max_alerts_per_day": 2000,
	})
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline.workers must be > 0")
	}
	if c.Pipeline.TickMillis <= 0 {
		return fmt.Errorf("pipeline.tick_millis must be > 0")
	}
	if c.Pipeline.MinIntervalMS < 0 {
		return fmt.Errorf("pipeline.min_check_interval_millis must be >= 0")
	}
	if c.Marketplace.TimeoutSeconds <= 0 {
		return fmt.Errorf("marketplace.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.PubSub.Enabled && (c.PubSub.ProjectID == "" || c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name are required when pubsub is enabled")
	}
	if _, ok := c.Plans[string(alert.PlanFree)]; !ok {
		return fmt.Errorf("plans.free must be configured")
	}
	for code, limits := range c.Plans {
		if limits.MaxFilters <= 0 || limits.MaxChecksPerMinute <= 0 || limits.MaxAlertsPerDay <= 0 {
			return fmt.Errorf("plan %q limits must all be > 0", code)
		}
	}
	return nil
}

// PlanLimits resolves the limits for a plan code, falling back to free.
func (c Config) PlanLimits(code alert.PlanCode) alert.PlanLimits {
	if limits, ok := c.Plans[string(code)]; ok {
		return limits
	}
	return c.Plans[string(alert.PlanFree)]
}

// Tick returns the scheduler tick interval.
func (c Config) Tick() time.Duration {
	return time.Duration(c.Pipeline.TickMillis) * time.Millisecond
}

// MinCheckInterval returns the system-wide lower bound between checks of a
// single filter, protecting the marketplace regardless of plan.
func (c Config) MinCheckInterval() time.Duration {
	return time.Duration(c.Pipeline.MinIntervalMS) * time.Millisecond
}

// FetchTimeout returns the per-fetch deadline.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Marketplace.TimeoutSeconds) * time.Second
}
