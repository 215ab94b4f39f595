// Package config loads application settings with viper and sets up the
// global zap logger.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Schema     SchemaConfig     `yaml:"schema" mapstructure:"schema"`
}

// EngineConfig configures the remote estimation engine client.
type EngineConfig struct {
	Disabled       bool    `yaml:"disabled" mapstructure:"disabled"`
	FormURL        string  `yaml:"form_url" mapstructure:"form_url"`
	EngineURL      string  `yaml:"engine_url" mapstructure:"engine_url"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RetryDelayMs   int     `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	HealthAttempts int     `yaml:"health_attempts" mapstructure:"health_attempts"`
	Stair          int     `yaml:"stair" mapstructure:"stair"`
	Model          string  `yaml:"model" mapstructure:"model"`
	ButtonLabel    string  `yaml:"button_label" mapstructure:"button_label"`
	RatePerSec     float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MinParseRatio  float64 `yaml:"min_parse_ratio" mapstructure:"min_parse_ratio"`
	MinParseRows   int     `yaml:"min_parse_rows" mapstructure:"min_parse_rows"`
}

// Timeout returns the per-call timeout.
func (e EngineConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Disabled    bool   `yaml:"disabled" mapstructure:"disabled"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures run-history alerting in serve mode.
type MonitoringConfig struct {
	Enabled                 bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL              string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold    float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	AutomationRateThreshold float64 `yaml:"automation_rate_threshold" mapstructure:"automation_rate_threshold"`
	MinRuns                 int     `yaml:"min_runs" mapstructure:"min_runs"`
	CheckIntervalSecs       int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours     int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SchemaConfig points at an attribute schema file. Empty means the
// embedded default.
type SchemaConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COCO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("engine.disabled", false)
	v.SetDefault("engine.form_url", "https://miau.my-x.hu/myx-free/coco/beker_y0.php")
	v.SetDefault("engine.engine_url", "https://miau.my-x.hu/myx-free/coco/engine3.php")
	v.SetDefault("engine.user_agent", "Mozilla/5.0 WHR-OAM-COCO-Proxy")
	v.SetDefault("engine.timeout_secs", 60)
	v.SetDefault("engine.max_attempts", 3)
	v.SetDefault("engine.retry_delay_ms", 1500)
	v.SetDefault("engine.health_attempts", 2)
	v.SetDefault("engine.stair", 50)
	v.SetDefault("engine.model", "Y0")
	v.SetDefault("engine.button_label", "Futtatás")
	v.SetDefault("engine.rate_per_sec", 2.0)
	v.SetDefault("engine.min_parse_ratio", 0.8)
	v.SetDefault("engine.min_parse_rows", 3)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "coco.db")
	v.SetDefault("store.disabled", false)
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.automation_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_runs", 5)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("schema.file", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []string
	if !c.Engine.Disabled {
		if c.Engine.FormURL == "" {
			errs = append(errs, "engine.form_url is required")
		}
		if c.Engine.EngineURL == "" {
			errs = append(errs, "engine.engine_url is required")
		}
		if c.Engine.TimeoutSecs <= 0 {
			errs = append(errs, "engine.timeout_secs must be positive")
		}
		if c.Engine.MaxAttempts < 1 {
			errs = append(errs, "engine.max_attempts must be at least 1")
		}
		if c.Engine.MinParseRatio <= 0 || c.Engine.MinParseRatio > 1 {
			errs = append(errs, "engine.min_parse_ratio must be in (0, 1]")
		}
		if c.Engine.MinParseRows < 1 {
			errs = append(errs, "engine.min_parse_rows must be at least 1")
		}
	}
	if !c.Store.Disabled {
		switch strings.ToLower(c.Store.Driver) {
		case "sqlite", "postgres", "postgresql":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Monitoring.Enabled && c.Store.Disabled {
		errs = append(errs, "monitoring requires the run store")
	}
	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
