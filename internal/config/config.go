package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Weather WeatherConfig `yaml:"weather" mapstructure:"weather"`
	Charts  ChartsConfig  `yaml:"charts" mapstructure:"charts"`
	Index   IndexConfig   `yaml:"index" mapstructure:"index"`
	Fetch   FetchConfig   `yaml:"fetch" mapstructure:"fetch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Search  SearchConfig  `yaml:"search" mapstructure:"search"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// LogConfig configures logging. File enables a rotated log file in
// addition to stderr.
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	Format     string `yaml:"format" mapstructure:"format"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// WeatherConfig configures the METAR cache.
type WeatherConfig struct {
	BaseURL            string `yaml:"base_url" mapstructure:"base_url"`
	MaxEntries         int    `yaml:"max_entries" mapstructure:"max_entries"`
	RefreshConcurrency int    `yaml:"refresh_concurrency" mapstructure:"refresh_concurrency"`
	TimeoutSecs        int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout bounds one METAR request.
func (w WeatherConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSecs) * time.Second
}

// ChartsConfig configures chart region storage and the catalog source.
// CatalogURL takes precedence over CatalogPath when both are set.
type ChartsConfig struct {
	Dir                    string `yaml:"dir" mapstructure:"dir"`
	CatalogPath            string `yaml:"catalog_path" mapstructure:"catalog_path"`
	CatalogURL             string `yaml:"catalog_url" mapstructure:"catalog_url"`
	MaxConcurrentDownloads int    `yaml:"max_concurrent_downloads" mapstructure:"max_concurrent_downloads"`
}

// IndexConfig selects the geospatial index strategy.
type IndexConfig struct {
	Strategy string `yaml:"strategy" mapstructure:"strategy"`
}

// FetchConfig configures the network fetcher.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`

	InitialBackoffMS int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	// BreakerThreshold consecutive transient failures open a host's circuit
	// for BreakerResetSecs.
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// Timeout bounds the wait for response headers on a download.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// SearchConfig configures type-ahead airport search.
type SearchConfig struct {
	DebounceMS int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// Debounce is the quiet period before a search runs.
func (s SearchConfig) Debounce() time.Duration {
	return time.Duration(s.DebounceMS) * time.Millisecond
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.efb")

	// Environment
	v.SetEnvPrefix("EFB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "efb.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 32)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("weather.base_url", "https://aviationweather.gov/api/data/metar")
	v.SetDefault("weather.max_entries", 512)
	v.SetDefault("weather.refresh_concurrency", 4)
	v.SetDefault("weather.timeout_secs", 15)
	v.SetDefault("charts.dir", "charts")
	v.SetDefault("charts.catalog_path", "catalog.yaml")
	v.SetDefault("charts.catalog_url", "")
	v.SetDefault("charts.max_concurrent_downloads", 2)
	v.SetDefault("index.strategy", "grid")
	v.SetDefault("fetch.user_agent", "efb/1.0")
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.rate_per_sec", 5.0)
	v.SetDefault("fetch.initial_backoff_ms", 500)
	v.SetDefault("fetch.max_backoff_ms", 30000)
	v.SetDefault("fetch.breaker_threshold", 5)
	v.SetDefault("fetch.breaker_reset_secs", 30)
	v.SetDefault("server.port", 8212)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("search.debounce_ms", 250)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "weather", "charts", "airports", "plan", "migrate" and "serve"; serve
// checks everything.
func (c *Config) Validate(mode string) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			add("store.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			add("store.database_url is required for the postgres driver")
		}
	default:
		add("store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		add("log.level %q is not a valid level", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		add("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Fetch.MaxRetries < 0 {
		add("fetch.max_retries must be >= 0")
	}
	if c.Fetch.RatePerSec <= 0 {
		add("fetch.rate_per_sec must be > 0")
	}
	if c.Fetch.TimeoutSecs <= 0 {
		add("fetch.timeout_secs must be > 0")
	}

	weather := func() {
		if c.Weather.BaseURL == "" {
			add("weather.base_url is required")
		}
		if c.Weather.MaxEntries < 1 {
			add("weather.max_entries must be >= 1")
		}
		if c.Weather.RefreshConcurrency < 1 || c.Weather.RefreshConcurrency > 32 {
			add("weather.refresh_concurrency must be between 1 and 32")
		}
		if c.Weather.TimeoutSecs <= 0 {
			add("weather.timeout_secs must be > 0")
		}
	}
	charts := func() {
		if c.Charts.Dir == "" {
			add("charts.dir is required")
		}
		if c.Charts.CatalogPath == "" && c.Charts.CatalogURL == "" {
			add("charts.catalog_path or charts.catalog_url is required")
		}
		if c.Charts.MaxConcurrentDownloads < 1 || c.Charts.MaxConcurrentDownloads > 8 {
			add("charts.max_concurrent_downloads must be between 1 and 8")
		}
	}
	index := func() {
		if c.Index.Strategy != "scan" && c.Index.Strategy != "grid" {
			add("index.strategy must be scan or grid, got %q", c.Index.Strategy)
		}
	}

	switch mode {
	case "weather":
		weather()
	case "charts":
		charts()
	case "airports":
		index()
	case "plan", "migrate":
	case "serve":
		weather()
		charts()
		index()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			add("server.port must be > 0 and <= 65535")
		}
		if c.Search.DebounceMS < 0 {
			add("search.debounce_ms must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	logger, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// NewLogger builds a logger writing to stderr and, when cfg.File is set,
// to a size-rotated file.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	var opts []zap.Option
	if cfg.File != "" {
		rotated := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), rotated, zapCfg.Level)
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}
