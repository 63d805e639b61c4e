package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"stockwatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Collector CollectorConfig `mapstructure:"collector"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig covers the optional latest-row cache. An empty Addr disables
// the cache entirely.
type RedisConfig struct {
	Addr string        `mapstructure:"addr"`
	DB   int           `mapstructure:"db"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// CollectorConfig governs the sampling loop.
type CollectorConfig struct {
	Tickers       []string      `mapstructure:"tickers"`
	Exchange      string        `mapstructure:"exchange"`
	Interval      time.Duration `mapstructure:"interval"`
	TotalDuration time.Duration `mapstructure:"total_duration"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
	SourceBaseURL string        `mapstructure:"source_base_url"`
	UserAgent     string        `mapstructure:"user_agent"`
}

// AlertsConfig defines threshold alert evaluation and routing.
type AlertsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Rules    []RuleConfig  `mapstructure:"rules"`
}

// RuleConfig is one ticker's threshold alert definition.
type RuleConfig struct {
	Ticker    string  `mapstructure:"ticker"`
	Threshold float64 `mapstructure:"threshold"`
	Recipient string  `mapstructure:"recipient"`
}

// SMTPConfig carries outbound mail settings.
type SMTPConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Sender   string        `mapstructure:"sender"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// HTTPConfig configures the operator API listener.
type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// defaultTickers is the NSE watchlist sampled when none is configured.
var defaultTickers = []string{
	"INFY", "ADANIGREEN", "RELIANCE", "TCS", "HDFCBANK",
	"SBIN", "ITC", "HINDUNILVR", "BAJAJ-AUTO", "MARUTI",
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STOCKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stockwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("collector.tickers", defaultTickers)
	v.SetDefault("collector.exchange", "NSE")
	v.SetDefault("collector.interval", "2s")
	v.SetDefault("collector.total_duration", "0s")
	v.SetDefault("collector.fetch_timeout", "5s")
	v.SetDefault("collector.startup_delay", "0s")
	v.SetDefault("collector.source_base_url", "https://www.google.com/finance/quote")
	v.SetDefault("collector.user_agent", "Mozilla/5.0")

	v.SetDefault("alerts.enabled", false)
	v.SetDefault("alerts.interval", "5s")

	v.SetDefault("smtp.port", 465)
	v.SetDefault("smtp.timeout", "10s")

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.addr", ":8080")

	v.SetDefault("redis.ttl", "5m")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if len(c.Collector.Tickers) == 0 {
		return fmt.Errorf("collector.tickers must not be empty")
	}
	if c.Collector.Interval <= 0 {
		return fmt.Errorf("collector.interval must be greater than zero")
	}
	if c.Collector.TotalDuration < 0 {
		return fmt.Errorf("collector.total_duration cannot be negative")
	}
	if c.Collector.FetchTimeout <= 0 {
		return fmt.Errorf("collector.fetch_timeout must be greater than zero")
	}
	if c.Alerts.Interval <= 0 {
		return fmt.Errorf("alerts.interval must be greater than zero")
	}
	for _, rule := range c.Alerts.Rules {
		if rule.Ticker == "" {
			return fmt.Errorf("alerts.rules entries require a ticker")
		}
		if rule.Threshold < 0 {
			return fmt.Errorf("alert threshold for %s cannot be negative", rule.Ticker)
		}
		if c.Alerts.Enabled && rule.Recipient == "" {
			return fmt.Errorf("alert rule for %s requires a recipient", rule.Ticker)
		}
	}
	if c.Alerts.Enabled && len(c.Alerts.Rules) > 0 {
		if c.SMTP.Host == "" || c.SMTP.Sender == "" {
			return fmt.Errorf("smtp.host and smtp.sender are required when alerts are enabled")
		}
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
