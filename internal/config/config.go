package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Dataset  DatasetConfig
	Logger   LoggerConfig
	Security SecurityConfig
	Query    QueryConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatasetConfig selects where the sales table is loaded from. Driver is
// inferred from the file extension of Path when empty.
type DatasetConfig struct {
	Driver   string
	Path     string
	DSN      string
	Table    string
	Sheet    string
	CacheDir string
	Preload  bool
}

type LoggerConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	// Admin limits apply to /admin routes instead of the question limits.
	AdminRateLimitRPS   int
	AdminRateLimitBurst int
	AllowedOrigins      []string
	TrustedProxies      []string
	AdminToken          string
}

// QueryConfig holds the answer policies that have more than one reasonable
// reading.
type QueryConfig struct {
	LastNMonthsAnchor  string
	LastNMonthsAverage string
	Timezone           string
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := newViper()
	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Dataset: DatasetConfig{
			Driver:   strings.ToLower(v.GetString("dataset.driver")),
			Path:     v.GetString("dataset.path"),
			DSN:      v.GetString("dataset.dsn"),
			Table:    v.GetString("dataset.table"),
			Sheet:    v.GetString("dataset.sheet"),
			CacheDir: v.GetString("dataset.cache_dir"),
			Preload:  v.GetBool("dataset.preload"),
		},
		Logger: LoggerConfig{
			Level:      strings.ToLower(v.GetString("log.level")),
			Format:     strings.ToLower(v.GetString("log.format")),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		Security: SecurityConfig{
			EnableRateLimit:     v.GetBool("security.rate_limit_enabled"),
			RateLimitRPS:        v.GetInt("security.rate_limit_rps"),
			RateLimitBurst:      v.GetInt("security.rate_limit_burst"),
			AdminRateLimitRPS:   v.GetInt("security.admin_rate_limit_rps"),
			AdminRateLimitBurst: v.GetInt("security.admin_rate_limit_burst"),
			AllowedOrigins:      splitList(v.GetString("security.allowed_origins")),
			TrustedProxies:      splitList(v.GetString("security.trusted_proxies")),
			AdminToken:          v.GetString("security.admin_token"),
		},
		Query: QueryConfig{
			LastNMonthsAnchor:  strings.ToLower(v.GetString("query.last_n_months_anchor")),
			LastNMonthsAverage: strings.ToLower(v.GetString("query.last_n_months_average")),
			Timezone:           v.GetString("query.timezone"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8084)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("dataset.path", "data/sales.csv")
	v.SetDefault("dataset.table", "sales")
	v.SetDefault("dataset.preload", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 20)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("security.rate_limit_enabled", true)
	v.SetDefault("security.rate_limit_rps", 100)
	v.SetDefault("security.rate_limit_burst", 10)
	v.SetDefault("security.admin_rate_limit_rps", 1)
	v.SetDefault("security.admin_rate_limit_burst", 3)
	v.SetDefault("security.allowed_origins", "http://localhost:8084")
	v.SetDefault("security.trusted_proxies", "127.0.0.1")

	v.SetDefault("query.last_n_months_anchor", "calendar")
	v.SetDefault("query.last_n_months_average", "months")
	v.SetDefault("query.timezone", "Local")

	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	v.BindEnv("server.idle_timeout", "SERVER_IDLE_TIMEOUT")
	v.BindEnv("server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT")

	v.BindEnv("dataset.driver", "DATASET_DRIVER")
	v.BindEnv("dataset.path", "DATASET_PATH", "CSV_FILE")
	v.BindEnv("dataset.dsn", "DATASET_DSN", "DATABASE_URL")
	v.BindEnv("dataset.table", "DATASET_TABLE")
	v.BindEnv("dataset.sheet", "DATASET_SHEET")
	v.BindEnv("dataset.cache_dir", "DATASET_CACHE_DIR")
	v.BindEnv("dataset.preload", "DATASET_PRELOAD")

	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")
	v.BindEnv("log.file", "LOG_FILE")
	v.BindEnv("log.max_size_mb", "LOG_MAX_SIZE_MB")
	v.BindEnv("log.max_backups", "LOG_MAX_BACKUPS")
	v.BindEnv("log.max_age_days", "LOG_MAX_AGE_DAYS")

	v.BindEnv("security.rate_limit_enabled", "SECURITY_RATE_LIMIT_ENABLED")
	v.BindEnv("security.rate_limit_rps", "SECURITY_RATE_LIMIT_RPS")
	v.BindEnv("security.rate_limit_burst", "SECURITY_RATE_LIMIT_BURST")
	v.BindEnv("security.admin_rate_limit_rps", "SECURITY_ADMIN_RATE_LIMIT_RPS")
	v.BindEnv("security.admin_rate_limit_burst", "SECURITY_ADMIN_RATE_LIMIT_BURST")
	v.BindEnv("security.allowed_origins", "SECURITY_ALLOWED_ORIGINS")
	v.BindEnv("security.trusted_proxies", "SECURITY_TRUSTED_PROXIES")
	v.BindEnv("security.admin_token", "SECURITY_ADMIN_TOKEN")

	v.BindEnv("query.last_n_months_anchor", "QUERY_LAST_N_MONTHS_ANCHOR")
	v.BindEnv("query.last_n_months_average", "QUERY_LAST_N_MONTHS_AVERAGE")
	v.BindEnv("query.timezone", "QUERY_TIMEZONE", "TZ")

	return v
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	validDrivers := []string{"", "csv", "xlsx", "postgres", "sqlite"}
	if !slices.Contains(validDrivers, c.Dataset.Driver) {
		return fmt.Errorf("invalid dataset driver %q, must be one of: %s", c.Dataset.Driver, strings.Join(validDrivers[1:], ", "))
	}

	if c.Dataset.Driver == "postgres" {
		if c.Dataset.DSN == "" {
			return fmt.Errorf("dataset DSN cannot be empty for the postgres driver")
		}
	} else if c.Dataset.Path == "" {
		return fmt.Errorf("dataset path cannot be empty")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Logger.File != "" && c.Logger.MaxSizeMB <= 0 {
		return fmt.Errorf("log max size must be positive")
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.Security.AdminRateLimitRPS <= 0 || c.Security.AdminRateLimitBurst <= 0 {
		return fmt.Errorf("admin rate limit RPS and burst must be positive")
	}

	validAnchors := []string{"calendar", "flat30"}
	if !slices.Contains(validAnchors, c.Query.LastNMonthsAnchor) {
		return fmt.Errorf("invalid last-N-months anchor %q, must be one of: %s", c.Query.LastNMonthsAnchor, strings.Join(validAnchors, ", "))
	}

	validAverages := []string{"months", "count"}
	if !slices.Contains(validAverages, c.Query.LastNMonthsAverage) {
		return fmt.Errorf("invalid last-N-months average %q, must be one of: %s", c.Query.LastNMonthsAverage, strings.Join(validAverages, ", "))
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Query.Timezone, err)
	}

	return nil
}

// Location resolves the configured query time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Query.Timezone)
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
