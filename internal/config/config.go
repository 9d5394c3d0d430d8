// Package config loads and validates the Logfold configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the LF_ prefix (e.g., LF_DATABASE_HOST
// overrides database.host in the YAML). This layering allows the same binary
// to run with a config.yaml in local development and with pure environment
// variables in containerized deployments.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	Usage         UsageConfig         `mapstructure:"usage"`
	Jobs          JobsConfig          `mapstructure:"jobs"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// GetDSN builds the PostgreSQL connection string from the individual fields.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig holds the optional Redis connection used for the stats window
// cache and per-organization ingest rate limiting. When Addr is empty both
// features degrade gracefully: stats queries skip the cache and the router
// falls back to the in-process token-bucket limiter.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis address has been configured.
func (r *RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// APIKeyPrefix is the leading marker on organization ingest keys
	// (e.g. "lf_"); the remainder is compared against a bcrypt hash.
	APIKeyPrefix string `mapstructure:"api_key_prefix"`
	// JWTExpiry bounds the lifetime of user session tokens.
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
}

// IngestConfig bounds individual log records.
type IngestConfig struct {
	// MaxContentChars is the content length ceiling; longer content is
	// truncated with a trailing ellipsis marker.
	MaxContentChars int `mapstructure:"max_content_chars"`
	// MaxContextChars is the serialized-size ceiling for the additional
	// context map; larger maps are replaced with a placeholder note.
	MaxContextChars int `mapstructure:"max_context_chars"`
	// SearchResultCap bounds the number of rows a single search returns.
	SearchResultCap int `mapstructure:"search_result_cap"`
	// RatePerMinute is the per-organization ingest rate limit.
	RatePerMinute int `mapstructure:"rate_per_minute"`
}

// UsageConfig holds billing-cycle and quota policy configuration.
type UsageConfig struct {
	// DefaultCycleDays is the billing cycle length when an organization has
	// no retention setting of its own.
	DefaultCycleDays int `mapstructure:"default_cycle_days"`
	// SoftLimitThreshold is the log limit above which accounts are treated as
	// large and the per-cycle quota is advisory rather than enforced.
	SoftLimitThreshold int `mapstructure:"soft_limit_threshold"`
	// WarningRatio is the usage fraction at which a warning email goes out.
	WarningRatio float64 `mapstructure:"warning_ratio"`
	// WarningResendAfter suppresses repeat warning emails within the window.
	WarningResendAfter time.Duration `mapstructure:"warning_resend_after"`
}

// JobsConfig holds scheduled job cadences.
type JobsConfig struct {
	RuleEvalInterval      time.Duration `mapstructure:"rule_eval_interval"`
	UsageResetInterval    time.Duration `mapstructure:"usage_reset_interval"`
	RetentionInterval     time.Duration `mapstructure:"retention_interval"`
	RouteSnapshotInterval time.Duration `mapstructure:"route_snapshot_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	PrometheusEnabled bool `mapstructure:"prometheus_enabled"`
	PrometheusPort    int  `mapstructure:"prometheus_port"`
}

// NotificationsConfig holds email and SMS dispatch configuration.
type NotificationsConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	SMTP    SMTPConfig       `mapstructure:"smtp"`
	SMS     SMSGatewayConfig `mapstructure:"sms"`
}

// SMTPConfig holds SMTP server settings for outbound email.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

// SMSGatewayConfig holds the HTTP SMS gateway settings. The gateway receives a
// JSON POST {to, body} authenticated with a bearer token; any provider with a
// compatible relay (or a thin shim in front of one) can be plugged in.
type SMSGatewayConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
	From  string `mapstructure:"from"`
}

// Load reads configuration from the given path (or the default search
// locations when empty), applies environment overrides, and validates the
// result.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/logfold")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	v.SetEnvPrefix("LF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind environment variables for nested structures.
	// This is necessary because AutomaticEnv() doesn't work well with Unmarshal()
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)
	cfg.Notifications.SMTP.Password = expandEnv(cfg.Notifications.SMTP.Password)
	cfg.Notifications.SMS.Token = expandEnv(cfg.Notifications.SMS.Token)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for values that would make the server
// misbehave at runtime rather than fail fast at startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Ingest.MaxContentChars <= 0 {
		return fmt.Errorf("ingest.max_content_chars must be positive, got %d", c.Ingest.MaxContentChars)
	}
	if c.Ingest.MaxContextChars <= 0 {
		return fmt.Errorf("ingest.max_context_chars must be positive, got %d", c.Ingest.MaxContextChars)
	}
	if c.Usage.DefaultCycleDays <= 0 {
		return fmt.Errorf("usage.default_cycle_days must be positive, got %d", c.Usage.DefaultCycleDays)
	}
	if c.Usage.WarningRatio <= 0 || c.Usage.WarningRatio > 1 {
		return fmt.Errorf("usage.warning_ratio must be in (0, 1], got %v", c.Usage.WarningRatio)
	}
	if c.Notifications.Enabled && c.Notifications.SMTP.Host != "" && c.Notifications.SMTP.From == "" {
		return fmt.Errorf("notifications.smtp.from is required when an SMTP host is configured")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "logfold")
	v.SetDefault("database.user", "logfold")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Redis (disabled unless addr set)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	// Auth
	v.SetDefault("auth.api_key_prefix", "lf_")
	v.SetDefault("auth.jwt_expiry", "24h")

	// Ingest bounds
	v.SetDefault("ingest.max_content_chars", 1500)
	v.SetDefault("ingest.max_context_chars", 2200)
	v.SetDefault("ingest.search_result_cap", 300)
	v.SetDefault("ingest.rate_per_minute", 600)

	// Usage policy
	v.SetDefault("usage.default_cycle_days", 30)
	v.SetDefault("usage.soft_limit_threshold", 10000)
	v.SetDefault("usage.warning_ratio", 0.9)
	v.SetDefault("usage.warning_resend_after", "168h") // 7 days

	// Job cadences
	v.SetDefault("jobs.rule_eval_interval", "5m")
	v.SetDefault("jobs.usage_reset_interval", "1h")
	v.SetDefault("jobs.retention_interval", "24h")
	v.SetDefault("jobs.route_snapshot_interval", "30m")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry
	v.SetDefault("telemetry.prometheus_enabled", true)
	v.SetDefault("telemetry.prometheus_port", 9090)

	// Notifications
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("notifications.smtp.port", 587)
	v.SetDefault("notifications.smtp.use_tls", false)
}

// bindEnvVars explicitly binds each config key to its LF_ environment variable
// so that viper.Unmarshal sees env-only values even when no config file is
// present.
func bindEnvVars(v *viper.Viper) {
	keys := []string{
		"server.host", "server.port", "server.read_timeout", "server.write_timeout",
		"database.host", "database.port", "database.name", "database.user",
		"database.password", "database.ssl_mode", "database.max_connections",
		"database.min_idle_connections",
		"redis.addr", "redis.password", "redis.db",
		"auth.api_key_prefix", "auth.jwt_expiry",
		"ingest.max_content_chars", "ingest.max_context_chars",
		"ingest.search_result_cap", "ingest.rate_per_minute",
		"usage.default_cycle_days", "usage.soft_limit_threshold",
		"usage.warning_ratio", "usage.warning_resend_after",
		"jobs.rule_eval_interval", "jobs.usage_reset_interval",
		"jobs.retention_interval", "jobs.route_snapshot_interval",
		"logging.level", "logging.format",
		"telemetry.prometheus_enabled", "telemetry.prometheus_port",
		"notifications.enabled",
		"notifications.smtp.host", "notifications.smtp.port",
		"notifications.smtp.username", "notifications.smtp.password",
		"notifications.smtp.from", "notifications.smtp.use_tls",
		"notifications.sms.url", "notifications.sms.token", "notifications.sms.from",
	}
	for _, key := range keys {
		_ = v.BindEnv(key) // only errors on empty input
	}
}

// expandEnv resolves ${VAR} and $VAR references so secrets can be injected by
// the environment without appearing in config files.
func expandEnv(value string) string {
	if strings.Contains(value, "$") {
		return os.ExpandEnv(value)
	}
	return value
}
