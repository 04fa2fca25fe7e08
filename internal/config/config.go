package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. MORTUARY_DB_HOST.
const EnvPrefix = "MORTUARY"

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Unclaimed  UnclaimedConfig  `mapstructure:"unclaimed"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	TxRetryAttempts int           `mapstructure:"tx_retry_attempts"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
	Issuer      string `mapstructure:"issuer"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	Retention     time.Duration `mapstructure:"retention"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type MonitoringConfig struct {
	Namespace   string `mapstructure:"namespace"`
}

type UnclaimedConfig struct {
	SweepSchedule   string `mapstructure:"sweep_schedule"`
	AutoMark        bool   `mapstructure:"auto_mark"`
	RetentionDays   int    `mapstructure:"retention_days"`
	WarningDays     int    `mapstructure:"warning_days"`
	CriticalDays    int    `mapstructure:"critical_days"`
	SystemActorID   int64  `mapstructure:"system_actor_id"`
	FollowUpDueDays int    `mapstructure:"follow_up_due_days"`
}

type SMTPConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	Username        string   `mapstructure:"username"`
	Password        string   `mapstructure:"password"`
	From            string   `mapstructure:"from"`
	AlertRecipients []string `mapstructure:"alert_recipients"`
}

// Enabled reports whether outbound mail is configured.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && len(c.AlertRecipients) > 0
}

type DashboardConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// envOverrides are read with envconfig after the file has been loaded.
// Empty values leave the file setting untouched.
type envOverrides struct {
	DBDriver    string   `envconfig:"DB_DRIVER"`
	DBHost      string   `envconfig:"DB_HOST"`
	DBPort      int      `envconfig:"DB_PORT"`
	DBUser      string   `envconfig:"DB_USER"`
	DBPassword  string   `envconfig:"DB_PASSWORD"`
	DBName      string   `envconfig:"DB_NAME"`
	DBSSLMode   string   `envconfig:"DB_SSLMODE"`
	ServerPort  int      `envconfig:"SERVER_PORT"`
	JWTSecret   string   `envconfig:"JWT_SECRET"`
	RedisURL    string   `envconfig:"REDIS_URL"`
	SMTPHost    string   `envconfig:"SMTP_HOST"`
	SMTPPass    string   `envconfig:"SMTP_PASSWORD"`
	LogLevel    string   `envconfig:"LOG_LEVEL"`
	AutoMark    *bool    `envconfig:"UNCLAIMED_AUTO_MARK"`
	CORSOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "mortuary")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.tx_retry_attempts", 3)

	v.SetDefault("jwt.expiry_hours", 12)
	v.SetDefault("jwt.issuer", "mortuary-api")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 5)
	v.SetDefault("outbox.retry_delay", time.Second)
	v.SetDefault("outbox.retention", 7*24*time.Hour)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("monitoring.namespace", "mortuary")

	v.SetDefault("unclaimed.sweep_schedule", "0 * * * *")
	v.SetDefault("unclaimed.auto_mark", false)
	v.SetDefault("unclaimed.retention_days", 30)
	v.SetDefault("unclaimed.warning_days", 14)
	v.SetDefault("unclaimed.critical_days", 21)
	v.SetDefault("unclaimed.follow_up_due_days", 7)

	v.SetDefault("smtp.port", 587)

	v.SetDefault("dashboard.cache_ttl", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)
}

// LoadConfig reads config.yml from the usual locations (or CONFIG_FILE),
// falls back to defaults when no file exists, then applies MORTUARY_*
// environment overrides.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to process environment: %w", err)
	}

	setString(&cfg.Database.Driver, env.DBDriver)
	setString(&cfg.Database.Host, env.DBHost)
	setString(&cfg.Database.User, env.DBUser)
	setString(&cfg.Database.Password, env.DBPassword)
	setString(&cfg.Database.Name, env.DBName)
	setString(&cfg.Database.SSLMode, env.DBSSLMode)
	setString(&cfg.JWT.Secret, env.JWTSecret)
	setString(&cfg.Redis.URL, env.RedisURL)
	setString(&cfg.SMTP.Host, env.SMTPHost)
	setString(&cfg.SMTP.Password, env.SMTPPass)
	setString(&cfg.Log.Level, env.LogLevel)
	if env.DBPort != 0 {
		cfg.Database.Port = env.DBPort
	}
	if env.ServerPort != 0 {
		cfg.Server.Port = env.ServerPort
	}
	if env.AutoMark != nil {
		cfg.Unclaimed.AutoMark = *env.AutoMark
	}
	if len(env.CORSOrigins) > 0 {
		cfg.CORS.AllowedOrigins = env.CORSOrigins
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) Validate() error {
	var problems []string
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		problems = append(problems, fmt.Sprintf("unknown database driver %q", c.Database.Driver))
	}
	if c.JWT.Secret == "" {
		problems = append(problems, "jwt secret is required")
	}
	if c.Unclaimed.CriticalDays < c.Unclaimed.WarningDays {
		problems = append(problems, "unclaimed critical_days must not be below warning_days")
	}
	if c.Database.TxRetryAttempts < 0 {
		problems = append(problems, "database tx_retry_attempts must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
