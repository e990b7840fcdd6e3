package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sevigo/archnet/internal/logger"
)

// Store drivers understood by the application.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds the application's configuration values.
type Config struct {
	Server   ServerConfig
	Database DBConfig
	Logging  logger.Config
	Jobs     JobsConfig
	Scorer   ScorerConfig
	Auth     AuthConfig
	Billing  BillingConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// WorkerToken authenticates calls from an external job queue or payment
	// relay to the internal endpoints.
	WorkerToken string
}

// DBConfig holds the database connection settings.
type DBConfig struct {
	Driver          string
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN builds a lib/pq connection string.
func (c DBConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, sslMode)
}

// JobsConfig sizes the background executor.
type JobsConfig struct {
	MaxWorkers    int
	QueueSize     int
	SweepInterval time.Duration
	StaleAfter    time.Duration
	// Lease is how long a job may sit in processing, or a quick job in
	// pending, before startup recovery treats its owner as gone.
	Lease time.Duration
}

// ScorerConfig controls the simulated benchmark latency.
type ScorerConfig struct {
	QuickLatency    time.Duration
	AdvancedLatency time.Duration
}

// AuthConfig configures session tokens.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// BillingConfig configures the payment gateway. When StripeSecretKey is empty
// the local gateway is used.
type BillingConfig struct {
	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string
	SuccessURL          string
	CancelURL           string
}

// Validate checks the invariants LoadConfig cannot express through defaults.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Database.Driver)
	}
	if c.Jobs.MaxWorkers <= 0 {
		return errors.New("MAX_WORKERS must be positive")
	}
	if c.Jobs.QueueSize <= 0 {
		return errors.New("JOB_QUEUE_SIZE must be positive")
	}
	if c.Scorer.QuickLatency < 0 || c.Scorer.AdvancedLatency < 0 {
		return errors.New("scorer latencies must not be negative")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("JWT_SECRET must be set and at least 16 characters long")
	}
	if c.Billing.StripeSecretKey != "" && c.Billing.StripeWebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET must be set when STRIPE_SECRET_KEY is configured")
	}
	return nil
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields. It uses the Viper
// library to handle configuration loading and precedence.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			slog.Error("failed to read config file", "error", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_READ_TIMEOUT", "10s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")

	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USERNAME", "archnet")
	v.SetDefault("DB_NAME", "archnet")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "1h")
	v.SetDefault("DB_CONN_MAX_IDLE_TIME", "30m")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_OUTPUT", "stdout")

	v.SetDefault("MAX_WORKERS", 4)
	v.SetDefault("JOB_QUEUE_SIZE", 100)
	v.SetDefault("JOB_SWEEP_INTERVAL", "1m")
	v.SetDefault("JOB_STALE_AFTER", "2m")
	v.SetDefault("JOB_LEASE", "5m")

	v.SetDefault("SCORER_QUICK_LATENCY", "3s")
	v.SetDefault("SCORER_ADVANCED_LATENCY", "8s")

	v.SetDefault("TOKEN_TTL", "24h")

	v.SetDefault("BILLING_CURRENCY", "usd")
	v.SetDefault("CHECKOUT_SUCCESS_URL", "http://localhost:8080/?session_id={CHECKOUT_SESSION_ID}")
	v.SetDefault("CHECKOUT_CANCEL_URL", "http://localhost:8080/?cancelled=true")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			ReadTimeout:  v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout: v.GetDuration("SERVER_WRITE_TIMEOUT"),
			WorkerToken:  v.GetString("WORKER_TOKEN"),
		},
		Database: DBConfig{
			Driver:          strings.ToLower(v.GetString("STORE_DRIVER")),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			Username:        v.GetString("DB_USERNAME"),
			Password:        v.GetString("DB_PASSWORD"),
			Database:        v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
			ConnMaxIdleTime: v.GetDuration("DB_CONN_MAX_IDLE_TIME"),
		},
		Logging: logger.Config{
			Level:  strings.ToLower(v.GetString("LOG_LEVEL")),
			Format: v.GetString("LOG_FORMAT"),
			Output: v.GetString("LOG_OUTPUT"),
		},
		Jobs: JobsConfig{
			MaxWorkers:    v.GetInt("MAX_WORKERS"),
			QueueSize:     v.GetInt("JOB_QUEUE_SIZE"),
			SweepInterval: v.GetDuration("JOB_SWEEP_INTERVAL"),
			StaleAfter:    v.GetDuration("JOB_STALE_AFTER"),
			Lease:         v.GetDuration("JOB_LEASE"),
		},
		Scorer: ScorerConfig{
			QuickLatency:    v.GetDuration("SCORER_QUICK_LATENCY"),
			AdvancedLatency: v.GetDuration("SCORER_ADVANCED_LATENCY"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			TokenTTL:  v.GetDuration("TOKEN_TTL"),
		},
		Billing: BillingConfig{
			StripeSecretKey:     v.GetString("STRIPE_SECRET_KEY"),
			StripeWebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
			Currency:            v.GetString("BILLING_CURRENCY"),
			SuccessURL:          v.GetString("CHECKOUT_SUCCESS_URL"),
			CancelURL:           v.GetString("CHECKOUT_CANCEL_URL"),
		},
	}
}
