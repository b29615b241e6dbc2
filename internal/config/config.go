package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Log     LogConfig
	Auth    AuthConfig
	Payment PaymentConfig
	Redis   RedisConfig
	Outbox  OutboxConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Port            string `envconfig:"SERVER_PORT" default:"3000"`
	ShutdownTimeout int    `envconfig:"SHUTDOWN_TIMEOUT" default:"30"` // seconds
}

// DBConfig holds database-related configuration.
// WARNING: Default password is for local development only.
// In production, always set DB_PASSWORD via environment variable.
type DBConfig struct {
	Host       string `envconfig:"DB_HOST" default:"localhost"`
	Port       int    `envconfig:"DB_PORT" default:"5432"`
	User       string `envconfig:"DB_USER" default:"postgres"`
	Password   string `envconfig:"DB_PASSWORD" default:"postgres"` // CHANGE IN PRODUCTION
	Name       string `envconfig:"DB_NAME" default:"stays_db"`
	SSLMode    string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns   int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns   int    `envconfig:"DB_MIN_CONNS" default:"5"`
	MaxRetries int    `envconfig:"DB_MAX_RETRIES" default:"5"`
	Migrate    bool   `envconfig:"DB_MIGRATE" default:"true"`
}

// DSN returns the PostgreSQL connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d&pool_min_conns=%d",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode, c.MaxConns, c.MinConns)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Pretty bool   `envconfig:"LOG_PRETTY" default:"false"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `envconfig:"AUTH_JWT_SECRET" default:"dev-secret"` // CHANGE IN PRODUCTION
	Issuer    string `envconfig:"AUTH_ISSUER"`
}

// PaymentConfig points at the external payment capture provider.
type PaymentConfig struct {
	BaseURL      string        `envconfig:"PAYMENT_BASE_URL" default:"https://api-m.sandbox.paypal.com"`
	ClientID     string        `envconfig:"PAYMENT_CLIENT_ID"`
	ClientSecret string        `envconfig:"PAYMENT_CLIENT_SECRET"`
	Currency     string        `envconfig:"PAYMENT_CURRENCY" default:"USD"`
	Timeout      time.Duration `envconfig:"PAYMENT_TIMEOUT" default:"10s"`
}

// RedisConfig configures the notification channel. An empty Addr disables
// Redis and notifications are written to the log instead.
type RedisConfig struct {
	Addr          string `envconfig:"REDIS_ADDR"`
	Password      string `envconfig:"REDIS_PASSWORD"`
	DB            int    `envconfig:"REDIS_DB" default:"0"`
	ChannelPrefix string `envconfig:"REDIS_CHANNEL_PREFIX" default:"stays"`
}

// OutboxConfig tunes the notification dispatcher.
type OutboxConfig struct {
	PollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"2s"`
	BatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"50"`
	Workers      int           `envconfig:"OUTBOX_WORKERS" default:"4"`
	MaxAttempts  int           `envconfig:"OUTBOX_MAX_ATTEMPTS" default:"8"`
}

// Load reads an optional .env file and then parses environment variables
// into the Config struct. Variables already set in the environment win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
