// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full runtime configuration for the auth gateway.
type Config struct {
	Server   Server
	Auth     Auth
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
}

// Postgres captures the user-store database settings. An empty URL means the
// in-memory store is used (dev/tests).
type Postgres struct {
	URL string `env:"STERIHUB_DATABASE_URL"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"STERIHUB_ADDR" envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"STERIHUB_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Auth captures token issuance and login-protection settings.
type Auth struct {
	JWTSigningKey     string        `env:"STERIHUB_JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer            string        `env:"STERIHUB_JWT_ISSUER" envDefault:"sterihub-auth"`
	Audience          string        `env:"STERIHUB_JWT_AUDIENCE" envDefault:"sterihub"`
	AccessTokenTTL    time.Duration `env:"STERIHUB_ACCESS_TOKEN_TTL" envDefault:"1h"`
	RefreshTokenTTL   time.Duration `env:"STERIHUB_REFRESH_TOKEN_TTL" envDefault:"720h"`
	LockoutAttempts   int           `env:"STERIHUB_LOCKOUT_ATTEMPTS" envDefault:"5"`
	LockoutWindow     time.Duration `env:"STERIHUB_LOCKOUT_WINDOW" envDefault:"15m"`
	HardLockThreshold int           `env:"STERIHUB_HARD_LOCK_THRESHOLD" envDefault:"10"`
	HardLockDuration  time.Duration `env:"STERIHUB_HARD_LOCK_DURATION" envDefault:"15m"`
}

// Redis captures connection settings for the shared Redis instance.
// An empty URL means Redis is not configured and in-memory stores are used.
type Redis struct {
	URL          string        `env:"STERIHUB_REDIS_URL"`
	PoolSize     int           `env:"STERIHUB_REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"STERIHUB_REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"STERIHUB_REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"STERIHUB_REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"STERIHUB_REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Kafka captures the audit pipeline broker settings.
// Empty brokers disable audit publishing.
type Kafka struct {
	Brokers    []string `env:"STERIHUB_KAFKA_BROKERS" envSeparator:","`
	AuditTopic string   `env:"STERIHUB_KAFKA_AUDIT_TOPIC" envDefault:"sterihub.auth.audit"`
}

// Client captures the client-side login flow settings: the login endpoint
// base, the hard request timeout, and the retry budget.
type Client struct {
	BaseURL       string        `env:"STERIHUB_AUTH_BASE_URL" envDefault:"/functions/v1"`
	Timeout       time.Duration `env:"STERIHUB_AUTH_TIMEOUT" envDefault:"30s"`
	RetryAttempts int           `env:"STERIHUB_AUTH_RETRY_ATTEMPTS" envDefault:"3"`
}

// FromEnv parses the gateway configuration from the environment.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ClientFromEnv parses the client-side configuration from the environment.
func ClientFromEnv() (Client, error) {
	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return Client{}, fmt.Errorf("parse client config: %w", err)
	}
	return cfg, nil
}
