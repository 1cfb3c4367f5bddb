package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, time.Hour, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 720*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Equal(t, 5, cfg.Auth.LockoutAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Auth.LockoutWindow)
	assert.Equal(t, 10, cfg.Auth.HardLockThreshold)
	assert.Empty(t, cfg.Postgres.URL, "no database configured by default")
	assert.Empty(t, cfg.Redis.URL, "no redis configured by default")
	assert.Empty(t, cfg.Kafka.Brokers, "no brokers configured by default")
	assert.Equal(t, "sterihub.auth.audit", cfg.Kafka.AuditTopic)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STERIHUB_ADDR", ":9090")
	t.Setenv("STERIHUB_ACCESS_TOKEN_TTL", "30m")
	t.Setenv("STERIHUB_LOCKOUT_ATTEMPTS", "3")
	t.Setenv("STERIHUB_DATABASE_URL", "postgres://sterihub@localhost:5432/sterihub")
	t.Setenv("STERIHUB_KAFKA_BROKERS", "broker-1:9092,broker-2:9092")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 3, cfg.Auth.LockoutAttempts)
	assert.Equal(t, "postgres://sterihub@localhost:5432/sterihub", cfg.Postgres.URL)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
}

func TestFromEnvRejectsMalformedDuration(t *testing.T) {
	t.Setenv("STERIHUB_LOCKOUT_WINDOW", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestClientFromEnv(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := ClientFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "/functions/v1", cfg.BaseURL)
		assert.Equal(t, 30*time.Second, cfg.Timeout)
		assert.Equal(t, 3, cfg.RetryAttempts)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("STERIHUB_AUTH_BASE_URL", "https://auth.internal/functions/v1")
		t.Setenv("STERIHUB_AUTH_RETRY_ATTEMPTS", "1")

		cfg, err := ClientFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "https://auth.internal/functions/v1", cfg.BaseURL)
		assert.Equal(t, 1, cfg.RetryAttempts)
	})
}
