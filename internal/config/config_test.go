package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load calls log.Fatal without a JWT secret, so every test must provide one.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_NAME", "")

	cfg := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "test-secret", cfg.JWT.Secret)
	assert.Equal(t, 24, cfg.JWT.ExpirationHours)
	assert.Equal(t, "canteen-backend", cfg.JWT.Issuer)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "canteen_db", cfg.Database.Name)
	assert.Equal(t, 100, cfg.Database.MaxConns)
	assert.Equal(t, 40*time.Second, cfg.Database.ConnectBudget)

	assert.Equal(t, "pos-agent", cfg.Agent.ConfigDir)
	assert.Equal(t, 2*time.Minute, cfg.Agent.HeartbeatTimeout)
	assert.Equal(t, 30*time.Second, cfg.Agent.MonitorInterval)
	assert.Equal(t, 5*time.Second, cfg.Agent.StaleRestartWait)
	assert.Equal(t, 10*time.Second, cfg.Agent.CrashRestartWait)

	assert.Equal(t, 1000, cfg.Print.MaxQueueDepth)
	assert.Equal(t, 10*time.Second, cfg.Print.AckTimeout)
	assert.Equal(t, 4, cfg.Print.MaxAttempts)

	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 1000, cfg.RateLimit.Unauth)
	assert.Equal(t, 5000, cfg.RateLimit.Auth)
	assert.Equal(t, 10000, cfg.RateLimit.Admin)
	assert.Equal(t, 50, cfg.RateLimit.Login)
	assert.Equal(t, 100, cfg.RateLimit.GenericPerMin)
}

func TestLoadDatabaseEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6432")
	t.Setenv("DB_USER", "canteen")
	t.Setenv("DB_PASSWORD", "hunter2")
	t.Setenv("DB_NAME", "canteen_prod")

	cfg := Load()
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6432, cfg.Database.Port)
	assert.Equal(t, "canteen", cfg.Database.User)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, "canteen_prod", cfg.Database.Name)
}

func TestLoadIgnoresMalformedDBPort(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DB_PORT", "not-a-port")

	cfg := Load()
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoadRedisServiceEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("REDIS_SERVICE_HOST", "redis.default.svc")
	t.Setenv("REDIS_SERVICE_PORT", "6380")
	t.Setenv("REDIS_PASSWORD", "cachepass")

	cfg := Load()
	assert.Equal(t, "redis.default.svc", cfg.Redis.Host)
	assert.Equal(t, 6380, cfg.Redis.Port)
	assert.Equal(t, "cachepass", cfg.Redis.Password)
}

func TestLoadRazorpayEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RAZORPAY_KEY_ID", "rzp_test_key")
	t.Setenv("RAZORPAY_KEY_SECRET", "rzp_secret")
	t.Setenv("RAZORPAY_WEBHOOK_SECRET", "whsec")

	cfg := Load()
	assert.Equal(t, "rzp_test_key", cfg.Razorpay.KeyID)
	assert.Equal(t, "rzp_secret", cfg.Razorpay.KeySecret)
	assert.Equal(t, "whsec", cfg.Razorpay.WebhookSecret)
}
