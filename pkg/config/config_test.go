package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envVars = []string{
	"APP_ENV", "LOG_LEVEL", "SKINSIGHT_ACCOUNT_ID",
	"DATABASE_URL", "DATABASE_DRIVER", "SQLITE_PATH",
	"REDIS_URL", "CREDIT_CACHE_TTL", "RABBITMQ_URL",
	"OUTBOX_POLL_INTERVAL", "OUTBOX_BATCH_SIZE", "OUTBOX_MAX_RETRIES",
	"OUTBOX_STATS_INTERVAL", "OUTBOX_RETENTION_DAYS", "OUTBOX_CLEANUP_INTERVAL",
	"OUTBOX_PROCESSOR_ENABLED", "WORKER_HEALTH_ADDR",
	"TRIAL_CREDITS", "TRIAL_DAYS", "LEDGER_RETRY_ATTEMPTS",
	"WEBHOOK_TIMEOUT", "WEBHOOK_BREAKER_THRESHOLD", "WEBHOOK_BREAKER_COOLDOWN",
	"STRIPE_API_KEY", "STRIPE_WEBHOOK_SECRET", "STRIPE_PRICE_STARTER",
	"STRIPE_PRICE_PROFESSIONAL", "STRIPE_SIGNATURE_TOLERANCE",
	"MCP_ADDR", "MCP_AUTH_TOKEN",
}

// clearEnv blanks every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.AccountID)

	// Local mode is the default when no DATABASE_URL is set
	assert.True(t, cfg.LocalMode)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Contains(t, cfg.SQLitePath, ".skinsight")

	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 30*time.Second, cfg.CreditCacheTTL)

	assert.Equal(t, 100*time.Millisecond, cfg.OutboxPollInterval)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.Equal(t, 5, cfg.OutboxMaxRetries)
	assert.Equal(t, 14*24*time.Hour, cfg.OutboxRetention())
	assert.True(t, cfg.OutboxProcessorEnabled)
	assert.Equal(t, "0.0.0.0:8081", cfg.WorkerHealthAddr)

	assert.Equal(t, 50, cfg.TrialCredits)
	assert.Equal(t, 30*24*time.Hour, cfg.TrialPeriod())
	assert.Equal(t, 5, cfg.LedgerRetryAttempts)

	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 5, cfg.WebhookBreakerThreshold)
	assert.Equal(t, time.Minute, cfg.WebhookBreakerCooldown)

	assert.Empty(t, cfg.StripeWebhookSecret)
	assert.Equal(t, 5*time.Minute, cfg.StripeSignatureTolerance)

	assert.Equal(t, "0.0.0.0:8082", cfg.MCPAddr)
	assert.Empty(t, cfg.MCPAuthToken)
}

func TestLoad_WithCustomEnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("SKINSIGHT_ACCOUNT_ID", "u_42")
	t.Setenv("CREDIT_CACHE_TTL", "2m")
	t.Setenv("TRIAL_CREDITS", "10")
	t.Setenv("TRIAL_DAYS", "7")
	t.Setenv("WEBHOOK_TIMEOUT", "3s")
	t.Setenv("WEBHOOK_BREAKER_THRESHOLD", "2")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_x")
	t.Setenv("STRIPE_PRICE_STARTER", "price_s")
	t.Setenv("STRIPE_PRICE_PROFESSIONAL", "price_p")
	t.Setenv("OUTBOX_PROCESSOR_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "u_42", cfg.AccountID)
	assert.Equal(t, 2*time.Minute, cfg.CreditCacheTTL)
	assert.Equal(t, 10, cfg.TrialCredits)
	assert.Equal(t, 7*24*time.Hour, cfg.TrialPeriod())
	assert.Equal(t, 3*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 2, cfg.WebhookBreakerThreshold)
	assert.Equal(t, "whsec_x", cfg.StripeWebhookSecret)
	assert.Equal(t, "price_s", cfg.StripePriceStarter)
	assert.Equal(t, "price_p", cfg.StripePriceProfessional)
	assert.False(t, cfg.OutboxProcessorEnabled)
}

func TestLoad_DatabaseDriver(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		driver    string
		want      string
		localMode bool
	}{
		{name: "url selects postgres", url: "postgres://localhost/skinsight", want: "postgres"},
		{name: "explicit sqlite wins", url: "postgres://localhost/skinsight", driver: "SQLite", want: "sqlite", localMode: true},
		{name: "nothing set", want: "sqlite", localMode: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("DATABASE_URL", tc.url)
			t.Setenv("DATABASE_DRIVER", tc.driver)

			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.DatabaseDriver)
			assert.Equal(t, tc.localMode, cfg.LocalMode)
		})
	}
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("SKINSIGHT_TEST_INT", "not-a-number")
	assert.Equal(t, 7, getIntEnv("SKINSIGHT_TEST_INT", 7))

	t.Setenv("SKINSIGHT_TEST_INT", "12")
	assert.Equal(t, 12, getIntEnv("SKINSIGHT_TEST_INT", 7))
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("SKINSIGHT_TEST_DURATION", "soon")
	assert.Equal(t, time.Second, getDurationEnv("SKINSIGHT_TEST_DURATION", time.Second))

	t.Setenv("SKINSIGHT_TEST_DURATION", "250ms")
	assert.Equal(t, 250*time.Millisecond, getDurationEnv("SKINSIGHT_TEST_DURATION", time.Second))
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("SKINSIGHT_TEST_BOOL", "maybe")
	assert.True(t, getBoolEnv("SKINSIGHT_TEST_BOOL", true))

	t.Setenv("SKINSIGHT_TEST_BOOL", "0")
	assert.False(t, getBoolEnv("SKINSIGHT_TEST_BOOL", true))
}

func TestDefaultSQLitePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	assert.Equal(t, filepath.Join(home, ".skinsight", "data.db"), defaultSQLitePath())
}
