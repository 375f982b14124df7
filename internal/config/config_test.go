package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Environment)
	assert.False(t, cfg.App.Production())
	assert.Equal(t, ":8000", cfg.HTTP.ListenAddr())
	assert.Equal(t, int64(10000), cfg.Quota.Daily)
	assert.Equal(t, int64(9000), cfg.Quota.WarningThreshold)
	assert.Equal(t, int64(9500), cfg.Quota.CircuitBreakerThreshold)
	assert.Equal(t, 30*time.Second, cfg.Lock.TTL)
	assert.Equal(t, 100*time.Millisecond, cfg.Lock.RetryDelay)
	assert.Equal(t, 10, cfg.Lock.MaxRetries)
	assert.Zero(t, cfg.Firebase.VerifyTimeout)
}

func TestLoad_LegacyEnv(t *testing.T) {
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("PORT", "9090")
	t.Setenv("FIREBASE_PROJECT_ID", "ttpro")
	t.Setenv("FIREBASE_CLIENT_EMAIL", "svc@ttpro.iam.gserviceaccount.com")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/etc/ttpro/sa.json")
	t.Setenv("YOUTUBE_DAILY_QUOTA", "20000")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.App.Production())
	assert.Equal(t, ":9090", cfg.HTTP.ListenAddr())
	assert.Equal(t, "ttpro", cfg.Firebase.ProjectID)
	assert.Equal(t, "svc@ttpro.iam.gserviceaccount.com", cfg.Firebase.ClientEmail)
	assert.Equal(t, "/etc/ttpro/sa.json", cfg.Firebase.CredentialsFile)
	assert.Equal(t, int64(20000), cfg.Quota.Daily)
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "legacy")
	t.Setenv("TTPRO_FIREBASE_PROJECT_ID", "prefixed")
	t.Setenv("TTPRO_RATE_LIMIT_RPS", "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "prefixed", cfg.Firebase.ProjectID)
	assert.Equal(t, 7, cfg.RateLimit.RPS)
}

func TestLoad_MergesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  addr: \":7000\"\nredis:\n  addr: \"127.0.0.1:6380\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.ListenAddr())
	assert.Equal(t, "127.0.0.1:6380", cfg.Redis.Addr)
	assert.Equal(t, 20, cfg.RateLimit.RPS)
}
