package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("api")
	require.NoError(t, err)

	assert.Equal(t, "api", cfg.Server.ServiceName)
	assert.Equal(t, 80.0, cfg.Scoring.HighRiskThreshold)
	assert.Equal(t, 50.0, cfg.Scoring.MediumRiskThreshold)
	assert.Equal(t, 0.5, cfg.Scoring.SuspicionCutoff)
	assert.Equal(t, 0.7, cfg.Scoring.SimilarityThreshold)
	assert.Equal(t, "models/risk_scoring_model.gob", cfg.Scoring.ModelPath)
	assert.False(t, cfg.Events.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SCORING_HIGH_RISK_THRESHOLD", "75.5")
	t.Setenv("SCORING_WORKERS", "8")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("DB_NAME", "returnguard_test")

	cfg, err := Load("api")
	require.NoError(t, err)

	assert.Equal(t, 75.5, cfg.Scoring.HighRiskThreshold)
	assert.Equal(t, 8, cfg.Scoring.Workers)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, "returnguard_test", cfg.Database.DBName)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.internal",
		Port:     "5433",
		User:     "returns",
		Password: "secret",
		DBName:   "returnguard",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=db.internal port=5433 user=returns password=secret dbname=returnguard sslmode=require",
		cfg.DSN(),
	)
}

func TestRedisAddr(t *testing.T) {
	cfg := RedisConfig{Host: "cache.internal", Port: "6380"}
	assert.Equal(t, "cache.internal:6380", cfg.RedisAddr())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	assert.Equal(t, 7, getEnvAsInt("TEST_INT", 7))

	t.Setenv("TEST_FLOAT", "2.5")
	assert.Equal(t, 2.5, getEnvAsFloat("TEST_FLOAT", 1))

	t.Setenv("TEST_BOOL", "1")
	assert.True(t, getEnvAsBool("TEST_BOOL", false))

	assert.Equal(t, "fallback", getEnv("TEST_UNSET_KEY", "fallback"))
}
