package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	for _, k := range []string{"PORT", "ANALYTICS_PORT", "DATABASE_URL", "KAFKA_BROKERS", "CORS_ORIGINS", "JWT_SECRET", "DLQ_MAX_RETRIES", "CACHE_TTL"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "8001", cfg.AnalyticsPort)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, "analytics-group", cfg.KafkaConsumerGroup)
	assert.Equal(t, 3, cfg.DLQMaxRetries)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CACHE_TTL", "120")
	t.Setenv("RATE_LIMIT_WINDOW", "30s")
	t.Setenv("DLQ_MAX_RETRIES", "not-a-number")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("TRACE_SAMPLE_RATIO", "0.25")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, 0.25, cfg.TraceSampleRatio)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 3, cfg.DLQMaxRetries)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("GO_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_RejectsNonPositive(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"RATE_LIMIT_WINDOW", "0"},
		{"RATE_LIMIT_WINDOW", "-5s"},
		{"RATE_LIMIT_REQUESTS", "0"},
		{"RATE_LIMIT_REQUESTS", "-1"},
		{"ETL_INTERVAL", "0s"},
		{"CACHE_TTL", "-1"},
		{"CONTEXT_TIMEOUT", "0"},
	}
	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv("GO_ENV", "test")
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tc.key+" must be positive", err.Error())
		})
	}
}

func TestParseCSV(t *testing.T) {
	assert.Nil(t, ParseCSV(""))
	assert.Equal(t, []string{"a", "b"}, ParseCSV(" a ,, b "))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "production", "warn", "event-service")
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, "event-service", line["service"])
	assert.Equal(t, "v", line["k"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("whatever"))
}
