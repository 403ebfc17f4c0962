package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("backfill:\n  symbols: [BTCUSDT]\n"))
	require.NoError(t, err)

	assert.Equal(t, "https://fapi.binance.com", cfg.Binance.BaseURL)
	assert.Equal(t, 5, cfg.Binance.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Binance.InterRequestDelay)
	assert.Equal(t, 3, cfg.Binance.MaxConsecutiveFails)
	assert.Equal(t, "1h", cfg.Backfill.Period)
	assert.Equal(t, 30, cfg.Backfill.Days)
	assert.Equal(t, "none", cfg.Sink.Type)
	assert.Equal(t, []string{"BTCUSDT"}, cfg.Backfill.Symbols)
	assert.Equal(t, 168*time.Hour, cfg.Checkpoint.TTL)
	assert.Equal(t, 0.5, cfg.Checkpoint.GCDiscardRatio)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 3, cfg.Kafka.Consumer.MaxRetries)
	assert.Equal(t, "futureshist/1.0", cfg.Binance.UserAgent)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"unknown sink":         "sink:\n  type: s3\n",
		"kafka without broker": "sink:\n  type: kafka\n",
		"bad log level":        "log:\n  level: loud\n",
		"not yaml":             "binance: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))

	t.Setenv("SYMBOLS", "BTCUSDT,ETHUSDT")
	t.Setenv("PERIOD", "4h")
	t.Setenv("SERVER_PORT", "9100")
	t.Setenv("SINK", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Backfill.Symbols)
	assert.Equal(t, "4h", cfg.Backfill.Period)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadWithEnv_NoFile(t *testing.T) {
	cfg, err := LoadWithEnv("")
	require.NoError(t, err)
	assert.Equal(t, Default().Binance, cfg.Binance)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParse_KeepsExplicitFalse(t *testing.T) {
	cfg, err := Parse([]byte("metrics:\n  enabled: false\ncheckpoint:\n  compress: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Checkpoint.Compress)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}
