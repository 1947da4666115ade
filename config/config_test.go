package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5501", cfg.Addr)
	assert.Equal(t, "", cfg.DataFile)
	assert.Equal(t, 10*time.Millisecond, cfg.ReplayInterval)
	assert.Equal(t, 2, cfg.FeedMinConns)
	assert.Equal(t, 256, cfg.OutboundBuffer)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("EXCHANGE_ADDR", ":9000")
	t.Setenv("EXCHANGE_DATA_FILE", "/data/orders.csv")
	t.Setenv("EXCHANGE_REPLAY_INTERVAL", "250ms")
	t.Setenv("EXCHANGE_FEED_MIN_CONNS", "3")
	t.Setenv("EXCHANGE_OUTBOUND_BUFFER", "1024")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "/data/orders.csv", cfg.DataFile)
	assert.Equal(t, 250*time.Millisecond, cfg.ReplayInterval)
	assert.Equal(t, 3, cfg.FeedMinConns)
	assert.Equal(t, 1024, cfg.OutboundBuffer)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	t.Run("BadLogLevel", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "VERBOSE")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("BadThreshold", func(t *testing.T) {
		t.Setenv("EXCHANGE_FEED_MIN_CONNS", "0")
		_, err := Load()
		assert.Error(t, err)
	})
}
