package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, int64(65536), cfg.ReadLimit)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 60*time.Second, cfg.PongWait)
	assert.Equal(t, 64, cfg.SendBuffer)
	assert.Equal(t, 50, cfg.RateLimit)
	assert.Equal(t, time.Second, cfg.RateInterval)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("DUO_PORT", "9090")
	t.Setenv("DUO_MODE", "debug")
	t.Setenv("DUO_PING_PERIOD", "5s")
	t.Setenv("DUO_PONG_WAIT", "7s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 5*time.Second, cfg.PingPeriod)
	assert.Equal(t, 7*time.Second, cfg.PongWait)
}

func TestLoadRejectsPingAfterPong(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("DUO_PING_PERIOD", "90s")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadClientDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "missing")
	t.Setenv("DUO_HANGUP_GRACE", "1s")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.ServerURL)
	assert.Equal(t, "http://localhost:8080/api", cfg.APIURL)
	assert.Equal(t, DefaultICEServers, cfg.ICEServers)
	assert.Equal(t, 2*time.Second, cfg.OfferFallback)
	assert.Equal(t, time.Second, cfg.HangupGrace)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
}
