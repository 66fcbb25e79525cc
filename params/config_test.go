package params

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	require.Equal(t, []string{"BTCUSD", "ETHUSD", "ADAUSD"}, cfg.Feed.Symbols)
	require.Equal(t, 300*time.Millisecond, cfg.Feed.TickInterval)
	require.Equal(t, 30*time.Second, cfg.Feed.HeartbeatInterval)
	require.Equal(t, 20, cfg.Feed.DefaultDepth)
	require.Equal(t, 100.0, cfg.Feed.FallbackMid)
	require.Equal(t, ":8080", cfg.Server.Addr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FEED_ADDR", ":9999")
	t.Setenv("FEED_SYMBOLS", "SOLUSD, DOTUSD")
	t.Setenv("FEED_TICK_MS", "150")
	t.Setenv("FEED_HEARTBEAT_MS", "5000")
	t.Setenv("FEED_DEFAULT_DEPTH", "10")
	t.Setenv("FEED_FALLBACK_MID", "42.5")
	t.Setenv("FEED_RNG_SEED", "7")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := LoadFromEnv("")

	require.Equal(t, ":9999", cfg.Server.Addr)
	require.Equal(t, []string{"SOLUSD", "DOTUSD"}, cfg.Feed.Symbols)
	require.Equal(t, 150*time.Millisecond, cfg.Feed.TickInterval)
	require.Equal(t, 5*time.Second, cfg.Feed.HeartbeatInterval)
	require.Equal(t, 10, cfg.Feed.DefaultDepth)
	require.Equal(t, 42.5, cfg.Feed.FallbackMid)
	require.Equal(t, int64(7), cfg.Feed.Seed)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestBadEnvValuesKeepDefaults(t *testing.T) {
	t.Setenv("FEED_TICK_MS", "not-a-number")
	t.Setenv("FEED_DEFAULT_DEPTH", "-2")
	t.Setenv("FEED_FALLBACK_MID", "0")

	cfg := LoadFromEnv("")

	require.Equal(t, 300*time.Millisecond, cfg.Feed.TickInterval)
	require.Equal(t, 20, cfg.Feed.DefaultDepth)
	require.Equal(t, 100.0, cfg.Feed.FallbackMid)
}
