package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maoragency/Zomet-sub000/realtimetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	require.True(t, cfg.EnableDeduplication)
	require.True(t, cfg.EnableBatching)
	require.False(t, cfg.EnableThrottling)
	require.False(t, cfg.EnablePrioritization)
	require.False(t, cfg.EnableCompression)
}

func TestTestConfig(t *testing.T) {
	cfg := TestConfig()
	require.NoError(t, cfg.Validate())

	// Test timings must be materially faster than production defaults.
	def := DefaultConfig()
	require.Less(t, cfg.ReconnectDelay, def.ReconnectDelay)
	require.Less(t, cfg.HeartbeatInterval, def.HeartbeatInterval)
	require.Less(t, cfg.SubscriptionTimeout, def.SubscriptionTimeout)
}

func TestSetDefaults(t *testing.T) {
	cfg := Config{}
	SetDefaults(&cfg)

	def := DefaultConfig()
	require.Equal(t, def.MaxConnections, cfg.MaxConnections)
	require.Equal(t, def.ReconnectDelay, cfg.ReconnectDelay)
	require.Equal(t, def.MessageQueueSize, cfg.MessageQueueSize)
	require.Equal(t, def.CallbackRate, cfg.CallbackRate)

	// Feature switches are left alone.
	require.False(t, cfg.EnableDeduplication)
	require.False(t, cfg.EnableBatching)

	// Explicit values survive.
	cfg = Config{MaxConnections: 3, HeartbeatInterval: 5 * time.Second}
	SetDefaults(&cfg)
	require.Equal(t, 3, cfg.MaxConnections)
	require.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max connections", func(c *Config) { c.MaxConnections = 0 }},
		{"negative max reconnect attempts", func(c *Config) { c.MaxReconnectAttempts = -1 }},
		{"reconnect delay above cap", func(c *Config) {
			c.ReconnectDelay = time.Minute
			c.MaxReconnectDelay = time.Second
		}},
		{"zero heartbeat interval", func(c *Config) { c.HeartbeatInterval = 0 }},
		{"zero queue size", func(c *Config) { c.MessageQueueSize = 0 }},
		{"timeout below cleanup interval", func(c *Config) {
			c.SubscriptionTimeout = time.Second
			c.CleanupInterval = time.Minute
		}},
		{"throttling without delay", func(c *Config) {
			c.EnableThrottling = true
			c.ThrottleDelay = 0
		}},
		{"prioritization without rate", func(c *Config) {
			c.EnablePrioritization = true
			c.CallbackRate = 0
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateWithWarnings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCompression = true
	cfg.EnableThrottling = true
	cfg.ThrottleDelay = time.Millisecond
	cfg.HeartbeatInterval = 100 * time.Millisecond
	cfg.MaxConnections = 500

	// Warnings never fail; they only log.
	require.NoError(t, cfg.Validate())
	cfg.ValidateWithWarnings(realtimetest.NewTestLogger(t))
}
