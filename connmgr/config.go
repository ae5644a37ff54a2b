package connmgr

import (
	"time"

	"github.com/maoragency/Zomet-sub000/internal/logging"
	"github.com/maoragency/Zomet-sub000/internal/metrics"
	"github.com/maoragency/Zomet-sub000/types"
)

// Defaults applied by Config.applyDefaults.
const (
	DefaultMaxConnections       = 10
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = 1 * time.Second
	DefaultMaxReconnectDelay    = 30 * time.Second
	DefaultHeartbeatInterval    = 30 * time.Second
	DefaultBatchDelay           = 100 * time.Millisecond
	DefaultIdleGracePeriod      = 5 * time.Second
)

// Config configures a connection Manager.
//
// Zero values are replaced by package defaults via applyDefaults().
type Config struct {
	// MaxConnections is the advisory pool-size cap. When the pool is at
	// the cap and a new topic is subscribed, idle connections are
	// reclaimed first (least-recently-active first); if none are
	// reclaimable the subscribe still proceeds.
	MaxConnections int

	// MaxReconnectAttempts bounds reconnection attempts per failure
	// episode. Exceeding it closes the connection permanently.
	MaxReconnectAttempts int

	// ReconnectDelay is the base reconnect backoff; attempt n waits
	// ReconnectDelay * 2^(n-1).
	ReconnectDelay time.Duration

	// MaxReconnectDelay caps the exponential reconnect backoff.
	MaxReconnectDelay time.Duration

	// HeartbeatInterval is how often subscribed connections are pinged.
	// A connection whose activity age exceeds twice this interval is
	// treated as stale and routed through the reconnection path.
	HeartbeatInterval time.Duration

	// BatchDelay is the default event-batching window for subscriptions
	// that enable batching.
	BatchDelay time.Duration

	// IdleGracePeriod is how long a handler-less connection stays open
	// before closing, absorbing rapid resubscribe/unsubscribe churn.
	IdleGracePeriod time.Duration

	Logger  types.Logger
	Metrics types.MetricsCollector
}

// applyDefaults fills unset optional fields with package defaults.
func (cfg *Config) applyDefaults() {
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = DefaultMaxConnections
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.MaxReconnectDelay == 0 {
		cfg.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	if cfg.IdleGracePeriod == 0 {
		cfg.IdleGracePeriod = DefaultIdleGracePeriod
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
}

// SubscribeOptions configures a single Subscribe call.
type SubscribeOptions struct {
	// EnableBatching buffers events of the same kind for BatchDelay and
	// delivers them together. A lone event in a window is delivered
	// unwrapped.
	EnableBatching bool

	// BatchDelay overrides the manager's default batching window.
	BatchDelay time.Duration

	// OnStatus, if set, receives connection status transitions,
	// including the terminal error after reconnect exhaustion.
	OnStatus types.StatusCallback
}
