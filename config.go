package realtime

import (
	"fmt"
	"time"
)

// Config is the configuration for the Runtime.
//
// All duration fields accept standard Go duration strings like "100ms",
// "30s", "5m" when loaded from YAML.
type Config struct {
	// MaxConnections is the advisory cap on concurrently open connections.
	// At the cap, idle connections are reclaimed least-recently-active
	// first; if none are reclaimable the subscribe still proceeds.
	MaxConnections int `yaml:"maxConnections"`

	// MaxReconnectAttempts bounds reconnection attempts per failure
	// episode before a connection is closed permanently.
	MaxReconnectAttempts int `yaml:"maxReconnectAttempts"`

	// ReconnectDelay is the base reconnect backoff; attempt n waits
	// ReconnectDelay * 2^(n-1).
	ReconnectDelay time.Duration `yaml:"reconnectDelay"`

	// MaxReconnectDelay caps the exponential reconnect backoff.
	MaxReconnectDelay time.Duration `yaml:"maxReconnectDelay"`

	// HeartbeatInterval is how often subscribed connections are pinged.
	// A connection idle for more than twice this interval is treated as
	// stale and reconnected.
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`

	// IdleGracePeriod is how long a connection with no subscribers stays
	// open before closing, absorbing resubscribe churn.
	IdleGracePeriod time.Duration `yaml:"idleGracePeriod"`

	// BatchDelay is the event-batching window for subscriptions that
	// enable batching.
	BatchDelay time.Duration `yaml:"batchDelay"`

	// MessageQueueSize bounds each named queue. When full, the overflow
	// policy evicts the oldest low-priority message first.
	MessageQueueSize int `yaml:"messageQueueSize"`

	// RetryDelay is the base backoff for retrying failed queue messages;
	// retry n waits RetryDelay * 2^(n-1).
	RetryDelay time.Duration `yaml:"retryDelay"`

	// MaxRetries is the default retry budget for queue messages enqueued
	// without an explicit one.
	MaxRetries int `yaml:"maxRetries"`

	// EnableBatching shares one underlying connection among distinct
	// consumers of the same topic spec via subscription groups.
	EnableBatching bool `yaml:"enableBatching"`

	// EnableCompression is accepted for configuration compatibility but
	// is a no-op: the transport handles its own framing.
	EnableCompression bool `yaml:"enableCompression"`

	// EnableDeduplication collapses identical (consumer, topic spec)
	// registrations onto one subscription.
	EnableDeduplication bool `yaml:"enableDeduplication"`

	// MaxSubscriptionsPerConsumer is the per-consumer subscription quota.
	// Over quota, the consumer's least-recently-accessed subscriptions
	// are evicted; subscribes never fail on quota.
	MaxSubscriptionsPerConsumer int `yaml:"maxSubscriptionsPerConsumer"`

	// SubscriptionTimeout is the idle age after which an abandoned
	// subscription is swept away.
	SubscriptionTimeout time.Duration `yaml:"subscriptionTimeout"`

	// CleanupInterval is how often the subscription sweep runs.
	CleanupInterval time.Duration `yaml:"cleanupInterval"`

	// EnableThrottling coalesces rapid repeated deliveries to one
	// callback into a single trailing invocation per ThrottleDelay.
	EnableThrottling bool `yaml:"enableThrottling"`

	// ThrottleDelay is the throttling window.
	ThrottleDelay time.Duration `yaml:"throttleDelay"`

	// EnablePrioritization routes events through the classifier:
	// high-priority events invoke callbacks synchronously, the rest flow
	// through the rate-limited callback queue. Requires WithClassifier.
	EnablePrioritization bool `yaml:"enablePrioritization"`

	// CallbackRate and CallbackBurst shape the queued-callback drain rate
	// (invocations per second and burst allowance).
	CallbackRate  float64 `yaml:"callbackRate"`
	CallbackBurst int     `yaml:"callbackBurst"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		MaxConnections:              10,
		MaxReconnectAttempts:        5,
		ReconnectDelay:              1 * time.Second,
		MaxReconnectDelay:           30 * time.Second,
		HeartbeatInterval:           30 * time.Second,
		IdleGracePeriod:             5 * time.Second,
		BatchDelay:                  100 * time.Millisecond,
		MessageQueueSize:            1000,
		RetryDelay:                  1 * time.Second,
		MaxRetries:                  3,
		EnableBatching:              true,
		EnableDeduplication:         true,
		MaxSubscriptionsPerConsumer: 50,
		SubscriptionTimeout:         10 * time.Minute,
		CleanupInterval:             1 * time.Minute,
		ThrottleDelay:               100 * time.Millisecond,
		CallbackRate:                100,
		CallbackBurst:               10,
	}
}

// SetDefaults fills in missing configuration values with production
// defaults. Boolean feature switches are left as-is; use DefaultConfig as
// the starting point to get deduplication and batching enabled.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func SetDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = defaults.MaxConnections
	}
	if cfg.MaxReconnectAttempts == 0 {
		cfg.MaxReconnectAttempts = defaults.MaxReconnectAttempts
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = defaults.ReconnectDelay
	}
	if cfg.MaxReconnectDelay == 0 {
		cfg.MaxReconnectDelay = defaults.MaxReconnectDelay
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = defaults.HeartbeatInterval
	}
	if cfg.IdleGracePeriod == 0 {
		cfg.IdleGracePeriod = defaults.IdleGracePeriod
	}
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = defaults.BatchDelay
	}
	if cfg.MessageQueueSize == 0 {
		cfg.MessageQueueSize = defaults.MessageQueueSize
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaults.RetryDelay
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.MaxSubscriptionsPerConsumer == 0 {
		cfg.MaxSubscriptionsPerConsumer = defaults.MaxSubscriptionsPerConsumer
	}
	if cfg.SubscriptionTimeout == 0 {
		cfg.SubscriptionTimeout = defaults.SubscriptionTimeout
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	if cfg.ThrottleDelay == 0 {
		cfg.ThrottleDelay = defaults.ThrottleDelay
	}
	if cfg.CallbackRate == 0 {
		cfg.CallbackRate = defaults.CallbackRate
	}
	if cfg.CallbackBurst == 0 {
		cfg.CallbackBurst = defaults.CallbackBurst
	}
}

// Validate checks configuration constraints and returns an error for
// invalid values.
//
// Hard Validation Rules:
//   - MaxConnections > 0
//   - MaxReconnectAttempts > 0
//   - ReconnectDelay <= MaxReconnectDelay
//   - HeartbeatInterval > 0
//   - MessageQueueSize > 0
//   - SubscriptionTimeout >= CleanupInterval (sweep must be able to fire)
//   - ThrottleDelay > 0 when throttling is enabled
//   - CallbackRate > 0 when prioritization is enabled
//
// Returns:
//   - error: Validation error with clear explanation, nil if valid
func (cfg *Config) Validate() error {
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("MaxConnections must be > 0, got %d", cfg.MaxConnections)
	}
	if cfg.MaxReconnectAttempts <= 0 {
		return fmt.Errorf("MaxReconnectAttempts must be > 0, got %d", cfg.MaxReconnectAttempts)
	}
	if cfg.ReconnectDelay > cfg.MaxReconnectDelay {
		return fmt.Errorf(
			"ReconnectDelay (%v) must be <= MaxReconnectDelay (%v)",
			cfg.ReconnectDelay, cfg.MaxReconnectDelay,
		)
	}
	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("HeartbeatInterval must be > 0, got %v", cfg.HeartbeatInterval)
	}
	if cfg.MessageQueueSize <= 0 {
		return fmt.Errorf("MessageQueueSize must be > 0, got %d", cfg.MessageQueueSize)
	}
	if cfg.SubscriptionTimeout < cfg.CleanupInterval {
		return fmt.Errorf(
			"SubscriptionTimeout (%v) must be >= CleanupInterval (%v)",
			cfg.SubscriptionTimeout, cfg.CleanupInterval,
		)
	}
	if cfg.EnableThrottling && cfg.ThrottleDelay <= 0 {
		return fmt.Errorf("ThrottleDelay must be > 0 when throttling is enabled, got %v", cfg.ThrottleDelay)
	}
	if cfg.EnablePrioritization && cfg.CallbackRate <= 0 {
		return fmt.Errorf("CallbackRate must be > 0 when prioritization is enabled, got %v", cfg.CallbackRate)
	}

	return nil
}

// ValidateWithWarnings checks configuration and logs warnings for
// non-recommended values.
//
// This is called after Validate() in NewRuntime() to provide operator
// guidance.
//
// Parameters:
//   - logger: Logger instance for warning output
func (cfg *Config) ValidateWithWarnings(logger Logger) {
	if cfg.EnableCompression {
		logger.Warn("EnableCompression is set but the transport handles its own framing; the option is a no-op")
	}

	if cfg.EnableThrottling && cfg.ThrottleDelay < 10*time.Millisecond {
		logger.Warn(
			"ThrottleDelay is very short, throttling will rarely coalesce",
			"throttleDelay", cfg.ThrottleDelay,
			"recommended", "100ms or higher",
		)
	}

	if cfg.HeartbeatInterval < time.Second {
		logger.Warn(
			"HeartbeatInterval is very short, may generate excessive control traffic",
			"heartbeatInterval", cfg.HeartbeatInterval,
			"recommended", "30s",
		)
	}

	if cfg.MaxConnections > 100 {
		logger.Warn(
			"MaxConnections is very high; consider enabling deduplication and batching instead",
			"maxConnections", cfg.MaxConnections,
		)
	}
}

// TestConfig returns a configuration optimized for fast test execution.
//
// Test timings are 10-100x faster than production defaults to enable rapid
// iteration without sacrificing coverage. Use DefaultConfig() for
// production deployments.
//
// Returns:
//   - Config: Configuration with fast timings for tests
//
// Example:
//
//	cfg := realtime.TestConfig()
//	cfg.MaxConnections = 3
//	rt, err := realtime.NewRuntime(cfg, source)
func TestConfig() Config {
	cfg := DefaultConfig()

	cfg.ReconnectDelay = 20 * time.Millisecond    // 50x faster
	cfg.MaxReconnectDelay = 500 * time.Millisecond
	cfg.HeartbeatInterval = 100 * time.Millisecond // 300x faster
	cfg.IdleGracePeriod = 50 * time.Millisecond
	cfg.BatchDelay = 20 * time.Millisecond
	cfg.RetryDelay = 10 * time.Millisecond
	cfg.SubscriptionTimeout = 1 * time.Second
	cfg.CleanupInterval = 100 * time.Millisecond
	cfg.ThrottleDelay = 30 * time.Millisecond

	return cfg
}
