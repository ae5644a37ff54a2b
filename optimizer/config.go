package optimizer

import (
	"time"

	"github.com/maoragency/Zomet-sub000/internal/logging"
	"github.com/maoragency/Zomet-sub000/internal/metrics"
	"github.com/maoragency/Zomet-sub000/types"
)

// Defaults applied by Config.applyDefaults.
const (
	// DefaultMaxSubscriptionsPerConsumer is the per-consumer quota before
	// oldest-first eviction kicks in.
	DefaultMaxSubscriptionsPerConsumer = 50

	// DefaultSubscriptionTimeout is the idle age after which the sweep
	// removes a subscription whose consumer never unsubscribed.
	DefaultSubscriptionTimeout = 10 * time.Minute

	// DefaultCleanupInterval is how often the idle sweep runs.
	DefaultCleanupInterval = 1 * time.Minute

	// DefaultThrottleDelay is the minimum spacing between invocations of
	// one throttled callback.
	DefaultThrottleDelay = 100 * time.Millisecond

	// DefaultCallbackRate is the sustained rate (per second) at which the
	// queued-callback processor drains batches.
	DefaultCallbackRate = 100

	// DefaultCallbackBurst is the rate limiter's burst allowance.
	DefaultCallbackBurst = 10
)

// callbackQueueName is the named queue carrying non-high-priority
// callback deliveries.
const callbackQueueName = "subscription_callbacks"

// Config configures an Optimizer.
//
// The boolean feature switches default to off; the root package's
// DefaultConfig turns deduplication and grouping on.
type Config struct {
	// MaxSubscriptionsPerConsumer is the per-consumer subscription quota.
	// A consumer at the quota has its least-recently-accessed
	// subscriptions evicted to make room; new subscribes never fail on
	// quota.
	MaxSubscriptionsPerConsumer int

	// SubscriptionTimeout is the lastAccessed age beyond which the
	// periodic sweep removes a subscription.
	SubscriptionTimeout time.Duration

	// CleanupInterval is the sweep period.
	CleanupInterval time.Duration

	// EnableDeduplication collapses identical (consumer, topic spec)
	// registrations onto one subscription.
	EnableDeduplication bool

	// EnableBatching shares one underlying connection among distinct
	// consumers of the same topic spec via a subscription group.
	EnableBatching bool

	// EnableThrottling coalesces rapid repeated deliveries to one callback
	// into a single trailing invocation per ThrottleDelay window.
	EnableThrottling bool

	// ThrottleDelay is the throttling window.
	ThrottleDelay time.Duration

	// EnablePrioritization classifies each event: high-priority events
	// invoke the callback synchronously, everything else flows through
	// the rate-limited callback queue. Requires Classifier.
	EnablePrioritization bool

	// Classifier maps events to priorities for prioritized delivery.
	Classifier types.Classifier

	// CallbackRate and CallbackBurst shape the queued-callback drain rate.
	CallbackRate  float64
	CallbackBurst int

	Logger  types.Logger
	Metrics types.MetricsCollector
}

// applyDefaults fills unset optional fields with package defaults.
func (cfg *Config) applyDefaults() {
	if cfg.MaxSubscriptionsPerConsumer == 0 {
		cfg.MaxSubscriptionsPerConsumer = DefaultMaxSubscriptionsPerConsumer
	}
	if cfg.SubscriptionTimeout == 0 {
		cfg.SubscriptionTimeout = DefaultSubscriptionTimeout
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}
	if cfg.ThrottleDelay == 0 {
		cfg.ThrottleDelay = DefaultThrottleDelay
	}
	if cfg.CallbackRate == 0 {
		cfg.CallbackRate = DefaultCallbackRate
	}
	if cfg.CallbackBurst == 0 {
		cfg.CallbackBurst = DefaultCallbackBurst
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
	// OnStatus, if set, receives status transitions of the underlying
	// connection, including the terminal error after reconnect exhaustion.
	OnStatus types.StatusCallback

	// EnableEventBatching buffers events of the same kind on the
	// underlying connection and delivers them together.
	EnableEventBatching bool

	// EventBatchDelay overrides the connection manager's default batching
	// window.
	EventBatchDelay time.Duration
}
