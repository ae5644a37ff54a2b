package queue

import (
	"time"

	"github.com/maoragency/Zomet-sub000/internal/logging"
	"github.com/maoragency/Zomet-sub000/internal/metrics"
	"github.com/maoragency/Zomet-sub000/types"
)

// Defaults applied by Config.applyDefaults.
const (
	// DefaultMaxQueueSize bounds each named queue.
	DefaultMaxQueueSize = 1000

	// DefaultRetryDelay is the base retry backoff; attempt n waits
	// DefaultRetryDelay * 2^(n-1).
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetries is used when EnqueueOptions.MaxRetries is zero.
	DefaultMaxRetries = 3

	// DefaultDrainInterval is the deliberate yield between processor
	// invocations so one busy queue cannot starve the rest of the process.
	DefaultDrainInterval = 10 * time.Millisecond

	// DefaultBatchSize is used when BatchOptions.BatchSize is zero.
	DefaultBatchSize = 10

	// DefaultBatchTimeout flushes a partial batch after this long.
	DefaultBatchTimeout = 100 * time.Millisecond
)

// NoRetry disables retries for a message (initial attempt only).
const NoRetry = -1

// Config configures a queue Manager.
//
// Zero values are replaced by package defaults via applyDefaults().
type Config struct {
	// MaxQueueSize bounds each named queue. When full, the overflow
	// policy evicts the oldest low-priority message (else oldest normal,
	// else oldest overall) before inserting.
	MaxQueueSize int

	// RetryDelay is the base backoff for retrying failed messages.
	RetryDelay time.Duration

	// DefaultMaxRetries applies to messages enqueued without an explicit
	// MaxRetries.
	DefaultMaxRetries int

	// DrainInterval is the pause between processor invocations within
	// one queue's drain loop.
	DrainInterval time.Duration

	Logger  types.Logger
	Metrics types.MetricsCollector
}

// applyDefaults fills unset optional fields with package defaults.
func (cfg *Config) applyDefaults() {
	if cfg.MaxQueueSize == 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.DefaultMaxRetries == 0 {
		cfg.DefaultMaxRetries = DefaultMaxRetries
	}
	if cfg.DrainInterval == 0 {
		cfg.DrainInterval = DefaultDrainInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
}

// EnqueueOptions configures a single Enqueue call.
type EnqueueOptions struct {
	// Priority selects the drain tier. Zero value is PriorityNormal.
	Priority types.Priority

	// MaxRetries overrides the manager's DefaultMaxRetries. Zero uses
	// the default; NoRetry disables retries entirely.
	MaxRetries int

	// Delay defers processing until approximately Delay from now.
	Delay time.Duration

	// Metadata carries optional key-value pairs through to the processor.
	Metadata map[string]string
}

// BatchOptions configures a batched processor registration.
type BatchOptions struct {
	// BatchSize is the maximum number of messages per invocation.
	BatchSize int

	// BatchTimeout flushes a partial batch after this long once at
	// least one message is ready.
	BatchTimeout time.Duration
}

func (o *BatchOptions) applyDefaults() {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = DefaultBatchTimeout
	}
}
