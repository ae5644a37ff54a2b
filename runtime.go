package realtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/maoragency/Zomet-sub000/connmgr"
	"github.com/maoragency/Zomet-sub000/internal/logging"
	"github.com/maoragency/Zomet-sub000/internal/metrics"
	"github.com/maoragency/Zomet-sub000/optimizer"
	"github.com/maoragency/Zomet-sub000/queue"
)

// Convenience aliases for the per-component option and handle types, so
// most consumers only import the root package.
type (
	Subscription     = optimizer.Subscription
	SubscribeOptions = optimizer.SubscribeOptions
	EnqueueOptions   = queue.EnqueueOptions
	BatchOptions     = queue.BatchOptions
	Processor        = queue.Processor
	BatchProcessor   = queue.BatchProcessor
)

// Runtime is the explicit context object wiring the three components
// together: the message queue, the connection manager over the event
// source, and the subscription optimizer on top of both.
//
// Construct one Runtime per process (or per test) and inject it where
// needed; there is no hidden global state.
type Runtime struct {
	cfg     Config
	logger  Logger
	metrics MetricsCollector

	conns  *connmgr.Manager
	queues *queue.Manager
	opt    *optimizer.Optimizer

	mu     sync.Mutex
	closed bool
}

// NewRuntime creates a Runtime over the given event source.
//
// Missing configuration values are filled with production defaults and the
// result is validated before any component starts.
//
// Parameters:
//   - cfg: Runtime configuration (see DefaultConfig)
//   - source: Opaque change-feed boundary (required)
//   - opts: Optional logger, metrics collector, and classifier
//
// Returns:
//   - *Runtime: Initialized runtime with all components running
//   - error: ErrEventSourceRequired, ErrInvalidConfig, or
//     ErrClassifierRequired
func NewRuntime(cfg Config, source EventSource, opts ...Option) (*Runtime, error) {
	if source == nil {
		return nil, ErrEventSourceRequired
	}

	options := &runtimeOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = logging.NewNop()
	}
	if options.metrics == nil {
		options.metrics = metrics.NewNop()
	}

	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.EnablePrioritization && options.classifier == nil {
		return nil, ErrClassifierRequired
	}
	cfg.ValidateWithWarnings(options.logger)

	queues := queue.NewManager(queue.Config{
		MaxQueueSize:      cfg.MessageQueueSize,
		RetryDelay:        cfg.RetryDelay,
		DefaultMaxRetries: cfg.MaxRetries,
		Logger:            options.logger,
		Metrics:           options.metrics,
	})

	conns, err := connmgr.NewManager(connmgr.Config{
		MaxConnections:       cfg.MaxConnections,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectDelay:    cfg.MaxReconnectDelay,
		HeartbeatInterval:    cfg.HeartbeatInterval,
		BatchDelay:           cfg.BatchDelay,
		IdleGracePeriod:      cfg.IdleGracePeriod,
		Logger:               options.logger,
		Metrics:              options.metrics,
	}, source)
	if err != nil {
		queues.Close()

		return nil, err
	}

	opt, err := optimizer.New(optimizer.Config{
		MaxSubscriptionsPerConsumer: cfg.MaxSubscriptionsPerConsumer,
		SubscriptionTimeout:         cfg.SubscriptionTimeout,
		CleanupInterval:             cfg.CleanupInterval,
		EnableDeduplication:         cfg.EnableDeduplication,
		EnableBatching:              cfg.EnableBatching,
		EnableThrottling:            cfg.EnableThrottling,
		ThrottleDelay:               cfg.ThrottleDelay,
		EnablePrioritization:        cfg.EnablePrioritization,
		Classifier:                  options.classifier,
		CallbackRate:                cfg.CallbackRate,
		CallbackBurst:               cfg.CallbackBurst,
		Logger:                      options.logger,
		Metrics:                     options.metrics,
	}, conns, queues)
	if err != nil {
		conns.Cleanup()
		queues.Close()

		return nil, err
	}

	options.logger.Info("realtime runtime started",
		"maxConnections", cfg.MaxConnections,
		"deduplication", cfg.EnableDeduplication,
		"batching", cfg.EnableBatching,
		"throttling", cfg.EnableThrottling,
		"prioritization", cfg.EnablePrioritization,
	)

	return &Runtime{
		cfg:     cfg,
		logger:  options.logger,
		metrics: options.metrics,
		conns:   conns,
		queues:  queues,
		opt:     opt,
	}, nil
}

// Subscribe registers a callback for a topic spec on behalf of a consumer.
// See optimizer.Optimizer.Subscribe for the deduplication, grouping, and
// quota semantics.
func (r *Runtime) Subscribe(ctx context.Context, consumerID string, spec TopicSpec, callback EventHandler, opts SubscribeOptions) (*Subscription, error) {
	return r.opt.Subscribe(ctx, consumerID, spec, callback, opts)
}

// Unsubscribe removes the callback behind a registration id. Idempotent.
func (r *Runtime) Unsubscribe(registrationID string) {
	r.opt.Unsubscribe(registrationID)
}

// Enqueue inserts a message into a named queue for decoupled background
// work. The queue is created on first use.
func (r *Runtime) Enqueue(queueName string, payload any, opts EnqueueOptions) (string, error) {
	return r.queues.Enqueue(queueName, payload, opts)
}

// SetProcessor registers the sequential processor for a named queue.
func (r *Runtime) SetProcessor(queueName string, fn Processor) error {
	return r.queues.SetProcessor(queueName, fn)
}

// SetBatchProcessor registers a batched processor for a named queue. A
// batch failure fails every message in that batch for retry purposes.
func (r *Runtime) SetBatchProcessor(queueName string, fn BatchProcessor, opts BatchOptions) error {
	return r.queues.SetBatchProcessor(queueName, fn, opts)
}

// SetOnline feeds the network-awareness policy hook. An offline→online
// transition reconnects every open connection.
func (r *Runtime) SetOnline(online bool) {
	r.conns.SetOnline(online)
}

// SetForeground feeds the visibility policy hook. Heartbeats pause while
// backgrounded.
func (r *Runtime) SetForeground(foreground bool) {
	r.conns.SetForeground(foreground)
}

// Connections exposes the connection manager for advanced use (direct
// topic subscriptions bypassing the optimizer).
func (r *Runtime) Connections() *connmgr.Manager { return r.conns }

// Queues exposes the queue manager for administrative controls
// (pause/resume/clear/remove).
func (r *Runtime) Queues() *queue.Manager { return r.queues }

// Stats returns point-in-time counters from all three components. No side
// effects.
func (r *Runtime) Stats() RuntimeStats {
	return RuntimeStats{
		Connections:   r.conns.Stats(),
		Queues:        r.queues.OverallStats(),
		Subscriptions: r.opt.Stats(),
	}
}

// Close shuts the runtime down: subscriptions first, then connections,
// then queues. Idempotent.
func (r *Runtime) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()

		return
	}
	r.closed = true
	r.mu.Unlock()

	r.opt.Close()
	r.conns.Cleanup()
	r.queues.Close()

	r.logger.Info("realtime runtime closed")
}

// RuntimeStats aggregates the stats of all three components.
type RuntimeStats struct {
	Connections   connmgr.ManagerStats
	Queues        queue.OverallStats
	Subscriptions optimizer.OptimizerStats
}
