package realtime

// Option configures a Runtime with optional dependencies.
type Option func(*runtimeOptions)

// runtimeOptions holds optional Runtime configuration.
type runtimeOptions struct {
	logger     Logger
	metrics    MetricsCollector
	classifier Classifier
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for NewRuntime
//
// Example:
//
//	logger := realtime.NewSlogLogger(slog.Default())
//	rt, err := realtime.NewRuntime(cfg, source, realtime.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *runtimeOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewRuntime
//
// Example:
//
//	collector := realtime.NewPrometheusMetrics(prometheus.DefaultRegisterer, "realtime")
//	rt, err := realtime.NewRuntime(cfg, source, realtime.WithMetrics(collector))
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *runtimeOptions) {
		o.metrics = metrics
	}
}

// WithClassifier sets the priority classifier used when prioritization is
// enabled. High-priority events invoke callbacks synchronously; everything
// else flows through the rate-limited callback queue.
//
// Parameters:
//   - classifier: Classifier mapping events to priorities
//
// Returns:
//   - Option: Functional option for NewRuntime
//
// Example:
//
//	classifier := realtime.ClassifierFunc(func(ev *realtime.ChangeEvent) realtime.Priority {
//	    if ev.Table == "orders" {
//	        return realtime.PriorityHigh
//	    }
//	    return realtime.PriorityNormal
//	})
//	rt, err := realtime.NewRuntime(cfg, source, realtime.WithClassifier(classifier))
func WithClassifier(classifier Classifier) Option {
	return func(o *runtimeOptions) {
		o.classifier = classifier
	}
}
