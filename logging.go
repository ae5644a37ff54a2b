package realtime

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/maoragency/Zomet-sub000/internal/logging"
	"github.com/maoragency/Zomet-sub000/internal/metrics"
)

// NewSlogLogger adapts a slog.Logger to the Logger interface.
//
// Example:
//
//	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
//	logger := realtime.NewSlogLogger(slog.New(handler))
//	rt, err := realtime.NewRuntime(cfg, source, realtime.WithLogger(logger))
func NewSlogLogger(logger *slog.Logger) Logger {
	return logging.NewSlog(logger)
}

// NewNopLogger returns a Logger that discards all messages.
func NewNopLogger() Logger {
	return logging.NewNop()
}

// NewPrometheusMetrics returns a MetricsCollector backed by Prometheus.
//
// Parameters:
//   - reg: Prometheus registerer (prometheus.DefaultRegisterer if nil)
//   - namespace: Metrics namespace ("realtime" if empty)
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) MetricsCollector {
	return metrics.NewPrometheus(reg, namespace)
}

// NewNopMetrics returns a MetricsCollector that discards all metrics.
func NewNopMetrics() MetricsCollector {
	return metrics.NewNop()
}
