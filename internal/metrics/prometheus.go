package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/maoragency/Zomet-sub000/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// It instruments the connection pool, the named message queues and the
// subscription optimizer. Registration is lazy: collectors are created and
// registered on first use so that constructing the collector is cheap and
// never fails.
type PrometheusCollector struct {
	*NopMetrics

	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	// Connection pool metrics
	connOpened      *prometheus.CounterVec
	connClosed      *prometheus.CounterVec
	connReconnects  *prometheus.CounterVec
	connMessages    *prometheus.CounterVec
	connErrors      *prometheus.CounterVec
	connActiveGauge prometheus.Gauge

	// Queue metrics
	queueEnqueued  *prometheus.CounterVec
	queueProcessed *prometheus.CounterVec
	queueLatency   *prometheus.HistogramVec
	queueRetries   *prometheus.CounterVec
	queueFailures  *prometheus.CounterVec
	queueDrops     *prometheus.CounterVec
	queueDepth     *prometheus.GaugeVec

	// Subscription optimizer metrics
	subsCreated   *prometheus.CounterVec
	subsRemoved   *prometheus.CounterVec
	subsDedupHits prometheus.Counter
	subsFanout    prometheus.Histogram
	subsCoalesced prometheus.Counter
	subsEvictions *prometheus.CounterVec
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "realtime" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "realtime"
	}

	return &PrometheusCollector{NopMetrics: NewNop(), reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.connOpened = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "connections",
			Name:      "opened_total",
			Help:      "Total connections opened by topic.",
		}, []string{"topic"})

		p.connClosed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "connections",
			Name:      "closed_total",
			Help:      "Total connections closed by reason.",
		}, []string{"reason"})

		p.connReconnects = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "connections",
			Name:      "reconnect_attempts_total",
			Help:      "Total reconnection attempts by topic.",
		}, []string{"topic"})

		p.connMessages = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "connections",
			Name:      "messages_total",
			Help:      "Total change events received by topic.",
		}, []string{"topic"})

		p.connErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "connections",
			Name:      "errors_total",
			Help:      "Total transport errors by topic.",
		}, []string{"topic"})

		p.connActiveGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Current number of open connections in the pool.",
		})

		p.queueEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "enqueued_total",
			Help:      "Total messages enqueued by queue and priority.",
		}, []string{"queue", "priority"})

		p.queueProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "processed_total",
			Help:      "Total messages processed successfully by queue.",
		}, []string{"queue"})

		p.queueLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "process_duration_seconds",
			Help:      "Processor invocation latency in seconds by queue.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		}, []string{"queue"})

		p.queueRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "retries_total",
			Help:      "Total message retry attempts by queue.",
		}, []string{"queue"})

		p.queueFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "failed_total",
			Help:      "Total messages terminally failed after exhausting retries.",
		}, []string{"queue"})

		p.queueDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "dropped_total",
			Help:      "Total messages evicted by the overflow policy.",
		}, []string{"queue", "priority"})

		p.queueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Current number of pending messages by queue.",
		}, []string{"queue"})

		p.subsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriptions",
			Name:      "created_total",
			Help:      "Total subscriptions created by consumer.",
		}, []string{"consumer"})

		p.subsRemoved = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriptions",
			Name:      "removed_total",
			Help:      "Total subscriptions removed by reason.",
		}, []string{"reason"})

		p.subsDedupHits = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriptions",
			Name:      "dedup_hits_total",
			Help:      "Registrations collapsed onto an existing subscription.",
		})

		p.subsFanout = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "subscriptions",
			Name:      "group_fanout_size",
			Help:      "Callback fan-out size per grouped delivery.",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
		})

		p.subsCoalesced = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriptions",
			Name:      "throttle_coalesced_total",
			Help:      "Callback invocations absorbed by the throttling window.",
		})

		p.subsEvictions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "subscriptions",
			Name:      "quota_evictions_total",
			Help:      "Subscriptions evicted to enforce the per-consumer quota.",
		}, []string{"consumer"})

		collectors := []prometheus.Collector{
			p.connOpened, p.connClosed, p.connReconnects, p.connMessages, p.connErrors, p.connActiveGauge,
			p.queueEnqueued, p.queueProcessed, p.queueLatency, p.queueRetries, p.queueFailures, p.queueDrops, p.queueDepth,
			p.subsCreated, p.subsRemoved, p.subsDedupHits, p.subsFanout, p.subsCoalesced, p.subsEvictions,
		}
		for _, c := range collectors {
			// AlreadyRegisteredError is tolerated so two collectors can share a registry.
			if err := p.reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
}

// RecordConnectionOpened increments the opened counter for a topic.
func (p *PrometheusCollector) RecordConnectionOpened(topic string) {
	p.ensureRegistered()
	p.connOpened.WithLabelValues(topic).Inc()
}

// RecordConnectionClosed increments the closed counter for a reason.
func (p *PrometheusCollector) RecordConnectionClosed(_ string, reason string) {
	p.ensureRegistered()
	p.connClosed.WithLabelValues(reason).Inc()
}

// RecordReconnectAttempt increments the reconnect counter for a topic.
func (p *PrometheusCollector) RecordReconnectAttempt(topic string, _ int) {
	p.ensureRegistered()
	p.connReconnects.WithLabelValues(topic).Inc()
}

// RecordConnectionMessage increments the message counter for a topic.
func (p *PrometheusCollector) RecordConnectionMessage(topic string) {
	p.ensureRegistered()
	p.connMessages.WithLabelValues(topic).Inc()
}

// RecordConnectionError increments the error counter for a topic.
func (p *PrometheusCollector) RecordConnectionError(topic string) {
	p.ensureRegistered()
	p.connErrors.WithLabelValues(topic).Inc()
}

// RecordActiveConnections sets the active connections gauge.
func (p *PrometheusCollector) RecordActiveConnections(count int) {
	p.ensureRegistered()
	p.connActiveGauge.Set(float64(count))
}

// RecordEnqueue increments the enqueue counter.
func (p *PrometheusCollector) RecordEnqueue(queue string, priority string) {
	p.ensureRegistered()
	p.queueEnqueued.WithLabelValues(queue, priority).Inc()
}

// RecordProcessed records a successful processor invocation.
func (p *PrometheusCollector) RecordProcessed(queue string, batchSize int, duration float64) {
	p.ensureRegistered()
	p.queueProcessed.WithLabelValues(queue).Add(float64(batchSize))
	p.queueLatency.WithLabelValues(queue).Observe(duration)
}

// RecordRetry increments the retry counter.
func (p *PrometheusCollector) RecordRetry(queue string, _ int) {
	p.ensureRegistered()
	p.queueRetries.WithLabelValues(queue).Inc()
}

// RecordTerminalFailure increments the terminal failure counter.
func (p *PrometheusCollector) RecordTerminalFailure(queue string) {
	p.ensureRegistered()
	p.queueFailures.WithLabelValues(queue).Inc()
}

// RecordDrop increments the overflow drop counter.
func (p *PrometheusCollector) RecordDrop(queue string, priority string) {
	p.ensureRegistered()
	p.queueDrops.WithLabelValues(queue, priority).Inc()
}

// RecordQueueDepth sets the queue depth gauge.
func (p *PrometheusCollector) RecordQueueDepth(queue string, depth int) {
	p.ensureRegistered()
	p.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordSubscriptionCreated increments the created counter for a consumer.
func (p *PrometheusCollector) RecordSubscriptionCreated(consumerID string) {
	p.ensureRegistered()
	p.subsCreated.WithLabelValues(consumerID).Inc()
}

// RecordSubscriptionRemoved increments the removed counter for a reason.
func (p *PrometheusCollector) RecordSubscriptionRemoved(reason string) {
	p.ensureRegistered()
	p.subsRemoved.WithLabelValues(reason).Inc()
}

// RecordDeduplicationHit increments the dedup hit counter.
func (p *PrometheusCollector) RecordDeduplicationHit() {
	p.ensureRegistered()
	p.subsDedupHits.Inc()
}

// RecordGroupFanout observes a grouped delivery fan-out size.
func (p *PrometheusCollector) RecordGroupFanout(size int) {
	p.ensureRegistered()
	p.subsFanout.Observe(float64(size))
}

// RecordThrottleCoalesced increments the coalesced invocation counter.
func (p *PrometheusCollector) RecordThrottleCoalesced() {
	p.ensureRegistered()
	p.subsCoalesced.Inc()
}

// RecordQuotaEviction increments the quota eviction counter for a consumer.
func (p *PrometheusCollector) RecordQuotaEviction(consumerID string) {
	p.ensureRegistered()
	p.subsEvictions.WithLabelValues(consumerID).Inc()
}
