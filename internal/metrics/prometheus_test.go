package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollector_RecordsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewPrometheus(reg, "test")

	c.RecordConnectionOpened("orders")
	c.RecordConnectionOpened("orders")
	c.RecordConnectionClosed("orders", "idle")
	c.RecordReconnectAttempt("orders", 1)
	c.RecordConnectionMessage("orders")
	c.RecordConnectionError("orders")
	c.RecordActiveConnections(3)

	c.RecordEnqueue("emails", "high")
	c.RecordProcessed("emails", 2, 0.01)
	c.RecordRetry("emails", 1)
	c.RecordTerminalFailure("emails")
	c.RecordDrop("emails", "low")
	c.RecordQueueDepth("emails", 5)

	c.RecordSubscriptionCreated("user-1")
	c.RecordSubscriptionRemoved("expired")
	c.RecordDeduplicationHit()
	c.RecordGroupFanout(4)
	c.RecordThrottleCoalesced()
	c.RecordQuotaEviction("user-1")

	require.Equal(t, 2.0, testutil.ToFloat64(c.connOpened.WithLabelValues("orders")))
	require.Equal(t, 3.0, testutil.ToFloat64(c.connActiveGauge))
	require.Equal(t, 2.0, testutil.ToFloat64(c.queueProcessed.WithLabelValues("emails")))
	require.Equal(t, 5.0, testutil.ToFloat64(c.queueDepth.WithLabelValues("emails")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.subsDedupHits))
}

func TestPrometheusCollector_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	// Two collectors on one registry must not panic on re-registration.
	a := NewPrometheus(reg, "test")
	b := NewPrometheus(reg, "test")

	a.RecordConnectionOpened("orders")
	require.NotPanics(t, func() { b.RecordConnectionOpened("orders") })
}

func TestPrometheusCollector_DefaultRegisterer(t *testing.T) {
	c := NewPrometheus(nil, "")
	require.NotNil(t, c)
}

func TestNopMetrics(t *testing.T) {
	n := NewNop()

	require.NotPanics(t, func() {
		n.RecordConnectionOpened("orders")
		n.RecordProcessed("emails", 1, 0.1)
		n.RecordDeduplicationHit()
		n.RecordQuotaEviction("user-1")
	})
}
