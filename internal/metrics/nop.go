// Package metrics provides metrics collector implementations for the
// realtime delivery library.
package metrics

import "github.com/maoragency/Zomet-sub000/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A new no-op metrics collector instance
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// ConnectionMetrics implementation

// RecordConnectionOpened discards the connection opened metric.
func (n *NopMetrics) RecordConnectionOpened(_ /* topic */ string) {
	// No-op
}

// RecordConnectionClosed discards the connection closed metric.
func (n *NopMetrics) RecordConnectionClosed(_ /* topic */ string, _ /* reason */ string) {
	// No-op
}

// RecordReconnectAttempt discards the reconnect attempt metric.
func (n *NopMetrics) RecordReconnectAttempt(_ /* topic */ string, _ /* attempt */ int) {
	// No-op
}

// RecordConnectionMessage discards the connection message counter.
func (n *NopMetrics) RecordConnectionMessage(_ /* topic */ string) {
	// No-op
}

// RecordConnectionError discards the connection error counter.
func (n *NopMetrics) RecordConnectionError(_ /* topic */ string) {
	// No-op
}

// RecordActiveConnections discards the active connections gauge.
func (n *NopMetrics) RecordActiveConnections(_ /* count */ int) {
	// No-op
}

// QueueMetrics implementation

// RecordEnqueue discards the enqueue counter.
func (n *NopMetrics) RecordEnqueue(_ /* queue */ string, _ /* priority */ string) {
	// No-op
}

// RecordProcessed discards the processed metric.
func (n *NopMetrics) RecordProcessed(_ /* queue */ string, _ /* batchSize */ int, _ /* duration */ float64) {
	// No-op
}

// RecordRetry discards the retry counter.
func (n *NopMetrics) RecordRetry(_ /* queue */ string, _ /* retryCount */ int) {
	// No-op
}

// RecordTerminalFailure discards the terminal failure counter.
func (n *NopMetrics) RecordTerminalFailure(_ /* queue */ string) {
	// No-op
}

// RecordDrop discards the overflow drop counter.
func (n *NopMetrics) RecordDrop(_ /* queue */ string, _ /* priority */ string) {
	// No-op
}

// RecordQueueDepth discards the queue depth gauge.
func (n *NopMetrics) RecordQueueDepth(_ /* queue */ string, _ /* depth */ int) {
	// No-op
}

// SubscriptionMetrics implementation

// RecordSubscriptionCreated discards the subscription created counter.
func (n *NopMetrics) RecordSubscriptionCreated(_ /* consumerID */ string) {
	// No-op
}

// RecordSubscriptionRemoved discards the subscription removed counter.
func (n *NopMetrics) RecordSubscriptionRemoved(_ /* reason */ string) {
	// No-op
}

// RecordDeduplicationHit discards the deduplication hit counter.
func (n *NopMetrics) RecordDeduplicationHit() {
	// No-op
}

// RecordGroupFanout discards the group fan-out metric.
func (n *NopMetrics) RecordGroupFanout(_ /* size */ int) {
	// No-op
}

// RecordThrottleCoalesced discards the throttle coalesced counter.
func (n *NopMetrics) RecordThrottleCoalesced() {
	// No-op
}

// RecordQuotaEviction discards the quota eviction counter.
func (n *NopMetrics) RecordQuotaEviction(_ /* consumerID */ string) {
	// No-op
}
