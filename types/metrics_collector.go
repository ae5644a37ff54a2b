package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from internal goroutines and must be thread-safe.
//
// This interface composes smaller, domain-focused interfaces for better modularity.
type MetricsCollector interface {
	ConnectionMetrics
	QueueMetrics
	SubscriptionMetrics
}

// ConnectionMetrics defines metrics for connection pool operations.
type ConnectionMetrics interface {
	// RecordConnectionOpened records a new connection being opened for a topic.
	RecordConnectionOpened(topic string)

	// RecordConnectionClosed records a connection teardown.
	//
	// Parameters:
	//   - topic: Topic the connection was bound to
	//   - reason: Close reason ("idle", "reclaimed", "max_attempts", "shutdown")
	RecordConnectionClosed(topic string, reason string)

	// RecordReconnectAttempt records one reconnection attempt for a topic.
	//
	// Parameters:
	//   - topic: Topic being reconnected
	//   - attempt: 1-based attempt number within the current failure episode
	RecordReconnectAttempt(topic string, attempt int)

	// RecordConnectionMessage records one change event received on a connection.
	RecordConnectionMessage(topic string)

	// RecordConnectionError records a transport error on a connection.
	RecordConnectionError(topic string)

	// RecordActiveConnections sets the current pool size (gauge metric).
	RecordActiveConnections(count int)
}

// QueueMetrics defines metrics for named message queues.
type QueueMetrics interface {
	// RecordEnqueue records a message accepted into a queue.
	//
	// Parameters:
	//   - queue: Queue name
	//   - priority: Priority tier name ("high", "normal", "low")
	RecordEnqueue(queue string, priority string)

	// RecordProcessed records a successful processor invocation.
	//
	// Parameters:
	//   - queue: Queue name
	//   - batchSize: Number of messages processed in the invocation
	//   - duration: Processing time in seconds
	RecordProcessed(queue string, batchSize int, duration float64)

	// RecordRetry records a message re-queued after a processing failure.
	RecordRetry(queue string, retryCount int)

	// RecordTerminalFailure records a message dropped after exhausting retries.
	RecordTerminalFailure(queue string)

	// RecordDrop records a message evicted by the overflow policy.
	RecordDrop(queue string, priority string)

	// RecordQueueDepth sets the current queue depth (gauge metric).
	RecordQueueDepth(queue string, depth int)
}

// SubscriptionMetrics defines metrics for the subscription optimizer.
type SubscriptionMetrics interface {
	// RecordSubscriptionCreated records a new logical subscription.
	RecordSubscriptionCreated(consumerID string)

	// RecordSubscriptionRemoved records a subscription teardown.
	//
	// Parameters:
	//   - reason: Removal reason ("unsubscribe", "quota_eviction", "idle_sweep")
	RecordSubscriptionRemoved(reason string)

	// RecordDeduplicationHit records an identical registration collapsed
	// onto an existing subscription instead of a new connection.
	RecordDeduplicationHit()

	// RecordGroupFanout records a grouped delivery fan-out.
	//
	// Parameters:
	//   - size: Number of callbacks the event fanned out to
	RecordGroupFanout(size int)

	// RecordThrottleCoalesced records a callback invocation absorbed by
	// the throttling window.
	RecordThrottleCoalesced()

	// RecordQuotaEviction records a subscription evicted to enforce the
	// per-consumer quota.
	RecordQuotaEviction(consumerID string)
}
