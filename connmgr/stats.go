package connmgr

import "time"

// ConnectionStats is a point-in-time view of one pooled connection.
type ConnectionStats struct {
	// Topic is the normalized topic this connection serves.
	Topic string

	// Status is the connection lifecycle state name.
	Status string

	// Handlers is the number of subscriptions currently attached.
	Handlers int

	// Messages is the number of change events dispatched so far.
	Messages uint64

	// Errors counts transport errors and handler panics.
	Errors uint64

	// LastActivity is the last time the connection saw traffic or a
	// successful heartbeat.
	LastActivity time.Time

	// ReconnectAttempts is the attempt count of the current failure
	// episode; zero while healthy.
	ReconnectAttempts int
}

// ManagerStats aggregates pool-level counters for diagnostics.
type ManagerStats struct {
	// TotalConnections is the cumulative number of connections ever
	// opened by this manager.
	TotalConnections uint64

	// ActiveConnections is the current pool size.
	ActiveConnections int

	// Connections holds per-connection stats, sorted by topic.
	Connections []ConnectionStats
}
