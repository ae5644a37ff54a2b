package queue

// Stats is a point-in-time counter snapshot for one named queue.
type Stats struct {
	// Name is the queue name.
	Name string

	// Depth is the current number of pending messages.
	Depth int

	// Paused reports whether the drain loop is administratively stopped.
	Paused bool

	// Processing reports whether a drain loop is currently running.
	Processing bool

	// Enqueued is the total number of messages accepted.
	Enqueued uint64

	// Processed is the total number of messages processed successfully.
	Processed uint64

	// Retried is the total number of retry re-insertions.
	Retried uint64

	// Failed is the total number of messages terminally failed after
	// exhausting retries.
	Failed uint64

	// Dropped is the total number of messages evicted by the overflow
	// policy.
	Dropped uint64
}

// OverallStats aggregates counters across all named queues.
type OverallStats struct {
	// Queues is the number of named queues.
	Queues int

	// Depth is the total number of pending messages across queues.
	Depth int

	Enqueued  uint64
	Processed uint64
	Retried   uint64
	Failed    uint64
	Dropped   uint64
}
