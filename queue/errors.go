package queue

import "errors"

// Sentinel errors returned by the queue Manager.
var (
	// ErrClosed is returned when operating on a closed manager.
	ErrClosed = errors.New("queue manager closed")

	// ErrQueueNotFound is returned by administrative operations on an
	// unknown queue name.
	ErrQueueNotFound = errors.New("queue not found")

	// ErrEmptyQueueName is returned when a queue name is empty.
	ErrEmptyQueueName = errors.New("queue name is required")

	// ErrNilProcessor is returned when registering a nil processor.
	ErrNilProcessor = errors.New("processor is required")
)
