package optimizer

import "errors"

// Sentinel errors returned by the optimizer.
var (
	// ErrConnManagerRequired is returned by New when no connection manager
	// is provided.
	ErrConnManagerRequired = errors.New("connection manager is required")

	// ErrQueueManagerRequired is returned by New when no queue manager is
	// provided.
	ErrQueueManagerRequired = errors.New("queue manager is required")

	// ErrClassifierRequired is returned by New when prioritization is
	// enabled without a classifier.
	ErrClassifierRequired = errors.New("classifier is required when prioritization is enabled")

	// ErrEmptyConsumerID is returned by Subscribe for a blank consumer id.
	ErrEmptyConsumerID = errors.New("consumer id cannot be empty")

	// ErrEmptyChannel is returned by Subscribe for a topic spec with no
	// channel name.
	ErrEmptyChannel = errors.New("topic spec channel cannot be empty")

	// ErrNilCallback is returned by Subscribe when callback is nil.
	ErrNilCallback = errors.New("callback cannot be nil")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("optimizer is closed")
)
