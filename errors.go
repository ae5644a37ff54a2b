package realtime

import "errors"

// Sentinel errors returned by the Runtime.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEventSourceRequired is returned when the event source is nil.
	ErrEventSourceRequired = errors.New("event source is required")

	// ErrClassifierRequired is returned when prioritization is enabled
	// without a classifier.
	ErrClassifierRequired = errors.New("classifier is required when prioritization is enabled")

	// ErrClosed is returned for operations on a closed runtime.
	ErrClosed = errors.New("runtime is closed")
)
