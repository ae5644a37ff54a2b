package connmgr

import "errors"

// Sentinel errors returned by the connection Manager.
var (
	// ErrEventSourceRequired is returned when the event source is nil.
	ErrEventSourceRequired = errors.New("event source is required")

	// ErrEmptyTopic is returned when subscribing with an empty topic name.
	ErrEmptyTopic = errors.New("topic is required")

	// ErrNilHandler is returned when subscribing with a nil handler.
	ErrNilHandler = errors.New("event handler is required")

	// ErrClosed is returned when operating on a cleaned-up manager.
	ErrClosed = errors.New("connection manager closed")

	// errStale marks a connection whose activity age exceeded the
	// staleness threshold.
	errStale = errors.New("connection stale: no activity within threshold")

	// errMaxReconnects marks a connection that exhausted its reconnect
	// attempts and was closed permanently.
	errMaxReconnects = errors.New("reconnect attempts exhausted")
)
