package types

import "context"

// ChannelStatus is the lifecycle status reported by an event source channel.
type ChannelStatus int8

// Channel lifecycle states.
const (
	ChannelConnecting ChannelStatus = iota
	ChannelSubscribed
	ChannelClosed
	ChannelErrored
)

// String returns a human-readable status name.
func (s ChannelStatus) String() string {
	switch s {
	case ChannelConnecting:
		return "connecting"
	case ChannelSubscribed:
		return "subscribed"
	case ChannelClosed:
		return "closed"
	case ChannelErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// StatusCallback receives channel status transitions. err is non-nil only
// for ChannelErrored.
type StatusCallback func(status ChannelStatus, err error)

// EventSource is the opaque change-feed boundary the core depends on.
//
// Implementations adapt a concrete transport (NATS, a hosted realtime
// feed, an in-memory fake for tests) to the duplex-channel contract. The
// core never interprets payload schemas beyond passing them through.
type EventSource interface {
	// OpenChannel opens one multiplexed duplex channel bound to a topic
	// name. The returned channel is exclusively owned by the caller.
	OpenChannel(ctx context.Context, topic string) (Channel, error)
}

// Channel is one duplex handle against a single topic of the event source.
//
// Implementations must be safe for concurrent use. Handlers registered via
// On may be invoked from transport goroutines.
type Channel interface {
	// On registers a change-event handler for the given kind and filter.
	// The Predicate part of the filter is interpreted by the source.
	On(kind EventKind, filter EventFilter, handler func(ChangeEvent)) error

	// SubscribeStatus registers a status callback and returns an opaque
	// token for later removal via UnsubscribeStatus.
	SubscribeStatus(cb StatusCallback) uint64

	// UnsubscribeStatus removes a previously registered status callback.
	// Unknown tokens are ignored.
	UnsubscribeStatus(token uint64)

	// Send writes a control message (e.g. a heartbeat ping) to the
	// channel. Returns an error if the channel is unusable.
	Send(ctx context.Context, control []byte) error

	// Close tears the channel down. Idempotent.
	Close() error
}
