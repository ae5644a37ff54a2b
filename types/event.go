package types

import (
	"encoding/binary"
	"time"

	"github.com/zeebo/xxh3"
)

// EventKind identifies the kind of change notification emitted by the
// event source for a topic.
type EventKind string

// Change event kinds understood by the event source.
const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"

	// EventAll matches every event kind. Used as a wildcard in filters.
	EventAll EventKind = "*"
)

// EventFilter structurally describes which change events a subscription
// is interested in. The event source interprets Table and Predicate;
// the core only passes them through and uses them for dedup hashing.
type EventFilter struct {
	// Table is the source table (or equivalent namespace) to watch.
	// Empty means all tables on the topic.
	Table string

	// Predicate is an optional column predicate understood by the event
	// source, e.g. "status=eq.active". Opaque to the core.
	Predicate string

	// Kind restricts delivery to one event kind. EventAll (or empty)
	// matches everything.
	Kind EventKind
}

// Matches reports whether a change event passes this filter.
//
// The Predicate field is evaluated by the event source, not here; Matches
// only checks the structural parts the core can decide locally.
func (f EventFilter) Matches(ev *ChangeEvent) bool {
	if f.Table != "" && f.Table != ev.Table {
		return false
	}
	if f.Kind != "" && f.Kind != EventAll && f.Kind != ev.Kind {
		return false
	}

	return true
}

// TopicSpec is the typed composite key identifying a logical subscription
// target: a channel (topic) plus a change filter.
//
// Two specs with equal fields are the same subscription target. Hash()
// provides the stable 64-bit identity used for deduplication and
// subscription-group keys, replacing ad hoc string-concatenation map keys.
type TopicSpec struct {
	// Channel is the topic name in the event source's namespace.
	Channel string

	// Filter selects which change events on the channel are delivered.
	Filter EventFilter
}

// Hash returns a stable 64-bit hash of the spec.
//
// Field values are length-prefixed before hashing so that distinct field
// splits can never collide (e.g. {"ab","c"} vs {"a","bc"}).
func (s TopicSpec) Hash() uint64 {
	buf := make([]byte, 0, 8+len(s.Channel)+len(s.Filter.Table)+len(s.Filter.Predicate)+len(s.Filter.Kind)+16)
	buf = appendLenPrefixed(buf, s.Channel)
	buf = appendLenPrefixed(buf, s.Filter.Table)
	buf = appendLenPrefixed(buf, s.Filter.Predicate)
	buf = appendLenPrefixed(buf, string(s.Filter.Kind))

	return xxh3.Hash(buf)
}

func appendLenPrefixed(buf []byte, s string) []byte {
	var lb [4]byte
	binary.LittleEndian.PutUint32(lb[:], uint32(len(s)))
	buf = append(buf, lb[:]...)

	return append(buf, s...)
}

// ChangeEvent is one change notification delivered by the event source.
//
// Payload is opaque to the core and passed through to consumer callbacks
// untouched.
type ChangeEvent struct {
	// Topic is the channel the event arrived on.
	Topic string

	// Kind is the change kind (insert/update/delete).
	Kind EventKind

	// Table is the source table the change originated from, if any.
	Table string

	// Payload is the raw event payload. Never interpreted by the core.
	Payload []byte

	// Timestamp is when the event was produced (or received, if the
	// source does not stamp events).
	Timestamp time.Time
}

// Delivery is what an event handler receives: either a single event or a
// batch of events coalesced within one batching window.
//
// Exactly one of Event/Batch is set. Batch is only produced when batching
// is enabled on the subscription and more than one event arrived within
// the window; a lone event in a window is delivered unwrapped via Event.
type Delivery struct {
	Event *ChangeEvent
	Batch []ChangeEvent
}

// IsBatch reports whether this delivery carries a coalesced batch.
func (d Delivery) IsBatch() bool { return d.Batch != nil }

// Count returns the number of events in the delivery.
func (d Delivery) Count() int {
	if d.Batch != nil {
		return len(d.Batch)
	}
	if d.Event != nil {
		return 1
	}

	return 0
}

// First returns the first event of the delivery, or nil for an empty one.
func (d Delivery) First() *ChangeEvent {
	if d.Batch != nil {
		if len(d.Batch) == 0 {
			return nil
		}

		return &d.Batch[0]
	}

	return d.Event
}

// EventHandler consumes deliveries for a subscription.
//
// Handlers must not block; long work should be offloaded to a queue
// processor. Panics are recovered at the delivery boundary and counted
// as handler errors.
type EventHandler func(Delivery)
