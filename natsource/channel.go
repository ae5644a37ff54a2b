package natsource

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/maoragency/Zomet-sub000/types"
)

// flushTimeout bounds the round trip used by Send to surface transport
// failures instead of letting publishes pile up in the reconnect buffer.
const flushTimeout = 5 * time.Second

// eventRegistration is one On() handler with its kind/filter selector.
type eventRegistration struct {
	kind    types.EventKind
	filter  types.EventFilter
	handler func(types.ChangeEvent)
}

// channel is one topic-bound duplex handle over the shared NATS connection.
type channel struct {
	src   *Source
	topic string
	sub   *nats.Subscription

	mu        sync.Mutex
	handlers  []eventRegistration
	statusCBs map[uint64]types.StatusCallback
	nextToken uint64
	closed    bool
}

var _ types.Channel = (*channel)(nil)

func newChannel(src *Source, topic string) *channel {
	return &channel{
		src:       src,
		topic:     topic,
		statusCBs: make(map[uint64]types.StatusCallback),
	}
}

// On registers a change-event handler for the given kind and filter.
func (c *channel) On(kind types.EventKind, filter types.EventFilter, handler func(types.ChangeEvent)) error {
	if handler == nil {
		return nats.ErrBadSubscription
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nats.ErrConnectionClosed
	}
	c.handlers = append(c.handlers, eventRegistration{kind: kind, filter: filter, handler: handler})

	return nil
}

// SubscribeStatus registers a status callback and immediately reports the
// current state, so late subscribers don't miss the subscribed transition.
func (c *channel) SubscribeStatus(cb types.StatusCallback) uint64 {
	c.mu.Lock()
	c.nextToken++
	token := c.nextToken
	closed := c.closed
	c.statusCBs[token] = cb
	c.mu.Unlock()

	if closed {
		cb(types.ChannelClosed, nil)
	} else {
		cb(types.ChannelSubscribed, nil)
	}

	return token
}

// UnsubscribeStatus removes a previously registered status callback.
func (c *channel) UnsubscribeStatus(token uint64) {
	c.mu.Lock()
	delete(c.statusCBs, token)
	c.mu.Unlock()
}

// Send publishes a control message to the topic's control subject and
// flushes, so a broken transport surfaces as an error rather than being
// absorbed by the client's reconnect buffer.
func (c *channel) Send(ctx context.Context, control []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nats.ErrConnectionClosed
	}

	if err := c.src.nc.Publish(c.src.controlSubject(c.topic), control); err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	timeout := flushTimeout
	if ok {
		timeout = time.Until(deadline)
	}

	return c.src.nc.FlushTimeout(timeout)
}

// Close tears the channel down. Idempotent.
func (c *channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}
	c.closed = true
	sub := c.sub
	c.sub = nil
	callbacks := c.snapshotStatusLocked()
	c.handlers = nil
	c.mu.Unlock()

	var err error
	if sub != nil {
		err = sub.Unsubscribe()
	}
	for _, cb := range callbacks {
		cb(types.ChannelClosed, nil)
	}

	return err
}

// onMessage decodes one wire event and fans it out to matching handlers.
// Runs on the NATS delivery goroutine.
func (c *channel) onMessage(msg *nats.Msg) {
	var we wireEvent
	if err := json.Unmarshal(msg.Data, &we); err != nil {
		c.src.logger.Warn("dropping undecodable event",
			"topic", c.topic, "subject", msg.Subject, "error", err)

		return
	}

	ev := types.ChangeEvent{
		Topic:     c.topic,
		Kind:      we.Kind,
		Table:     we.Table,
		Payload:   []byte(we.Payload),
		Timestamp: we.Timestamp,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return
	}
	matched := make([]func(types.ChangeEvent), 0, len(c.handlers))
	for _, reg := range c.handlers {
		if reg.kind != "" && reg.kind != types.EventAll && reg.kind != ev.Kind {
			continue
		}
		if !reg.filter.Matches(&ev) {
			continue
		}
		matched = append(matched, reg.handler)
	}
	c.mu.Unlock()

	for _, h := range matched {
		h(ev)
	}
}

func (c *channel) snapshotStatusLocked() []types.StatusCallback {
	out := make([]types.StatusCallback, 0, len(c.statusCBs))
	for _, cb := range c.statusCBs {
		out = append(out, cb)
	}

	return out
}
