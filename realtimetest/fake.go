package realtimetest

import (
	"context"
	"errors"
	"sync"

	"github.com/maoragency/Zomet-sub000/types"
)

// ErrChannelClosed is returned by FakeChannel operations after Close.
var ErrChannelClosed = errors.New("fake channel is closed")

// FakeSource is a scriptable in-memory event source for unit tests.
//
// Tests drive it by emitting events and status transitions onto topics and
// by scripting open failures, without any transport underneath.
type FakeSource struct {
	mu        sync.Mutex
	channels  map[string][]*FakeChannel
	openErr   error
	failOpens int
	openCount int
}

var _ types.EventSource = (*FakeSource)(nil)

// NewFakeSource creates an empty fake source.
func NewFakeSource() *FakeSource {
	return &FakeSource{channels: make(map[string][]*FakeChannel)}
}

// OpenChannel opens a fake channel, or fails if a failure is scripted.
func (f *FakeSource) OpenChannel(_ context.Context, topic string) (types.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.openCount++
	if f.failOpens > 0 {
		f.failOpens--

		return nil, f.scriptedErrLocked()
	}
	if f.openErr != nil {
		return nil, f.openErr
	}

	ch := &FakeChannel{
		src:       f,
		topic:     topic,
		statusCBs: make(map[uint64]types.StatusCallback),
	}
	f.channels[topic] = append(f.channels[topic], ch)

	return ch, nil
}

func (f *FakeSource) scriptedErrLocked() error {
	if f.openErr != nil {
		return f.openErr
	}

	return errors.New("scripted open failure")
}

// FailNextOpens scripts the next n OpenChannel calls to fail.
func (f *FakeSource) FailNextOpens(n int) {
	f.mu.Lock()
	f.failOpens = n
	f.mu.Unlock()
}

// SetOpenErr makes every OpenChannel call fail with err until reset with
// nil.
func (f *FakeSource) SetOpenErr(err error) {
	f.mu.Lock()
	f.openErr = err
	f.mu.Unlock()
}

// OpenCount returns the total number of OpenChannel calls, including
// failed ones.
func (f *FakeSource) OpenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.openCount
}

// ActiveChannels returns the number of open channels across all topics.
func (f *FakeSource) ActiveChannels() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, chs := range f.channels {
		total += len(chs)
	}

	return total
}

// Channels returns the open channels for one topic, oldest first.
func (f *FakeSource) Channels(topic string) []*FakeChannel {
	return f.snapshot(topic)
}

// TopicChannels returns the number of open channels for one topic.
func (f *FakeSource) TopicChannels(topic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.channels[topic])
}

// Emit delivers a change event to every open channel on the topic.
func (f *FakeSource) Emit(topic string, ev types.ChangeEvent) {
	ev.Topic = topic
	for _, ch := range f.snapshot(topic) {
		ch.dispatch(ev)
	}
}

// EmitStatus fires a status transition on every open channel of the topic.
// Use it to simulate transport errors and closes.
func (f *FakeSource) EmitStatus(topic string, status types.ChannelStatus, err error) {
	for _, ch := range f.snapshot(topic) {
		ch.emitStatus(status, err)
	}
}

func (f *FakeSource) snapshot(topic string) []*FakeChannel {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*FakeChannel, len(f.channels[topic]))
	copy(out, f.channels[topic])

	return out
}

func (f *FakeSource) drop(topic string, ch *FakeChannel) {
	f.mu.Lock()
	defer f.mu.Unlock()

	chs := f.channels[topic]
	for i, cur := range chs {
		if cur == ch {
			f.channels[topic] = append(chs[:i], chs[i+1:]...)

			break
		}
	}
	if len(f.channels[topic]) == 0 {
		delete(f.channels, topic)
	}
}

// fakeRegistration is one On() handler with its selector.
type fakeRegistration struct {
	kind    types.EventKind
	filter  types.EventFilter
	handler func(types.ChangeEvent)
}

// FakeChannel is the channel handle returned by FakeSource. It records
// control messages written via Send so tests can assert on heartbeats.
type FakeChannel struct {
	src   *FakeSource
	topic string

	mu        sync.Mutex
	handlers  []fakeRegistration
	statusCBs map[uint64]types.StatusCallback
	nextToken uint64
	sent      [][]byte
	sendErr   error
	closed    bool
}

var _ types.Channel = (*FakeChannel)(nil)

// On registers a change-event handler.
func (c *FakeChannel) On(kind types.EventKind, filter types.EventFilter, handler func(types.ChangeEvent)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}
	c.handlers = append(c.handlers, fakeRegistration{kind: kind, filter: filter, handler: handler})

	return nil
}

// SubscribeStatus registers a status callback.
func (c *FakeChannel) SubscribeStatus(cb types.StatusCallback) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextToken++
	c.statusCBs[c.nextToken] = cb

	return c.nextToken
}

// UnsubscribeStatus removes a status callback. Unknown tokens are ignored.
func (c *FakeChannel) UnsubscribeStatus(token uint64) {
	c.mu.Lock()
	delete(c.statusCBs, token)
	c.mu.Unlock()
}

// Send records the control message, or fails if a send error is scripted.
func (c *FakeChannel) Send(_ context.Context, control []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrChannelClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	buf := make([]byte, len(control))
	copy(buf, control)
	c.sent = append(c.sent, buf)

	return nil
}

// Close tears the channel down and detaches it from the source. Idempotent.
func (c *FakeChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}
	c.closed = true
	c.handlers = nil
	c.mu.Unlock()

	c.src.drop(c.topic, c)

	return nil
}

// SetSendErr makes subsequent Send calls fail with err. Use it to simulate
// heartbeat failures.
func (c *FakeChannel) SetSendErr(err error) {
	c.mu.Lock()
	c.sendErr = err
	c.mu.Unlock()
}

// Sent returns a copy of all control messages written so far.
func (c *FakeChannel) Sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([][]byte, len(c.sent))
	copy(out, c.sent)

	return out
}

// Closed reports whether the channel has been closed.
func (c *FakeChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

func (c *FakeChannel) dispatch(ev types.ChangeEvent) {
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

func (c *FakeChannel) emitStatus(status types.ChannelStatus, err error) {
	c.mu.Lock()
	callbacks := make([]types.StatusCallback, 0, len(c.statusCBs))
	for _, cb := range c.statusCBs {
		callbacks = append(callbacks, cb)
	}
	c.mu.Unlock()

	for _, cb := range callbacks {
		cb(status, err)
	}
}
