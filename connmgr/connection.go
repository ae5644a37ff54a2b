package connmgr

import (
	"context"
	"sync"
	"time"

	"github.com/maoragency/Zomet-sub000/types"
)

// Status is the lifecycle state of a pooled connection.
type Status int8

// Connection lifecycle states.
const (
	StatusConnecting Status = iota
	StatusSubscribed
	StatusClosed
	StatusErrored
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusSubscribed:
		return "subscribed"
	case StatusClosed:
		return "closed"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// heartbeatPayload is the control message pinged over each subscribed
// channel on the heartbeat interval.
var heartbeatPayload = []byte(`{"type":"heartbeat"}`)

// openTimeout bounds a single channel-open attempt during reconnection.
const openTimeout = 10 * time.Second

// handlerEntry is one subscription's registration on a connection.
type handlerEntry struct {
	id       string
	filter   types.EventFilter
	fn       types.EventHandler
	onStatus types.StatusCallback

	batching   bool
	batchDelay time.Duration

	// batchers are lazily created per event kind; guarded by bmu.
	bmu      sync.Mutex
	batchers map[types.EventKind]*batcher
}

// deliver routes an event through the entry's batching window, or invokes
// the handler directly when batching is disabled.
func (e *handlerEntry) deliver(ev types.ChangeEvent) {
	if !e.batching {
		e.fn(types.Delivery{Event: &ev})

		return
	}

	e.bmu.Lock()
	if e.batchers == nil {
		e.batchers = make(map[types.EventKind]*batcher)
	}
	b, ok := e.batchers[ev.Kind]
	if !ok {
		b = newBatcher(e.batchDelay, e.fn)
		e.batchers[ev.Kind] = b
	}
	e.bmu.Unlock()

	b.add(ev)
}

// stopBatchers discards pending windows when the entry is removed.
func (e *handlerEntry) stopBatchers() {
	e.bmu.Lock()
	batchers := e.batchers
	e.batchers = nil
	e.bmu.Unlock()

	for _, b := range batchers {
		b.stop()
	}
}

// connection is one multiplexed channel bound to a single topic, shared by
// every subscription on that topic. Exclusively owned by the Manager.
type connection struct {
	topic string
	m     *Manager

	mu           sync.Mutex
	status       Status
	channel      types.Channel
	statusToken  uint64
	lastActivity time.Time
	handlers     map[string]*handlerEntry
	messageCount uint64
	errorCount   uint64

	reconnectAttempts int
	reconnectTimer    *time.Timer
	closeTimer        *time.Timer

	// closed marks the connection permanently dead: either torn down by
	// the manager or abandoned after reconnect exhaustion.
	closed bool
}

func newConnection(m *Manager, topic string) *connection {
	return &connection{
		topic:        m.normalizeTopic(topic),
		m:            m,
		status:       StatusConnecting,
		lastActivity: time.Now(),
		handlers:     make(map[string]*handlerEntry),
	}
}

// addHandler attaches a subscription handler, cancelling any pending
// grace-period close. Returns false if the connection is already dead and
// the caller must create a fresh one.
func (c *connection) addHandler(e *handlerEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if c.closeTimer != nil {
		c.closeTimer.Stop()
		c.closeTimer = nil
	}
	c.handlers[e.id] = e

	return true
}

// removeHandler detaches a subscription handler. When the handler set
// empties, the connection is scheduled for close after the idle grace
// period rather than immediately.
func (c *connection) removeHandler(id string) {
	c.mu.Lock()
	e, ok := c.handlers[id]
	if ok {
		delete(c.handlers, id)
	}
	if len(c.handlers) == 0 && !c.closed && c.closeTimer == nil {
		c.closeTimer = time.AfterFunc(c.m.cfg.IdleGracePeriod, c.closeIfIdle)
	}
	c.mu.Unlock()

	if ok {
		e.stopBatchers()
	}
}

// open establishes the underlying channel. On failure the reconnection
// path takes over; open never returns an error to the subscriber.
func (c *connection) open(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return
	}
	c.status = StatusConnecting
	c.mu.Unlock()

	ch, err := c.m.source.OpenChannel(ctx, c.topic)
	if err != nil {
		c.m.logger.Warn("failed to open channel", "topic", c.topic, "error", err)
		c.handleTransportError(err)

		return
	}

	if err := ch.On(types.EventAll, types.EventFilter{}, c.dispatch); err != nil {
		_ = ch.Close()
		c.m.logger.Warn("failed to register channel handler", "topic", c.topic, "error", err)
		c.handleTransportError(err)

		return
	}
	token := ch.SubscribeStatus(c.onChannelStatus)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		ch.UnsubscribeStatus(token)
		_ = ch.Close()

		return
	}
	c.channel = ch
	c.statusToken = token
	c.status = StatusSubscribed
	c.lastActivity = time.Now()
	c.reconnectAttempts = 0
	callbacks := c.statusCallbacksLocked()
	c.mu.Unlock()

	c.m.logger.Debug("channel subscribed", "topic", c.topic)
	notifyStatus(callbacks, types.ChannelSubscribed, nil)
}

// dispatch fans one change event out to every matching handler. Filters
// are evaluated locally; the handler set is snapshotted so callbacks run
// outside the connection lock.
func (c *connection) dispatch(ev types.ChangeEvent) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return
	}
	c.lastActivity = time.Now()
	c.messageCount++
	matched := make([]*handlerEntry, 0, len(c.handlers))
	for _, e := range c.handlers {
		if e.filter.Matches(&ev) {
			matched = append(matched, e)
		}
	}
	c.mu.Unlock()

	c.m.metrics.RecordConnectionMessage(c.topic)

	for _, e := range matched {
		c.safeDeliver(e, ev)
	}
}

// safeDeliver shields the connection from handler panics; a panicking
// handler is counted as an error, never propagated.
func (c *connection) safeDeliver(e *handlerEntry, ev types.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.mu.Lock()
			c.errorCount++
			c.mu.Unlock()
			c.m.logger.Error("event handler panicked", "topic", c.topic, "panic", r)
		}
	}()

	e.deliver(ev)
}

// onChannelStatus reacts to transport status transitions reported by the
// event source.
func (c *connection) onChannelStatus(status types.ChannelStatus, err error) {
	switch status {
	case types.ChannelSubscribed:
		c.mu.Lock()
		c.lastActivity = time.Now()
		c.mu.Unlock()
	case types.ChannelErrored, types.ChannelClosed:
		c.handleTransportError(err)
	case types.ChannelConnecting:
		// Transitional; nothing to do.
	}
}

// handleTransportError marks the connection errored and routes it through
// the reconnection path. Deliberate closes are ignored.
func (c *connection) handleTransportError(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return
	}
	c.errorCount++
	c.status = StatusErrored
	c.scheduleReconnectLocked(err)
	c.mu.Unlock()

	c.m.metrics.RecordConnectionError(c.topic)
}

// scheduleReconnectLocked schedules the next reconnect attempt with
// exponential backoff, or closes the connection permanently once the
// attempt budget is exhausted. Caller holds c.mu.
func (c *connection) scheduleReconnectLocked(cause error) {
	if c.closed || c.reconnectTimer != nil {
		return
	}

	if c.reconnectAttempts >= c.m.cfg.MaxReconnectAttempts {
		c.abandonLocked(cause)

		return
	}

	delay := reconnectBackoff(c.m.cfg.ReconnectDelay, c.reconnectAttempts, c.m.cfg.MaxReconnectDelay)
	c.reconnectAttempts++
	attempt := c.reconnectAttempts

	c.m.logger.Info("scheduling reconnect",
		"topic", c.topic, "attempt", attempt, "delay", delay, "error", cause)
	c.m.metrics.RecordReconnectAttempt(c.topic, attempt)

	c.reconnectTimer = time.AfterFunc(delay, c.reconnect)
}

// reconnect tears down the old channel and re-opens. Runs on the backoff
// timer goroutine.
func (c *connection) reconnect() {
	c.mu.Lock()
	c.reconnectTimer = nil
	if c.closed {
		c.mu.Unlock()

		return
	}
	old := c.channel
	token := c.statusToken
	c.channel = nil
	c.mu.Unlock()

	if old != nil {
		old.UnsubscribeStatus(token)
		_ = old.Close()
	}

	ctx, cancel := context.WithTimeout(c.m.ctx, openTimeout)
	defer cancel()
	c.open(ctx)
}

// forceReconnect resets the failure episode and reconnects immediately.
// Used on offline→online transitions.
func (c *connection) forceReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return
	}
	c.reconnectAttempts = 0
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.mu.Unlock()

	c.reconnect()
}

// abandonLocked closes the connection permanently after reconnect
// exhaustion and surfaces the condition to every attached status callback.
// Caller holds c.mu; pool removal happens off the lock.
func (c *connection) abandonLocked(cause error) {
	c.closed = true
	c.status = StatusClosed
	ch := c.channel
	token := c.statusToken
	c.channel = nil
	callbacks := c.statusCallbacksLocked()
	if cause == nil {
		cause = errMaxReconnects
	}

	c.m.logger.Error("connection closed permanently",
		"topic", c.topic, "attempts", c.reconnectAttempts, "error", cause)

	go func() {
		if ch != nil {
			ch.UnsubscribeStatus(token)
			_ = ch.Close()
		}
		notifyStatus(callbacks, types.ChannelErrored, cause)
		c.m.dropConnection(c.topic, c, "max_attempts")
	}()
}

// closeIfIdle fires after the idle grace period; the connection closes
// only if no handler re-attached in the meantime.
func (c *connection) closeIfIdle() {
	c.mu.Lock()
	c.closeTimer = nil
	if c.closed || len(c.handlers) > 0 {
		c.mu.Unlock()

		return
	}
	ch, token := c.teardownLocked()
	c.mu.Unlock()

	if ch != nil {
		ch.UnsubscribeStatus(token)
		_ = ch.Close()
	}
	c.m.logger.Debug("idle connection closed", "topic", c.topic)
	c.m.dropConnection(c.topic, c, "idle")
}

// forceClose tears the connection down immediately. Used at shutdown.
func (c *connection) forceClose(reason string) {
	if finish := c.retire(reason); finish != nil {
		finish()
	}
}

// retire marks the connection dead so concurrent addHandler calls refuse,
// and returns a func completing the teardown (channel close and status
// fan-out). The caller runs it without the manager lock held. Returns nil
// when the connection was already closed.
func (c *connection) retire(reason string) func() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}
	ch, token := c.teardownLocked()
	callbacks := c.statusCallbacksLocked()
	c.mu.Unlock()

	return func() {
		if ch != nil {
			ch.UnsubscribeStatus(token)
			_ = ch.Close()
		}
		notifyStatus(callbacks, types.ChannelClosed, nil)
		c.m.metrics.RecordConnectionClosed(c.topic, reason)
	}
}

// teardownLocked transitions to closed and detaches the channel, stopping
// all timers. Caller holds c.mu and closes the returned channel off-lock.
func (c *connection) teardownLocked() (types.Channel, uint64) {
	c.closed = true
	c.status = StatusClosed
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.closeTimer != nil {
		c.closeTimer.Stop()
		c.closeTimer = nil
	}
	ch := c.channel
	token := c.statusToken
	c.channel = nil

	return ch, token
}

// ping sends a heartbeat, first treating an activity gap beyond staleAfter
// as a stale connection that needs the reconnection path.
func (c *connection) ping(ctx context.Context, staleAfter time.Duration) {
	c.mu.Lock()
	if c.closed || c.status != StatusSubscribed || c.channel == nil {
		c.mu.Unlock()

		return
	}
	if time.Since(c.lastActivity) > staleAfter {
		c.status = StatusErrored
		c.m.logger.Warn("connection stale", "topic", c.topic, "lastActivity", c.lastActivity)
		c.scheduleReconnectLocked(errStale)
		c.mu.Unlock()

		return
	}
	ch := c.channel
	c.mu.Unlock()

	if err := ch.Send(ctx, heartbeatPayload); err != nil {
		c.m.logger.Warn("heartbeat failed", "topic", c.topic, "error", err)
		c.handleTransportError(err)

		return
	}

	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}

// snapshot returns point-in-time stats. Caller must not hold c.mu.
func (c *connection) snapshot() ConnectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ConnectionStats{
		Topic:             c.topic,
		Status:            c.status.String(),
		Handlers:          len(c.handlers),
		Messages:          c.messageCount,
		Errors:            c.errorCount,
		LastActivity:      c.lastActivity,
		ReconnectAttempts: c.reconnectAttempts,
	}
}

// idleInfo reports whether the connection is reclaimable (no handlers)
// and its last activity, for least-recently-active reclamation.
func (c *connection) idleInfo() (bool, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.handlers) == 0 && !c.closed, c.lastActivity
}

// statusCallbacksLocked snapshots the attached status callbacks.
// Caller holds c.mu.
func (c *connection) statusCallbacksLocked() []types.StatusCallback {
	var out []types.StatusCallback
	for _, e := range c.handlers {
		if e.onStatus != nil {
			out = append(out, e.onStatus)
		}
	}

	return out
}

func notifyStatus(callbacks []types.StatusCallback, status types.ChannelStatus, err error) {
	for _, cb := range callbacks {
		cb(status, err)
	}
}
