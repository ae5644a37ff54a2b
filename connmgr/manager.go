package connmgr

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maoragency/Zomet-sub000/types"
)

// Manager owns the connection pool and the subscribe/unsubscribe API
// layered on top of the raw topic feed.
//
// Thread Safety: all public methods are safe for concurrent use. The pool
// map is guarded by the manager mutex; each connection is guarded by its
// own mutex and is only ever mutated through the manager or its own
// timers.
type Manager struct {
	cfg    Config
	source types.EventSource

	logger  types.Logger
	metrics types.MetricsCollector

	mu     sync.Mutex
	conns  map[string]*connection
	subs   map[string]subRef
	closed bool

	nextSubID   atomic.Uint64
	totalOpened atomic.Uint64

	// online and foreground are the network/visibility policy hooks.
	// Both default to true.
	online     atomic.Bool
	foreground atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// subRef resolves a subscription ID back to its connection and handler.
type subRef struct {
	topic     string
	handlerID string
}

// Subscription is the opaque handle returned by Subscribe.
type Subscription struct {
	id string
	m  *Manager
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string { return s.id }

// Unsubscribe detaches this subscription's handler. Idempotent: the
// second and later calls are no-ops.
func (s *Subscription) Unsubscribe() { s.m.Unsubscribe(s.id) }

// NewManager creates a connection manager over the given event source.
//
// Zero-valued configuration fields are replaced by package defaults.
//
// Parameters:
//   - cfg: Pool, heartbeat and reconnection configuration
//   - source: Opaque change-feed boundary (must be non-nil)
//
// Returns:
//   - *Manager: Initialized manager with its heartbeat loop running
//   - error: ErrEventSourceRequired if source is nil
func NewManager(cfg Config, source types.EventSource) (*Manager, error) {
	if source == nil {
		return nil, ErrEventSourceRequired
	}
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:     cfg,
		source:  source,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		conns:   make(map[string]*connection),
		subs:    make(map[string]subRef),
		ctx:     ctx,
		cancel:  cancel,
	}
	m.online.Store(true)
	m.foreground.Store(true)

	m.wg.Add(1)
	go m.heartbeatLoop()

	return m, nil
}

// Subscribe attaches a handler to the topic's connection, opening one if
// none exists. The pool cap is advisory: at capacity, idle connections
// are reclaimed least-recently-active first, and if none are reclaimable
// the subscribe still proceeds.
//
// Connect failures do not fail the subscribe; the reconnection path
// retries with exponential backoff and surfaces terminal failure through
// opts.OnStatus.
//
// Parameters:
//   - ctx: Context bounding the initial channel open
//   - topic: Topic name (required, whitespace-trimmed)
//   - filter: Change filter evaluated per delivery
//   - handler: Callback receiving deliveries (required)
//   - opts: Batching and status-callback options
//
// Returns:
//   - *Subscription: Opaque handle with ID and Unsubscribe
//   - error: ErrEmptyTopic, ErrNilHandler, or ErrClosed
func (m *Manager) Subscribe(ctx context.Context, topic string, filter types.EventFilter, handler types.EventHandler, opts SubscribeOptions) (*Subscription, error) {
	topic = m.normalizeTopic(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	if handler == nil {
		return nil, ErrNilHandler
	}

	batchDelay := opts.BatchDelay
	if batchDelay <= 0 {
		batchDelay = m.cfg.BatchDelay
	}

	entry := &handlerEntry{
		id:         "cm-" + strconv.FormatUint(m.nextSubID.Add(1), 10),
		filter:     filter,
		fn:         handler,
		onStatus:   opts.OnStatus,
		batching:   opts.EnableBatching,
		batchDelay: batchDelay,
	}

	for {
		c, created, err := m.getOrCreateConn(topic)
		if err != nil {
			return nil, err
		}

		// A connection fetched from the pool may be concurrently dying;
		// addHandler refuses and we create a fresh one.
		if !c.addHandler(entry) {
			m.dropConnection(topic, c, "raced_close")

			continue
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			c.removeHandler(entry.id)

			return nil, ErrClosed
		}
		m.subs[entry.id] = subRef{topic: topic, handlerID: entry.id}
		active := len(m.conns)
		m.mu.Unlock()

		if created {
			m.totalOpened.Add(1)
			m.metrics.RecordConnectionOpened(topic)
			m.metrics.RecordActiveConnections(active)
			c.open(ctx)
		}

		return &Subscription{id: entry.id, m: m}, nil
	}
}

// Unsubscribe removes the handler behind a subscription ID. When the
// backing connection's handler set empties, it is scheduled for close
// after the idle grace period, not immediately. Idempotent: unknown IDs
// are ignored.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	ref, ok := m.subs[subscriptionID]
	if !ok {
		m.mu.Unlock()

		return
	}
	delete(m.subs, subscriptionID)
	c := m.conns[ref.topic]
	m.mu.Unlock()

	if c != nil {
		c.removeHandler(ref.handlerID)
	}
}

// SetOnline feeds the network-awareness policy hook. An offline→online
// transition triggers a reconnect pass over every pooled connection with
// a fresh attempt budget.
func (m *Manager) SetOnline(online bool) {
	was := m.online.Swap(online)
	if was == online {
		return
	}
	if !online {
		m.logger.Info("network offline, pausing heartbeats")

		return
	}

	m.logger.Info("network online, reconnecting all connections")
	for _, c := range m.snapshotConns() {
		go c.forceReconnect()
	}
}

// SetForeground feeds the visibility policy hook. Heartbeats pause while
// backgrounded and resume on return to foreground; connections stay open.
func (m *Manager) SetForeground(foreground bool) {
	was := m.foreground.Swap(foreground)
	if was != foreground {
		m.logger.Debug("visibility changed", "foreground", foreground)
	}
}

// Stats returns total/active connection counts and per-connection
// counters. No side effects.
func (m *Manager) Stats() ManagerStats {
	conns := m.snapshotConns()

	stats := ManagerStats{
		TotalConnections:  m.totalOpened.Load(),
		ActiveConnections: len(conns),
		Connections:       make([]ConnectionStats, 0, len(conns)),
	}
	for _, c := range conns {
		stats.Connections = append(stats.Connections, c.snapshot())
	}
	sort.Slice(stats.Connections, func(i, j int) bool {
		return stats.Connections[i].Topic < stats.Connections[j].Topic
	})

	return stats
}

// Cleanup force-closes every connection and stops the heartbeat loop.
// Used at shutdown. Idempotent.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()

		return
	}
	m.closed = true
	conns := make([]*connection, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.conns = make(map[string]*connection)
	m.subs = make(map[string]subRef)
	m.mu.Unlock()

	m.cancel()
	for _, c := range conns {
		c.forceClose("shutdown")
	}
	m.wg.Wait()
	m.metrics.RecordActiveConnections(0)

	m.logger.Info("connection manager cleaned up", "closed", len(conns))
}

// getOrCreateConn returns the pooled connection for a topic, creating one
// (after a reclamation pass when at capacity) if absent.
func (m *Manager) getOrCreateConn(topic string) (*connection, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, false, ErrClosed
	}
	if c, ok := m.conns[topic]; ok {
		return c, false, nil
	}

	if len(m.conns) >= m.cfg.MaxConnections {
		reclaimed := m.reclaimIdleLocked(len(m.conns) - m.cfg.MaxConnections + 1)
		if reclaimed == 0 {
			// Advisory cap: proceed over budget but flag it so operators
			// (and the optimizer's dedup/grouping) can react.
			m.logger.Warn("connection pool over capacity",
				"size", len(m.conns)+1, "max", m.cfg.MaxConnections)
		}
	}

	c := newConnection(m, topic)
	m.conns[topic] = c

	return c, true, nil
}

// reclaimIdleLocked force-closes up to want handler-less connections,
// least-recently-active first. Caller holds m.mu.
func (m *Manager) reclaimIdleLocked(want int) int {
	type candidate struct {
		c    *connection
		last time.Time
	}
	var idle []candidate
	for _, c := range m.conns {
		if ok, last := c.idleInfo(); ok {
			idle = append(idle, candidate{c: c, last: last})
		}
	}
	sort.Slice(idle, func(i, j int) bool { return idle[i].last.Before(idle[j].last) })

	reclaimed := 0
	for _, cand := range idle {
		if reclaimed >= want {
			break
		}
		// Flag the connection dead before the manager lock is released so
		// a subscribe that already fetched it from the pool cannot attach;
		// addHandler refuses and its retry loop creates a fresh one. The
		// channel teardown itself runs off the lock.
		finish := cand.c.retire("reclaimed")
		if finish == nil {
			continue
		}
		delete(m.conns, cand.c.topic)
		reclaimed++
		go finish()
	}
	if reclaimed > 0 {
		m.logger.Info("reclaimed idle connections", "count", reclaimed)
	}

	return reclaimed
}

// dropConnection removes a connection from the pool if it is still the
// registered one for its topic. Never called with locks held on c.
func (m *Manager) dropConnection(topic string, c *connection, reason string) {
	m.mu.Lock()
	cur, ok := m.conns[topic]
	if ok && cur == c {
		delete(m.conns, topic)
	}
	active := len(m.conns)
	m.mu.Unlock()

	if ok && cur == c {
		m.metrics.RecordConnectionClosed(topic, reason)
		m.metrics.RecordActiveConnections(active)
	}
}

// heartbeatLoop pings every subscribed connection on the configured
// interval, skipping ticks while offline or backgrounded.
func (m *Manager) heartbeatLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	staleAfter := 2 * m.cfg.HeartbeatInterval

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}

		if !m.foreground.Load() || !m.online.Load() {
			continue
		}

		for _, c := range m.snapshotConns() {
			ctx, cancel := context.WithTimeout(m.ctx, m.cfg.HeartbeatInterval)
			c.ping(ctx, staleAfter)
			cancel()
		}
	}
}

func (m *Manager) snapshotConns() []*connection {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*connection, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c)
	}

	return out
}

func (m *Manager) normalizeTopic(topic string) string {
	return strings.TrimSpace(topic)
}
