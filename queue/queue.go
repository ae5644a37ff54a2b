package queue

import (
	"container/heap"
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/maoragency/Zomet-sub000/types"
)

// Processor handles one message at a time (sequential mode).
//
// A non-nil error (or a panic, which is recovered and converted) marks the
// message failed; it is retried with exponential backoff until MaxRetries
// is exhausted, then terminally failed.
type Processor func(ctx context.Context, msg *Message) error

// BatchProcessor handles a batch of messages atomically: an error fails
// every member of the batch for retry purposes.
type BatchProcessor func(ctx context.Context, msgs []*Message) error

// Manager owns a set of named, bounded priority queues.
//
// Each queue drains on its own goroutine once it has at least one ready
// message and a registered processor. Enqueue and administrative calls
// never block on processing.
//
// Thread Safety: all public methods are safe for concurrent use. Each
// named queue is guarded by its own mutex; processor callbacks run
// outside any lock.
type Manager struct {
	cfg Config

	logger  types.Logger
	metrics types.MetricsCollector

	mu     sync.RWMutex
	queues map[string]*namedQueue
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a queue manager with the given configuration.
//
// Zero-valued configuration fields are replaced by package defaults.
//
// Returns:
//   - *Manager: Initialized manager; Close releases its resources
func NewManager(cfg Config) *Manager {
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		queues:  make(map[string]*namedQueue),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue inserts a message into the named queue, creating the queue on
// first use. Messages accumulate until a processor is registered; that is
// not an error condition.
//
// If the queue is at its size bound, the overflow policy runs before
// insertion: the oldest low-priority message is dropped if one exists,
// else the oldest normal, else the oldest message regardless of priority.
// Every drop is counted in the queue's dropped statistic.
//
// Parameters:
//   - queueName: Queue to insert into (required)
//   - payload: Opaque message body
//   - opts: Priority, retry, delay and metadata options
//
// Returns:
//   - string: Generated message ID
//   - error: ErrEmptyQueueName, ErrClosed, or invalid priority
func (m *Manager) Enqueue(queueName string, payload any, opts EnqueueOptions) (string, error) {
	if queueName == "" {
		return "", ErrEmptyQueueName
	}
	if !opts.Priority.Valid() {
		return "", fmt.Errorf("invalid priority %d", opts.Priority)
	}

	q, err := m.getOrCreate(queueName)
	if err != nil {
		return "", err
	}

	maxRetries := opts.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = m.cfg.DefaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}

	now := time.Now()
	msg := &Message{
		Payload:    payload,
		EnqueuedAt: now,
		Priority:   opts.Priority,
		MaxRetries: maxRetries,
		Metadata:   opts.Metadata,
	}
	if opts.Delay > 0 {
		msg.readyAt = now.Add(opts.Delay)
	}

	q.mu.Lock()
	q.seq++
	msg.seq = q.seq
	msg.ID = queueName + "-" + strconv.FormatUint(msg.seq, 10)
	q.insertLocked(msg)
	q.stats.enqueued++
	q.kickLocked()
	q.mu.Unlock()

	m.metrics.RecordEnqueue(queueName, opts.Priority.String())

	return msg.ID, nil
}

// SetProcessor registers a sequential processor for the named queue,
// creating the queue on first use. Exactly one processor (sequential or
// batched) is active per queue; registering replaces any previous one.
//
// Returns:
//   - error: ErrEmptyQueueName, ErrNilProcessor, or ErrClosed
func (m *Manager) SetProcessor(queueName string, fn Processor) error {
	if queueName == "" {
		return ErrEmptyQueueName
	}
	if fn == nil {
		return ErrNilProcessor
	}

	q, err := m.getOrCreate(queueName)
	if err != nil {
		return err
	}

	q.mu.Lock()
	q.proc = fn
	q.batchProc = nil
	q.kickLocked()
	q.mu.Unlock()

	return nil
}

// SetBatchProcessor registers a batched processor for the named queue.
// The processor receives up to opts.BatchSize ready messages per
// invocation; a partial batch is flushed after opts.BatchTimeout. A batch
// failure fails every member of the batch for retry purposes.
//
// Returns:
//   - error: ErrEmptyQueueName, ErrNilProcessor, or ErrClosed
func (m *Manager) SetBatchProcessor(queueName string, fn BatchProcessor, opts BatchOptions) error {
	if queueName == "" {
		return ErrEmptyQueueName
	}
	if fn == nil {
		return ErrNilProcessor
	}
	opts.applyDefaults()

	q, err := m.getOrCreate(queueName)
	if err != nil {
		return err
	}

	q.mu.Lock()
	q.proc = nil
	q.batchProc = fn
	q.batchSize = opts.BatchSize
	q.batchTimeout = opts.BatchTimeout
	q.kickLocked()
	q.mu.Unlock()

	return nil
}

// PauseQueue stops the named queue's drain loop without discarding
// pending messages.
func (m *Manager) PauseQueue(queueName string) error {
	q, ok := m.lookup(queueName)
	if !ok {
		return ErrQueueNotFound
	}

	q.mu.Lock()
	q.paused = true
	q.wakeLocked()
	q.mu.Unlock()

	m.logger.Debug("queue paused", "queue", queueName)

	return nil
}

// ResumeQueue restarts a paused queue's drain loop.
func (m *Manager) ResumeQueue(queueName string) error {
	q, ok := m.lookup(queueName)
	if !ok {
		return ErrQueueNotFound
	}

	q.mu.Lock()
	q.paused = false
	q.kickLocked()
	q.mu.Unlock()

	m.logger.Debug("queue resumed", "queue", queueName)

	return nil
}

// ClearQueue discards all pending messages of the named queue.
//
// Returns:
//   - int: Number of messages discarded
//   - error: ErrQueueNotFound
func (m *Manager) ClearQueue(queueName string) (int, error) {
	q, ok := m.lookup(queueName)
	if !ok {
		return 0, ErrQueueNotFound
	}

	q.mu.Lock()
	n := q.heap.Len()
	q.heap = q.heap[:0]
	q.mu.Unlock()

	m.metrics.RecordQueueDepth(queueName, 0)
	if n > 0 {
		m.logger.Info("queue cleared", "queue", queueName, "discarded", n)
	}

	return n, nil
}

// RemoveQueue clears and deletes the named queue. Its drain loop exits
// and any later Enqueue recreates the queue from scratch.
func (m *Manager) RemoveQueue(queueName string) error {
	m.mu.Lock()
	q, ok := m.queues[queueName]
	if !ok {
		m.mu.Unlock()

		return ErrQueueNotFound
	}
	delete(m.queues, queueName)
	m.mu.Unlock()

	q.mu.Lock()
	q.removed = true
	q.heap = q.heap[:0]
	q.wakeLocked()
	q.mu.Unlock()

	m.logger.Debug("queue removed", "queue", queueName)

	return nil
}

// QueueStats returns point-in-time counters for the named queue.
//
// Returns:
//   - Stats: Counter snapshot
//   - bool: false if the queue does not exist
func (m *Manager) QueueStats(queueName string) (Stats, bool) {
	q, ok := m.lookup(queueName)
	if !ok {
		return Stats{}, false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	return Stats{
		Name:       q.name,
		Depth:      q.heap.Len(),
		Paused:     q.paused,
		Processing: q.processing,
		Enqueued:   q.stats.enqueued,
		Processed:  q.stats.processed,
		Retried:    q.stats.retried,
		Failed:     q.stats.failed,
		Dropped:    q.stats.dropped,
	}, true
}

// OverallStats aggregates counters across every queue. No side effects.
func (m *Manager) OverallStats() OverallStats {
	m.mu.RLock()
	queues := make([]*namedQueue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.RUnlock()

	var out OverallStats
	out.Queues = len(queues)
	for _, q := range queues {
		q.mu.Lock()
		out.Depth += q.heap.Len()
		out.Enqueued += q.stats.enqueued
		out.Processed += q.stats.processed
		out.Retried += q.stats.retried
		out.Failed += q.stats.failed
		out.Dropped += q.stats.dropped
		q.mu.Unlock()
	}

	return out
}

// Close stops every drain loop and discards all pending messages.
// Idempotent. Blocks until in-flight processor invocations return.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()

		return
	}
	m.closed = true
	queues := make([]*namedQueue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.Unlock()

	m.cancel()
	for _, q := range queues {
		q.mu.Lock()
		q.wakeLocked()
		q.mu.Unlock()
	}
	m.wg.Wait()

	m.logger.Debug("queue manager closed", "queues", len(queues))
}

func (m *Manager) getOrCreate(queueName string) (*namedQueue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}
	q, ok := m.queues[queueName]
	if !ok {
		q = &namedQueue{
			name: queueName,
			mgr:  m,
			wake: make(chan struct{}, 1),
		}
		m.queues[queueName] = q
		m.logger.Debug("queue created", "queue", queueName)
	}

	return q, nil
}

func (m *Manager) lookup(queueName string) (*namedQueue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q, ok := m.queues[queueName]

	return q, ok
}

// namedQueue is one bounded priority queue with an optional processor.
// Guarded by its own mutex; only its drain goroutine invokes processors.
type namedQueue struct {
	name string
	mgr  *Manager

	mu   sync.Mutex
	heap messageHeap

	// seq orders messages within a tier; bumped on every insertion,
	// including retries (a retried message goes to the back of its tier).
	seq uint64

	paused     bool
	removed    bool
	processing bool

	proc         Processor
	batchProc    BatchProcessor
	batchSize    int
	batchTimeout time.Duration

	stats counters

	// wake nudges a drain loop waiting on a delayed message or a
	// partial batch. Capacity 1; sends never block.
	wake chan struct{}
}

// counters are the per-queue statistics, guarded by namedQueue.mu.
type counters struct {
	enqueued  uint64
	processed uint64
	retried   uint64
	failed    uint64
	dropped   uint64
}

// insertLocked inserts a message, running the overflow policy first when
// the queue is at its bound. Caller holds q.mu.
func (q *namedQueue) insertLocked(msg *Message) {
	if q.heap.Len() >= q.mgr.cfg.MaxQueueSize {
		q.evictForOverflowLocked()
	}
	heap.Push(&q.heap, msg)
	q.mgr.metrics.RecordQueueDepth(q.name, q.heap.Len())
}

// evictForOverflowLocked drops the oldest low-priority message; if none
// exists, the oldest normal; if only high-priority messages remain, the
// oldest message regardless of priority. "Oldest within tier" is the whole
// contract: a just-inserted message of the chosen tier can itself be the
// next victim.
func (q *namedQueue) evictForOverflowLocked() {
	victim := -1
	for _, want := range []types.Priority{types.PriorityLow, types.PriorityNormal} {
		for i, m := range q.heap {
			if m.Priority != want {
				continue
			}
			if victim == -1 || m.seq < q.heap[victim].seq {
				victim = i
			}
		}
		if victim != -1 {
			break
		}
	}
	if victim == -1 {
		for i, m := range q.heap {
			if victim == -1 || m.seq < q.heap[victim].seq {
				victim = i
			}
		}
	}
	if victim == -1 {
		return
	}

	dropped := q.heap[victim]
	heap.Remove(&q.heap, victim)
	q.stats.dropped++
	q.mgr.metrics.RecordDrop(q.name, dropped.Priority.String())
	q.mgr.logger.Debug("queue overflow, message dropped",
		"queue", q.name, "id", dropped.ID, "priority", dropped.Priority.String())
}

// kickLocked starts the drain loop if there is work, a processor, and no
// loop already running. Caller holds q.mu.
func (q *namedQueue) kickLocked() {
	q.wakeLocked()
	if q.processing || q.paused || q.removed {
		return
	}
	if q.proc == nil && q.batchProc == nil {
		return
	}
	if q.heap.Len() == 0 {
		return
	}

	q.processing = true
	q.mgr.wg.Add(1)
	go q.drain(q.mgr.ctx)
}

// wakeLocked nudges a waiting drain loop without blocking.
func (q *namedQueue) wakeLocked() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// takeReadyLocked pops up to max ready messages in priority order.
// Messages whose delay has not elapsed are re-inserted with their original
// sequence, preserving approximate fire time and FIFO once ready.
//
// Returns the ready messages and, when none are ready, the wait until the
// earliest delayed message fires (zero if the queue is empty).
func (q *namedQueue) takeReadyLocked(maxMsgs int) ([]*Message, time.Duration) {
	now := time.Now()

	var out []*Message
	var held []*Message
	var earliest time.Duration

	for q.heap.Len() > 0 && len(out) < maxMsgs {
		m := heap.Pop(&q.heap).(*Message)
		if m.readyAt.After(now) {
			held = append(held, m)
			if d := m.readyAt.Sub(now); earliest == 0 || d < earliest {
				earliest = d
			}

			continue
		}
		out = append(out, m)
	}
	for _, m := range held {
		heap.Push(&q.heap, m)
	}
	if len(out) > 0 {
		return out, 0
	}

	return nil, earliest
}

// drain processes the queue until it is empty, paused, removed, or the
// manager shuts down. Exactly one drain loop runs per queue at a time.
func (q *namedQueue) drain(ctx context.Context) {
	defer q.mgr.wg.Done()

	for {
		if ctx.Err() != nil {
			q.markIdle()

			return
		}

		q.mu.Lock()
		if q.paused || q.removed {
			q.processing = false
			q.mu.Unlock()

			return
		}

		maxMsgs := 1
		batched := q.batchProc != nil
		if batched {
			maxMsgs = q.batchSize
		}
		msgs, wait := q.takeReadyLocked(maxMsgs)
		if msgs == nil && wait == 0 {
			// Empty: go idle. The next enqueue kicks a fresh loop.
			q.processing = false
			q.mu.Unlock()

			return
		}
		q.mu.Unlock()

		if msgs == nil {
			// Only delayed messages remain; sleep until the earliest
			// fires or new work arrives.
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			case <-q.wake:
			}

			continue
		}

		if batched && len(msgs) < q.batchSize {
			msgs = q.topUpBatch(ctx, msgs)
		}

		q.process(ctx, msgs)

		// Deliberate yield between invocations so one busy queue cannot
		// starve its siblings.
		if q.mgr.cfg.DrainInterval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(q.mgr.cfg.DrainInterval):
			}
		}
	}
}

// topUpBatch waits up to batchTimeout for more ready messages to fill a
// partial batch.
func (q *namedQueue) topUpBatch(ctx context.Context, msgs []*Message) []*Message {
	deadline := time.NewTimer(q.batchTimeout)
	defer deadline.Stop()

	for len(msgs) < q.batchSize {
		select {
		case <-ctx.Done():
			return msgs
		case <-deadline.C:
			return msgs
		case <-q.wake:
		}

		q.mu.Lock()
		more, _ := q.takeReadyLocked(q.batchSize - len(msgs))
		q.mu.Unlock()
		msgs = append(msgs, more...)
	}

	return msgs
}

// process invokes the registered processor for one batch (or one message
// in sequential mode) and applies retry semantics on failure.
func (q *namedQueue) process(ctx context.Context, msgs []*Message) {
	start := time.Now()

	var err error
	if q.batchProc != nil {
		err = q.invokeBatch(ctx, msgs)
	} else {
		err = q.invoke(ctx, msgs[0])
	}

	if err == nil {
		q.mu.Lock()
		q.stats.processed += uint64(len(msgs))
		q.mu.Unlock()
		q.mgr.metrics.RecordProcessed(q.name, len(msgs), time.Since(start).Seconds())

		return
	}

	for _, msg := range msgs {
		q.retryOrFail(msg, err)
	}
}

// invoke runs the sequential processor, converting panics to errors.
func (q *namedQueue) invoke(ctx context.Context, msg *Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()

	return q.proc(ctx, msg)
}

// invokeBatch runs the batch processor, converting panics to errors.
func (q *namedQueue) invokeBatch(ctx context.Context, msgs []*Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()

	return q.batchProc(ctx, msgs)
}

// retryOrFail re-queues a failed message with exponential backoff, or
// terminally fails it once MaxRetries is exhausted. A terminally failed
// message is counted, logged, and never re-queued.
func (q *namedQueue) retryOrFail(msg *Message, cause error) {
	msg.RetryCount++
	if msg.RetryCount > msg.MaxRetries {
		q.mu.Lock()
		q.stats.failed++
		q.mu.Unlock()
		q.mgr.metrics.RecordTerminalFailure(q.name)
		q.mgr.logger.Error("message terminally failed",
			"queue", q.name, "id", msg.ID, "attempts", msg.RetryCount, "error", cause)

		return
	}

	delay := retryBackoff(q.mgr.cfg.RetryDelay, msg.RetryCount)
	msg.readyAt = time.Now().Add(delay)

	q.mu.Lock()
	q.seq++
	msg.seq = q.seq
	q.insertLocked(msg)
	q.stats.retried++
	q.mu.Unlock()

	q.mgr.metrics.RecordRetry(q.name, msg.RetryCount)
	q.mgr.logger.Debug("message re-queued for retry",
		"queue", q.name, "id", msg.ID, "retry", msg.RetryCount, "delay", delay, "error", cause)
}

func (q *namedQueue) markIdle() {
	q.mu.Lock()
	q.processing = false
	q.mu.Unlock()
}
