package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maoragency/Zomet-sub000/types"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()

	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 5 * time.Millisecond
	}
	if cfg.DrainInterval == 0 {
		cfg.DrainInterval = time.Millisecond
	}
	m := NewManager(cfg)
	t.Cleanup(m.Close)

	return m
}

// recorder collects processed payloads in order.
type recorder struct {
	mu   sync.Mutex
	seen []any
}

func (r *recorder) process(_ context.Context, msg *Message) error {
	r.mu.Lock()
	r.seen = append(r.seen, msg.Payload)
	r.mu.Unlock()

	return nil
}

func (r *recorder) snapshot() []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]any, len(r.seen))
	copy(out, r.seen)

	return out
}

func TestEnqueue_Validation(t *testing.T) {
	m := newTestManager(t, Config{})

	_, err := m.Enqueue("", "x", EnqueueOptions{})
	require.ErrorIs(t, err, ErrEmptyQueueName)

	_, err = m.Enqueue("work", "x", EnqueueOptions{Priority: types.Priority(42)})
	require.Error(t, err)

	id, err := m.Enqueue("work", "x", EnqueueOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, id)
}

func TestPriorityOrdering(t *testing.T) {
	m := newTestManager(t, Config{})
	rec := &recorder{}

	// Accumulate before any processor is registered so the drain observes
	// the full set.
	for _, p := range []types.Priority{types.PriorityLow, types.PriorityHigh, types.PriorityNormal, types.PriorityHigh} {
		_, err := m.Enqueue("work", p.String(), EnqueueOptions{Priority: p})
		require.NoError(t, err)
	}

	require.NoError(t, m.SetProcessor("work", rec.process))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 4
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, []any{"high", "high", "normal", "low"}, rec.snapshot())
}

func TestFIFOWithinTier(t *testing.T) {
	m := newTestManager(t, Config{})
	rec := &recorder{}

	for i := range 5 {
		_, err := m.Enqueue("work", i, EnqueueOptions{})
		require.NoError(t, err)
	}
	require.NoError(t, m.SetProcessor("work", rec.process))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 5
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, []any{0, 1, 2, 3, 4}, rec.snapshot())
}

func TestOverflowPolicy(t *testing.T) {
	m := newTestManager(t, Config{MaxQueueSize: 3})

	for _, p := range []types.Priority{types.PriorityLow, types.PriorityNormal, types.PriorityHigh} {
		_, err := m.Enqueue("work", p.String(), EnqueueOptions{Priority: p})
		require.NoError(t, err)
	}

	// Full: enqueuing a new normal drops the existing low, regardless of
	// the new message's own priority.
	_, err := m.Enqueue("work", "normal-2", EnqueueOptions{Priority: types.PriorityNormal})
	require.NoError(t, err)

	stats, ok := m.QueueStats("work")
	require.True(t, ok)
	require.Equal(t, uint64(1), stats.Dropped)
	require.Equal(t, 3, stats.Depth)

	rec := &recorder{}
	require.NoError(t, m.SetProcessor("work", rec.process))
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 3
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, []any{"high", "normal", "normal-2"}, rec.snapshot())
}

func TestOverflowPolicy_OnlyHighRemains(t *testing.T) {
	m := newTestManager(t, Config{MaxQueueSize: 2})

	_, err := m.Enqueue("work", "h1", EnqueueOptions{Priority: types.PriorityHigh})
	require.NoError(t, err)
	_, err = m.Enqueue("work", "h2", EnqueueOptions{Priority: types.PriorityHigh})
	require.NoError(t, err)

	// Only high-priority messages present: the oldest one is evicted.
	_, err = m.Enqueue("work", "h3", EnqueueOptions{Priority: types.PriorityHigh})
	require.NoError(t, err)

	rec := &recorder{}
	require.NoError(t, m.SetProcessor("work", rec.process))
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, []any{"h2", "h3"}, rec.snapshot())
}

func TestRetryExhaustion(t *testing.T) {
	m := newTestManager(t, Config{})

	var attempts atomic.Int32
	require.NoError(t, m.SetProcessor("work", func(_ context.Context, _ *Message) error {
		attempts.Add(1)

		return errors.New("always fails")
	}))

	_, err := m.Enqueue("work", "doomed", EnqueueOptions{MaxRetries: 2})
	require.NoError(t, err)

	// Initial attempt + 2 retries, then terminal failure.
	require.Eventually(t, func() bool {
		stats, _ := m.QueueStats("work")

		return stats.Failed == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, int32(3), attempts.Load())

	stats, _ := m.QueueStats("work")
	require.Equal(t, uint64(2), stats.Retried)
	require.Equal(t, 0, stats.Depth)

	// Never re-queued again.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(3), attempts.Load())
}

func TestNoRetry(t *testing.T) {
	m := newTestManager(t, Config{})

	var attempts atomic.Int32
	require.NoError(t, m.SetProcessor("work", func(_ context.Context, _ *Message) error {
		attempts.Add(1)

		return errors.New("nope")
	}))

	_, err := m.Enqueue("work", "once", EnqueueOptions{MaxRetries: NoRetry})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stats, _ := m.QueueStats("work")

		return stats.Failed == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, int32(1), attempts.Load())
}

func TestRetryPreservesPriority(t *testing.T) {
	m := newTestManager(t, Config{})

	var mu sync.Mutex
	var order []string
	var failedOnce bool
	require.NoError(t, m.SetProcessor("work", func(_ context.Context, msg *Message) error {
		mu.Lock()
		defer mu.Unlock()
		if msg.Payload == "flaky" && !failedOnce {
			failedOnce = true

			return errors.New("transient")
		}
		order = append(order, msg.Payload.(string)+"/"+msg.Priority.String())

		return nil
	}))

	_, err := m.Enqueue("work", "flaky", EnqueueOptions{Priority: types.PriorityHigh, MaxRetries: 3})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(order) == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"flaky/high"}, order)
}

func TestDelayedMessage(t *testing.T) {
	m := newTestManager(t, Config{})
	rec := &recorder{}
	require.NoError(t, m.SetProcessor("work", rec.process))

	start := time.Now()
	_, err := m.Enqueue("work", "later", EnqueueOptions{Delay: 60 * time.Millisecond})
	require.NoError(t, err)

	time.Sleep(25 * time.Millisecond)
	require.Empty(t, rec.snapshot(), "delayed message processed early")

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	require.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestDelayedMessageDoesNotBlockReadyOnes(t *testing.T) {
	m := newTestManager(t, Config{})
	rec := &recorder{}
	require.NoError(t, m.SetProcessor("work", rec.process))

	_, err := m.Enqueue("work", "later", EnqueueOptions{Delay: 80 * time.Millisecond})
	require.NoError(t, err)
	_, err = m.Enqueue("work", "now", EnqueueOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		seen := rec.snapshot()

		return len(seen) >= 1 && seen[0] == "now"
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBatchProcessing(t *testing.T) {
	m := newTestManager(t, Config{})

	var mu sync.Mutex
	var batches [][]any
	require.NoError(t, m.SetBatchProcessor("work", func(_ context.Context, msgs []*Message) error {
		mu.Lock()
		defer mu.Unlock()
		batch := make([]any, 0, len(msgs))
		for _, msg := range msgs {
			batch = append(batch, msg.Payload)
		}
		batches = append(batches, batch)

		return nil
	}, BatchOptions{BatchSize: 3, BatchTimeout: 20 * time.Millisecond}))

	for i := range 3 {
		_, err := m.Enqueue("work", i, EnqueueOptions{})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		total := 0
		for _, b := range batches {
			total += len(b)
		}

		return total == 3
	}, 2*time.Second, 5*time.Millisecond)
}

func TestBatchFailsAtomically(t *testing.T) {
	m := newTestManager(t, Config{})

	var invocations atomic.Int32
	var mu sync.Mutex
	var retriedCounts []int
	require.NoError(t, m.SetBatchProcessor("work", func(_ context.Context, msgs []*Message) error {
		if invocations.Add(1) == 1 {
			return errors.New("whole batch fails")
		}
		mu.Lock()
		for _, msg := range msgs {
			retriedCounts = append(retriedCounts, msg.RetryCount)
		}
		mu.Unlock()

		return nil
	}, BatchOptions{BatchSize: 3, BatchTimeout: 10 * time.Millisecond}))

	for i := range 3 {
		_, err := m.Enqueue("work", i, EnqueueOptions{MaxRetries: 2})
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		stats, _ := m.QueueStats("work")

		return stats.Processed == 3
	}, 2*time.Second, 5*time.Millisecond)

	// Every member of the failed batch was retried.
	stats, _ := m.QueueStats("work")
	require.Equal(t, uint64(3), stats.Retried)

	mu.Lock()
	defer mu.Unlock()
	for _, rc := range retriedCounts {
		require.Equal(t, 1, rc)
	}
}

func TestProcessorPanicIsRecovered(t *testing.T) {
	m := newTestManager(t, Config{})

	var attempts atomic.Int32
	require.NoError(t, m.SetProcessor("work", func(_ context.Context, _ *Message) error {
		if attempts.Add(1) == 1 {
			panic("boom")
		}

		return nil
	}))

	_, err := m.Enqueue("work", "x", EnqueueOptions{MaxRetries: 2})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		stats, _ := m.QueueStats("work")

		return stats.Processed == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPauseResume(t *testing.T) {
	m := newTestManager(t, Config{})
	rec := &recorder{}
	require.NoError(t, m.SetProcessor("work", rec.process))

	require.NoError(t, m.PauseQueue("work"))

	_, err := m.Enqueue("work", "held", EnqueueOptions{})
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	require.Empty(t, rec.snapshot(), "paused queue processed a message")

	require.NoError(t, m.ResumeQueue("work"))
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestClearQueue(t *testing.T) {
	m := newTestManager(t, Config{})

	for i := range 3 {
		_, err := m.Enqueue("work", i, EnqueueOptions{})
		require.NoError(t, err)
	}

	n, err := m.ClearQueue("work")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	stats, ok := m.QueueStats("work")
	require.True(t, ok)
	require.Equal(t, 0, stats.Depth)

	_, err = m.ClearQueue("missing")
	require.ErrorIs(t, err, ErrQueueNotFound)
}

func TestRemoveQueue(t *testing.T) {
	m := newTestManager(t, Config{})

	_, err := m.Enqueue("work", "x", EnqueueOptions{})
	require.NoError(t, err)

	require.NoError(t, m.RemoveQueue("work"))
	_, ok := m.QueueStats("work")
	require.False(t, ok)

	require.ErrorIs(t, m.RemoveQueue("work"), ErrQueueNotFound)

	// A later enqueue recreates the queue from scratch.
	_, err = m.Enqueue("work", "y", EnqueueOptions{})
	require.NoError(t, err)
	stats, ok := m.QueueStats("work")
	require.True(t, ok)
	require.Equal(t, uint64(1), stats.Enqueued)
}

func TestOverallStats(t *testing.T) {
	m := newTestManager(t, Config{})

	_, err := m.Enqueue("a", 1, EnqueueOptions{})
	require.NoError(t, err)
	_, err = m.Enqueue("b", 2, EnqueueOptions{})
	require.NoError(t, err)

	overall := m.OverallStats()
	require.Equal(t, 2, overall.Queues)
	require.Equal(t, uint64(2), overall.Enqueued)
	require.Equal(t, 2, overall.Depth)
}

func TestCloseRejectsNewWork(t *testing.T) {
	m := NewManager(Config{})
	m.Close()

	_, err := m.Enqueue("work", "x", EnqueueOptions{})
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, m.SetProcessor("work", func(context.Context, *Message) error { return nil }), ErrClosed)

	// Idempotent.
	m.Close()
}
