package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maoragency/Zomet-sub000/queue"
	"github.com/maoragency/Zomet-sub000/realtimetest"
	"github.com/maoragency/Zomet-sub000/types"
)

func newTestRuntime(t *testing.T, cfg Config, opts ...Option) (*Runtime, *realtimetest.FakeSource) {
	t.Helper()

	src := realtimetest.NewFakeSource()
	opts = append([]Option{WithLogger(realtimetest.NewTestLogger(t))}, opts...)
	rt, err := NewRuntime(cfg, src, opts...)
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	return rt, src
}

func TestNewRuntime_Validation(t *testing.T) {
	_, err := NewRuntime(TestConfig(), nil)
	require.ErrorIs(t, err, ErrEventSourceRequired)

	src := realtimetest.NewFakeSource()

	bad := TestConfig()
	bad.MaxConnections = -1
	_, err = NewRuntime(bad, src)
	require.ErrorIs(t, err, ErrInvalidConfig)

	prio := TestConfig()
	prio.EnablePrioritization = true
	_, err = NewRuntime(prio, src)
	require.ErrorIs(t, err, ErrClassifierRequired)
}

func TestRuntime_SubscribeAndDeliver(t *testing.T) {
	rt, src := newTestRuntime(t, TestConfig())

	var mu sync.Mutex
	var got []types.ChangeEvent
	spec := TopicSpec{Channel: "orders", Filter: EventFilter{Table: "orders"}}

	sub, err := rt.Subscribe(t.Context(), "user-1", spec, func(d Delivery) {
		mu.Lock()
		got = append(got, *d.First())
		mu.Unlock()
	}, SubscribeOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, sub.ID())

	src.Emit("orders", types.ChangeEvent{Kind: EventInsert, Table: "orders", Payload: []byte(`{"id":1}`)})
	src.Emit("orders", types.ChangeEvent{Kind: EventInsert, Table: "audit"}) // filtered out

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(got) == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	require.Equal(t, "orders", got[0].Table)
	require.JSONEq(t, `{"id":1}`, string(got[0].Payload))
	mu.Unlock()

	stats := rt.Stats()
	require.Equal(t, 1, stats.Connections.ActiveConnections)
	require.Equal(t, 1, stats.Subscriptions.ActiveSubscriptions)

	sub.Unsubscribe()
	require.Eventually(t, func() bool {
		return src.ActiveChannels() == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRuntime_SharedConnectionAcrossConsumers(t *testing.T) {
	rt, src := newTestRuntime(t, TestConfig())

	var count atomic.Int64
	spec := TopicSpec{Channel: "orders"}
	cb := func(Delivery) { count.Add(1) }

	_, err := rt.Subscribe(t.Context(), "user-1", spec, cb, SubscribeOptions{})
	require.NoError(t, err)
	_, err = rt.Subscribe(t.Context(), "user-2", spec, cb, SubscribeOptions{})
	require.NoError(t, err)
	_, err = rt.Subscribe(t.Context(), "user-1", spec, cb, SubscribeOptions{})
	require.NoError(t, err)

	// Deduplication and grouping collapse three registrations onto one
	// connection.
	require.Equal(t, 1, src.OpenCount())

	src.Emit("orders", types.ChangeEvent{Kind: EventUpdate})
	require.Eventually(t, func() bool {
		return count.Load() == 3
	}, 2*time.Second, 5*time.Millisecond)

	stats := rt.Stats()
	require.Equal(t, uint64(3), stats.Subscriptions.TotalRegistrations)
	require.InDelta(t, 2.0/3.0, stats.Subscriptions.OptimizationRate, 0.001)
}

func TestRuntime_QueueRoundTrip(t *testing.T) {
	rt, _ := newTestRuntime(t, TestConfig())

	var processed atomic.Int64
	err := rt.SetProcessor("emails", func(_ context.Context, msg *queue.Message) error {
		processed.Add(1)

		return nil
	})
	require.NoError(t, err)

	id, err := rt.Enqueue("emails", "welcome", EnqueueOptions{Priority: PriorityHigh})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		return processed.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, uint64(1), rt.Stats().Queues.Processed)
}

func TestRuntime_PrioritizedDelivery(t *testing.T) {
	classifier := ClassifierFunc(func(ev *ChangeEvent) Priority {
		if ev.Table == "payments" {
			return PriorityHigh
		}

		return PriorityNormal
	})

	cfg := TestConfig()
	cfg.EnablePrioritization = true
	rt, src := newTestRuntime(t, cfg, WithClassifier(classifier))

	var count atomic.Int64
	_, err := rt.Subscribe(t.Context(), "user-1", TopicSpec{Channel: "all"}, func(Delivery) {
		count.Add(1)
	}, SubscribeOptions{})
	require.NoError(t, err)

	src.Emit("all", types.ChangeEvent{Kind: EventInsert, Table: "payments"})
	src.Emit("all", types.ChangeEvent{Kind: EventInsert, Table: "audit"})

	require.Eventually(t, func() bool {
		return count.Load() == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRuntime_PolicyHooksDelegate(t *testing.T) {
	rt, src := newTestRuntime(t, TestConfig())

	var count atomic.Int64
	_, err := rt.Subscribe(t.Context(), "user-1", TopicSpec{Channel: "orders"}, func(Delivery) {
		count.Add(1)
	}, SubscribeOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, src.OpenCount())

	rt.SetForeground(false)
	rt.SetForeground(true)

	rt.SetOnline(false)
	rt.SetOnline(true)

	// The online transition reconnects the pooled connection.
	require.Eventually(t, func() bool {
		return src.OpenCount() == 2 && src.TopicChannels("orders") == 1
	}, 2*time.Second, 5*time.Millisecond)

	src.Emit("orders", types.ChangeEvent{Kind: EventInsert})
	require.Eventually(t, func() bool {
		return count.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRuntime_ReconnectSurfacesTerminalError(t *testing.T) {
	cfg := TestConfig()
	cfg.MaxReconnectAttempts = 2

	rt, src := newTestRuntime(t, cfg)
	src.SetOpenErr(errors.New("transport down"))

	var terminal atomic.Bool
	_, err := rt.Subscribe(t.Context(), "user-1", TopicSpec{Channel: "orders"}, func(Delivery) {}, SubscribeOptions{
		OnStatus: func(status ChannelStatus, cause error) {
			if status == ChannelErrored && cause != nil {
				terminal.Store(true)
			}
		},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return terminal.Load()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestRuntime_Close(t *testing.T) {
	rt, src := newTestRuntime(t, TestConfig())

	_, err := rt.Subscribe(t.Context(), "user-1", TopicSpec{Channel: "orders"}, func(Delivery) {}, SubscribeOptions{})
	require.NoError(t, err)

	rt.Close()
	rt.Close() // idempotent

	require.Equal(t, 0, src.ActiveChannels())

	_, err = rt.Subscribe(t.Context(), "user-1", TopicSpec{Channel: "orders"}, func(Delivery) {}, SubscribeOptions{})
	require.Error(t, err)

	_, err = rt.Enqueue("emails", "x", EnqueueOptions{})
	require.ErrorIs(t, err, queue.ErrClosed)
}
