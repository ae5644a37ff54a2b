package natsource

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maoragency/Zomet-sub000/realtimetest"
	"github.com/maoragency/Zomet-sub000/types"
)

func newTestSource(t *testing.T) *Source {
	t.Helper()

	_, nc := realtimetest.StartEmbeddedNATS(t)
	src, err := New(nc, Config{Logger: realtimetest.NewTestLogger(t)})
	require.NoError(t, err)

	return src
}

func TestNew_RequiresConnection(t *testing.T) {
	_, err := New(nil, Config{})
	require.Error(t, err)
}

func TestOpenChannel_RequiresTopic(t *testing.T) {
	src := newTestSource(t)

	_, err := src.OpenChannel(t.Context(), "")
	require.Error(t, err)
}

func TestPublishEvent_RoundTrip(t *testing.T) {
	src := newTestSource(t)

	ch, err := src.OpenChannel(t.Context(), "orders")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	var mu sync.Mutex
	var got []types.ChangeEvent
	err = ch.On(types.EventAll, types.EventFilter{}, func(ev types.ChangeEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	})
	require.NoError(t, err)

	sent := types.ChangeEvent{
		Kind:    types.EventInsert,
		Table:   "orders",
		Payload: []byte(`{"id":42}`),
	}
	require.NoError(t, src.PublishEvent("orders", sent))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(got) == 1
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "orders", got[0].Topic)
	require.Equal(t, types.EventInsert, got[0].Kind)
	require.Equal(t, "orders", got[0].Table)
	require.JSONEq(t, `{"id":42}`, string(got[0].Payload))
	require.False(t, got[0].Timestamp.IsZero())
}

func TestChannel_FilterAndKindSelection(t *testing.T) {
	src := newTestSource(t)

	ch, err := src.OpenChannel(t.Context(), "orders")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	var mu sync.Mutex
	var inserts, payments int
	err = ch.On(types.EventInsert, types.EventFilter{}, func(types.ChangeEvent) {
		mu.Lock()
		inserts++
		mu.Unlock()
	})
	require.NoError(t, err)
	err = ch.On(types.EventAll, types.EventFilter{Table: "payments"}, func(types.ChangeEvent) {
		mu.Lock()
		payments++
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, src.PublishEvent("orders", types.ChangeEvent{Kind: types.EventInsert, Table: "orders"}))
	require.NoError(t, src.PublishEvent("orders", types.ChangeEvent{Kind: types.EventDelete, Table: "payments"}))
	require.NoError(t, src.PublishEvent("orders", types.ChangeEvent{Kind: types.EventUpdate, Table: "orders"}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return inserts == 1 && payments == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestChannel_TopicIsolation(t *testing.T) {
	src := newTestSource(t)

	orders, err := src.OpenChannel(t.Context(), "orders")
	require.NoError(t, err)
	t.Cleanup(func() { _ = orders.Close() })

	var mu sync.Mutex
	var count int
	err = orders.On(types.EventAll, types.EventFilter{}, func(types.ChangeEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, src.PublishEvent("payments", types.ChangeEvent{Kind: types.EventInsert}))
	require.NoError(t, src.PublishEvent("orders", types.ChangeEvent{Kind: types.EventInsert}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return count == 1
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	require.Equal(t, 1, count)
	mu.Unlock()
}

func TestChannel_SubscribeStatusFiresCurrentState(t *testing.T) {
	src := newTestSource(t)

	ch, err := src.OpenChannel(t.Context(), "orders")
	require.NoError(t, err)

	var mu sync.Mutex
	var statuses []types.ChannelStatus
	token := ch.SubscribeStatus(func(status types.ChannelStatus, _ error) {
		mu.Lock()
		statuses = append(statuses, status)
		mu.Unlock()
	})

	mu.Lock()
	require.Equal(t, []types.ChannelStatus{types.ChannelSubscribed}, statuses)
	mu.Unlock()

	require.NoError(t, ch.Close())
	mu.Lock()
	require.Equal(t, []types.ChannelStatus{types.ChannelSubscribed, types.ChannelClosed}, statuses)
	mu.Unlock()

	ch.UnsubscribeStatus(token)
}

func TestChannel_Send(t *testing.T) {
	src := newTestSource(t)

	ch, err := src.OpenChannel(t.Context(), "orders")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	require.NoError(t, ch.Send(t.Context(), []byte(`{"type":"heartbeat"}`)))
}

func TestChannel_CloseIdempotent(t *testing.T) {
	src := newTestSource(t)

	ch, err := src.OpenChannel(t.Context(), "orders")
	require.NoError(t, err)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())

	err = ch.On(types.EventAll, types.EventFilter{}, func(types.ChangeEvent) {})
	require.Error(t, err)
}

func TestChannel_UndecodableEventDropped(t *testing.T) {
	src := newTestSource(t)

	ch, err := src.OpenChannel(t.Context(), "orders")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	var mu sync.Mutex
	var count int
	err = ch.On(types.EventAll, types.EventFilter{}, func(types.ChangeEvent) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	// Garbage on the event subject must be dropped, not delivered.
	require.NoError(t, src.nc.Publish(src.eventSubject("orders"), []byte("not json")))
	require.NoError(t, src.PublishEvent("orders", types.ChangeEvent{Kind: types.EventInsert}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return count == 1
	}, 2*time.Second, 5*time.Millisecond)
}
