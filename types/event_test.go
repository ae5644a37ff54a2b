package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTopicSpecHash_Deterministic(t *testing.T) {
	spec := TopicSpec{
		Channel: "orders",
		Filter:  EventFilter{Table: "orders", Predicate: "status=eq.active", Kind: EventInsert},
	}

	require.Equal(t, spec.Hash(), spec.Hash())

	same := TopicSpec{
		Channel: "orders",
		Filter:  EventFilter{Table: "orders", Predicate: "status=eq.active", Kind: EventInsert},
	}
	require.Equal(t, spec.Hash(), same.Hash())
}

func TestTopicSpecHash_DistinguishesFields(t *testing.T) {
	base := TopicSpec{Channel: "orders", Filter: EventFilter{Table: "orders"}}

	byChannel := base
	byChannel.Channel = "payments"
	require.NotEqual(t, base.Hash(), byChannel.Hash())

	byTable := base
	byTable.Filter.Table = "payments"
	require.NotEqual(t, base.Hash(), byTable.Hash())

	byKind := base
	byKind.Filter.Kind = EventDelete
	require.NotEqual(t, base.Hash(), byKind.Hash())
}

func TestTopicSpecHash_NoFieldBoundaryCollision(t *testing.T) {
	// "ab"+"c" must not hash like "a"+"bc".
	a := TopicSpec{Channel: "ab", Filter: EventFilter{Table: "c"}}
	b := TopicSpec{Channel: "a", Filter: EventFilter{Table: "bc"}}

	require.NotEqual(t, a.Hash(), b.Hash())
}

func TestEventFilterMatches(t *testing.T) {
	ev := &ChangeEvent{Topic: "orders", Kind: EventUpdate, Table: "orders"}

	require.True(t, EventFilter{}.Matches(ev))
	require.True(t, EventFilter{Table: "orders"}.Matches(ev))
	require.True(t, EventFilter{Kind: EventAll}.Matches(ev))
	require.True(t, EventFilter{Kind: EventUpdate}.Matches(ev))

	require.False(t, EventFilter{Table: "payments"}.Matches(ev))
	require.False(t, EventFilter{Kind: EventDelete}.Matches(ev))
}

func TestDelivery(t *testing.T) {
	empty := Delivery{}
	require.False(t, empty.IsBatch())
	require.Equal(t, 0, empty.Count())
	require.Nil(t, empty.First())

	ev := ChangeEvent{Kind: EventInsert, Timestamp: time.Now()}
	single := Delivery{Event: &ev}
	require.False(t, single.IsBatch())
	require.Equal(t, 1, single.Count())
	require.Equal(t, &ev, single.First())

	batch := Delivery{Batch: []ChangeEvent{{Kind: EventInsert}, {Kind: EventUpdate}}}
	require.True(t, batch.IsBatch())
	require.Equal(t, 2, batch.Count())
	require.Equal(t, EventInsert, batch.First().Kind)
}

func TestPriority(t *testing.T) {
	require.Equal(t, PriorityNormal, Priority(0))

	require.True(t, PriorityHigh.Weight() < PriorityNormal.Weight())
	require.True(t, PriorityNormal.Weight() < PriorityLow.Weight())

	for _, p := range []Priority{PriorityHigh, PriorityNormal, PriorityLow} {
		require.True(t, p.Valid())
		parsed, err := ParsePriority(p.String())
		require.NoError(t, err)
		require.Equal(t, p, parsed)
	}

	_, err := ParsePriority("urgent")
	require.Error(t, err)
	require.False(t, Priority(42).Valid())
}
