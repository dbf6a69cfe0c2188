package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func event(sender, body string) *Event {
	return &Event{
		Envelope: Envelope{
			Source:      sender,
			DataMessage: &DataMessage{Message: body},
		},
	}
}

func senders(events []*Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Sender())
	}

	return out
}

func TestQueue_EvictsOldestAtCapacity(t *testing.T) {
	q := NewQueue(2)

	q.Push(event("a", "1"))
	q.Push(event("b", "2"))
	q.Push(event("c", "3"))

	require.Equal(t, 2, q.Len())
	require.Equal(t, []string{"b", "c"}, senders(q.Snapshot()))
}

func TestQueue_OverflowKeepsLastNInOrder(t *testing.T) {
	q := NewQueue(5)

	for _, s := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		q.Push(event(s, "m"))
	}

	require.Equal(t, []string{"4", "5", "6", "7", "8"}, senders(q.Snapshot()))
}

func TestQueue_TakeFirstMatchesByPredicate(t *testing.T) {
	q := NewQueue(10)

	q.Push(event("u1", "first"))
	q.Push(event("u1", "second"))
	q.Push(event("u2", "third"))

	ev, _ := q.TakeFirst(func(ev *Event) bool { return ev.Sender() == "u2" })
	require.NotNil(t, ev)
	require.Equal(t, "third", ev.Body())

	// The non-matching events stay queued, in order.
	require.Equal(t, []string{"u1", "u1"}, senders(q.Snapshot()))
}

func TestQueue_TakeFirstNilPredicateReturnsOldest(t *testing.T) {
	q := NewQueue(10)

	q.Push(event("u1", "first"))
	q.Push(event("u2", "second"))

	ev, _ := q.TakeFirst(nil)
	require.NotNil(t, ev)
	require.Equal(t, "first", ev.Body())
	require.Equal(t, 1, q.Len())
}

func TestQueue_TakeFirstPreservesOrderAroundMatch(t *testing.T) {
	q := NewQueue(10)

	for _, s := range []string{"1", "2", "3", "4", "5"} {
		q.Push(event(s, "m"))
	}

	ev, _ := q.TakeFirst(func(ev *Event) bool { return ev.Sender() == "3" })
	require.NotNil(t, ev)
	require.Equal(t, []string{"1", "2", "4", "5"}, senders(q.Snapshot()))
}

func TestQueue_TakeFirstRemovesOnlyFirstMatch(t *testing.T) {
	q := NewQueue(10)

	q.Push(event("u1", "first"))
	q.Push(event("u1", "second"))

	ev, _ := q.TakeFirst(func(ev *Event) bool { return ev.Sender() == "u1" })
	require.Equal(t, "first", ev.Body())

	ev, _ = q.TakeFirst(func(ev *Event) bool { return ev.Sender() == "u1" })
	require.Equal(t, "second", ev.Body())

	ev, _ = q.TakeFirst(func(ev *Event) bool { return ev.Sender() == "u1" })
	require.Nil(t, ev)
}

func TestQueue_PushSignalsCapturedChannel(t *testing.T) {
	q := NewQueue(10)

	ev, signal := q.TakeFirst(nil)
	require.Nil(t, ev)

	select {
	case <-signal:
		t.Fatal("signal closed before any push")
	default:
	}

	q.Push(event("u1", "m"))

	select {
	case <-signal:
	case <-time.After(time.Second):
		t.Fatal("push did not close the captured signal channel")
	}
}

func TestQueue_NonPositiveLimitUsesDefault(t *testing.T) {
	q := NewQueue(0)

	for range DefaultQueueLimit + 10 {
		q.Push(event("u", "m"))
	}

	require.Equal(t, DefaultQueueLimit, q.Len())
}
