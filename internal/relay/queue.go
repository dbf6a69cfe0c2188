package relay

import (
	"sync"

	"github.com/eapache/queue"
)

// DefaultQueueLimit is the default capacity of the event queue.
const DefaultQueueLimit = 1000

// Queue is a bounded FIFO buffer of events not yet claimed by a waiter.
//
// Push and TakeFirst share one mutex, so neither ever observes a partial
// state. When the queue is full, Push evicts the oldest event. Every Push
// broadcasts a new-data signal by closing the current signal channel and
// replacing it with a fresh one; waiters capture the channel under the
// same lock as their scan, so a push that lands after an unsuccessful scan
// always wakes the waiter.
type Queue struct {
	mu     sync.Mutex
	events *queue.Queue
	limit  int
	signal chan struct{}
}

// NewQueue creates a queue holding at most limit events. A non-positive
// limit selects DefaultQueueLimit.
func NewQueue(limit int) *Queue {
	if limit <= 0 {
		limit = DefaultQueueLimit
	}

	return &Queue{
		events: queue.New(),
		limit:  limit,
		signal: make(chan struct{}),
	}
}

// Push appends an event, evicting the oldest one first when the queue is
// at capacity, then wakes every blocked waiter.
func (q *Queue) Push(ev *Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.events.Length() >= q.limit {
		q.events.Remove()
	}

	q.events.Add(ev)

	// Append happens strictly before the signal: a waiter woken by this
	// close re-scans and finds the event.
	closed := q.signal
	q.signal = make(chan struct{})
	close(closed)
}

// TakeFirst removes and returns the oldest event satisfying pred, or nil
// when none matches. A nil pred matches anything.
//
// The returned channel is closed by the next Push. It is captured
// atomically with the scan, so blocking on it cannot miss an event that
// arrives after the scan came up empty.
func (q *Queue) TakeFirst(pred Predicate) (*Event, <-chan struct{}) {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Rotate through the ring once: the first match is dropped, everything
	// else is re-appended in order.
	n := q.events.Length()

	var match *Event

	for range n {
		ev := q.events.Remove().(*Event)
		if match == nil && (pred == nil || pred(ev)) {
			match = ev

			continue
		}

		q.events.Add(ev)
	}

	return match, q.signal
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.events.Length()
}

// Snapshot returns the queued events in arrival order without removing
// them.
func (q *Queue) Snapshot() []*Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.events.Length()
	events := make([]*Event, 0, n)

	for i := range n {
		events = append(events, q.events.Get(i).(*Event))
	}

	return events
}
