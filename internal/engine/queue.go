package engine

import (
	"sync"

	"github.com/roach88/listsync/internal/record"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventTypeIntent is a caller's op waiting for its loop-side checks.
	EventTypeIntent EventType = iota + 1
	// EventTypeOutcome is a finished remote call waiting to be applied.
	EventTypeOutcome
)

// Outcome is the result of one remote call.
type Outcome struct {
	Record  record.Record
	Records []record.Record
	Err     error
}

// Event wraps intents and outcomes for the event queue.
type Event struct {
	Type    EventType
	Op      *Op
	Outcome *Outcome
}

// eventQueue is a thread-safe unbounded FIFO queue for events.
//
// Callers enqueue intents and remote goroutines enqueue outcomes while the
// Run loop dequeues. Enqueue never blocks, so a slow loop cannot stall a
// remote goroutine.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	// Nil out the slot so the Op and Outcome can be collected.
	q.events[0] = Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close or Drain has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more events will be enqueued and wakes waiters.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Drain closes the queue and returns everything still in it.
func (q *eventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.signal)
	}
	out := q.events
	q.events = nil
	return out
}
