package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intent(id string) Event {
	return Event{Type: EventTypeIntent, Op: &Op{ID: id}}
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()
	for _, id := range []string{"A", "B", "C"} {
		require.True(t, q.Enqueue(intent(id)))
	}

	for _, want := range []string{"A", "B", "C"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.Op.ID)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestEventQueue_SignalCoalesces(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(intent("A"))
	q.Enqueue(intent("B"))

	select {
	case <-q.Wait():
	case <-time.After(time.Second):
		t.Fatal("no signal")
	}
	select {
	case <-q.Wait():
		t.Fatal("second signal should have coalesced")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestEventQueue_Close(t *testing.T) {
	q := newEventQueue()
	assert.False(t, q.Closed())
	q.Close()
	q.Close()
	assert.True(t, q.Closed())

	assert.False(t, q.Enqueue(intent("A")))
	_, open := <-q.Wait()
	assert.False(t, open)
}

func TestEventQueue_LeftoverSignalAfterDequeue(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(intent("A"))
	_, ok := q.TryDequeue()
	require.True(t, ok)

	// The wakeup for A is still buffered; it must not read as a close.
	_, open := <-q.Wait()
	assert.True(t, open)
	assert.False(t, q.Closed())
	assert.Zero(t, q.Len())
}

func TestEventQueue_Drain(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(intent("A"))
	q.Enqueue(intent("B"))

	events := q.Drain()
	require.Len(t, events, 2)
	assert.Equal(t, "A", events[0].Op.ID)
	assert.False(t, q.Enqueue(intent("C")))
	assert.Empty(t, q.Drain())
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	q := newEventQueue()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Enqueue(intent("x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, q.Len())
}
