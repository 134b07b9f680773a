package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/listsync/internal/schema"
	"github.com/roach88/listsync/internal/testutil"
)

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_ConcurrentUnique(t *testing.T) {
	c := NewClock()
	seen := make(chan int64, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				seen <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for v := range seen {
		assert.False(t, unique[v])
		unique[v] = true
	}
	assert.Len(t, unique, 1000)
}

func TestClock_SharedAcrossEngines(t *testing.T) {
	clock := NewClock()
	contacts := New(schema.MustBuiltin("contacts"), testutil.NewFakeRemote(), nil, testutil.NewNotifyRecorder(), WithClock(clock))
	blogs := New(schema.MustBuiltin("blogs"), testutil.NewFakeRemote(), nil, testutil.NewNotifyRecorder(), WithClock(clock))

	a, err := contacts.LoadAll(context.Background())
	require.NoError(t, err)
	b, err := blogs.LoadAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)
	assert.Same(t, clock, blogs.Clock())
	assert.Equal(t, int64(2), clock.Current())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	var g UUIDv7Generator
	a, b := g.Generate(), g.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
	assert.Equal(t, byte('7'), a[14])
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "awaiting_confirmation", PhaseAwaitingConfirmation.String())
	assert.Equal(t, "phase(99)", Phase(99).String())
	assert.True(t, PhaseCommitted.Terminal())
	assert.False(t, PhaseInFlight.Terminal())
}
