package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualScheduler_StartsAtEpoch(t *testing.T) {
	s := NewManualScheduler()
	assert.Equal(t, Epoch, s.Now())
}

func TestManualScheduler_FiresInDeadlineOrder(t *testing.T) {
	s := NewManualScheduler()
	var fired []string

	s.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	s.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	s.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })

	s.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, 1, s.Pending())

	s.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, Epoch.Add(3*time.Second), s.Now())
}

func TestManualScheduler_Stop(t *testing.T) {
	s := NewManualScheduler()
	fired := false

	timer := s.AfterFunc(time.Second, func() { fired = true })
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	s.Advance(time.Hour)
	assert.False(t, fired)
	assert.Zero(t, s.Pending())
}

func TestManualScheduler_TimerScheduledDuringAdvance(t *testing.T) {
	s := NewManualScheduler()
	var fired []time.Time

	s.AfterFunc(time.Second, func() {
		fired = append(fired, s.Now())
		s.AfterFunc(time.Second, func() { fired = append(fired, s.Now()) })
	})

	s.Advance(5 * time.Second)
	assert.Equal(t, []time.Time{Epoch.Add(time.Second), Epoch.Add(2 * time.Second)}, fired)
}

func TestManualScheduler_StopAfterFire(t *testing.T) {
	s := NewManualScheduler()
	timer := s.AfterFunc(time.Second, func() {})
	s.Advance(time.Second)
	assert.False(t, timer.Stop())
}
