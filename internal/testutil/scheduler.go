package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/roach88/listsync/internal/notify"
)

// Epoch is the start time of every ManualScheduler.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ManualScheduler is a notify.Scheduler whose time only moves on Advance.
//
// Timers fire synchronously inside Advance, in deadline order, after the
// scheduler's lock has been released. This makes expiry tests exact: no
// sleeps, no flakes.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Time
	seq    int64
	timers []*manualTimer
}

type manualTimer struct {
	s        *ManualScheduler
	deadline time.Time
	seq      int64
	f        func()
	stopped  bool
	fired    bool
}

// NewManualScheduler creates a scheduler at Epoch.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{now: Epoch}
}

// Now returns the scheduler's current time.
func (s *ManualScheduler) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// AfterFunc schedules f to run once Advance passes now+d.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) notify.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &manualTimer{s: s, deadline: s.now.Add(d), seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Stop cancels the timer. Returns false if it already fired or was stopped.
func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward by d and fires every timer that became due.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now.Add(d)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		t := s.nextDue(target)
		if t == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		t.fired = true
		s.now = t.deadline
		s.mu.Unlock()

		t.f()
	}
}

// nextDue pops the earliest live timer with deadline <= target.
// Caller holds s.mu.
func (s *ManualScheduler) nextDue(target time.Time) *manualTimer {
	live := s.timers[:0]
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	s.timers = live

	sort.SliceStable(s.timers, func(i, j int) bool {
		if s.timers[i].deadline.Equal(s.timers[j].deadline) {
			return s.timers[i].seq < s.timers[j].seq
		}
		return s.timers[i].deadline.Before(s.timers[j].deadline)
	})
	if len(s.timers) == 0 || s.timers[0].deadline.After(target) {
		return nil
	}
	t := s.timers[0]
	s.timers = s.timers[1:]
	return t
}

// Pending returns the number of live timers.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

var _ notify.Scheduler = (*ManualScheduler)(nil)
