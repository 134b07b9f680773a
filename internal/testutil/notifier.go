package testutil

import (
	"sync"

	"github.com/roach88/listsync/internal/notify"
)

// Notice is one recorded notification.
type Notice struct {
	Text string
	Kind notify.Kind
}

// NotifyRecorder is a Notifier that keeps every notification in order.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type NotifyRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

// NewNotifyRecorder creates an empty recorder.
func NewNotifyRecorder() *NotifyRecorder {
	return &NotifyRecorder{}
}

// Notify records the notification.
func (r *NotifyRecorder) Notify(text string, kind notify.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, Notice{Text: text, Kind: kind})
}

// Notices returns a copy of everything recorded.
func (r *NotifyRecorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

// Count returns the number of notifications of kind.
func (r *NotifyRecorder) Count(kind notify.Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.notices {
		if x.Kind == kind {
			n++
		}
	}
	return n
}

// Last returns the most recent notification.
func (r *NotifyRecorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// StaticTokens is a TokenSource with a settable token.
type StaticTokens struct {
	mu    sync.Mutex
	token string
}

// NewStaticTokens returns a source holding token ("" means no session).
func NewStaticTokens(token string) *StaticTokens {
	return &StaticTokens{token: token}
}

// Set replaces the token.
func (s *StaticTokens) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// CurrentToken implements engine.TokenSource.
func (s *StaticTokens) CurrentToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}
