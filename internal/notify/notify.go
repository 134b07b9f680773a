// Package notify holds the single ephemeral status message shown to the user.
//
// At most one notification is active. A new notification replaces the
// current one and restarts the expiry timer, so only one timer is ever
// pending. Expiry is generation-guarded: a timer that fires after it was
// superseded clears nothing.
package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultDuration is how long a notification stays visible.
const DefaultDuration = 5 * time.Second

// Kind distinguishes success messages from error messages.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is one status message.
type Notification struct {
	Text      string    `json:"text"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler provides time and delayed execution.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler uses the wall clock.
type RealScheduler struct{}

func (RealScheduler) Now() time.Time { return time.Now() }

func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Observer is called after every change with the new state.
// ok is false when the notification was cleared or expired.
type Observer func(n Notification, ok bool)

// Center owns the current notification.
type Center struct {
	sched    Scheduler
	duration time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	current   *Notification
	gen       uint64
	timer     Timer
	observers []Observer

	// emitMu keeps observer calls in state-change order.
	emitMu sync.Mutex
}

// Option configures a Center.
type Option func(*Center)

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s Scheduler) Option {
	return func(c *Center) { c.sched = s }
}

// WithDuration sets the expiry duration.
func WithDuration(d time.Duration) Option {
	return func(c *Center) { c.duration = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Center) { c.logger = l }
}

// NewCenter returns an empty Center.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		sched:    RealScheduler{},
		duration: DefaultDuration,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.duration <= 0 {
		c.duration = DefaultDuration
	}
	return c
}

// Notify replaces the current notification and restarts the expiry timer.
func (c *Center) Notify(text string, kind Kind) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.timer != nil {
		c.timer.Stop()
	}
	n := Notification{Text: text, Kind: kind, CreatedAt: c.sched.Now()}
	c.current = &n
	c.timer = c.sched.AfterFunc(c.duration, func() { c.expire(gen) })
	observers := c.observers
	c.mu.Unlock()

	if kind == KindError {
		c.logger.Warn("notification", "kind", string(kind), "text", text)
	} else {
		c.logger.Info("notification", "kind", string(kind), "text", text)
	}
	for _, o := range observers {
		o(n, true)
	}
}

// Success emits a success notification.
func (c *Center) Success(format string, args ...any) {
	c.Notify(fmt.Sprintf(format, args...), KindSuccess)
}

// Error emits an error notification.
func (c *Center) Error(format string, args ...any) {
	c.Notify(fmt.Sprintf(format, args...), KindError)
}

// Clear removes the current notification and cancels the pending timer.
func (c *Center) Clear() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	had := c.current != nil
	c.gen++
	c.current = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	observers := c.observers
	c.mu.Unlock()

	if had {
		for _, o := range observers {
			o(Notification{}, false)
		}
	}
}

// expire clears the notification if gen is still current.
func (c *Center) expire(gen uint64) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if gen != c.gen || c.current == nil {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.timer = nil
	observers := c.observers
	c.mu.Unlock()

	c.logger.Debug("notification expired")
	for _, o := range observers {
		o(Notification{}, false)
	}
}

// Current returns the active notification.
func (c *Center) Current() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Notification{}, false
	}
	return *c.current, true
}

// Subscribe registers an observer. Observers must not call back into the Center.
func (c *Center) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}
