package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/listsync/internal/notify"
	"github.com/roach88/listsync/internal/record"
	"github.com/roach88/listsync/internal/schema"
)

// ErrStopped is returned for ops submitted after the engine stopped, and
// for ops still queued when it did.
var ErrStopped = errors.New("engine stopped")

// Remote is the remote resource API for one collection.
type Remote interface {
	List(ctx context.Context) ([]record.Record, error)
	Create(ctx context.Context, token string, fields record.Fields) (record.Record, error)
	Update(ctx context.Context, token, id string, fields record.Fields) (record.Record, error)
	Delete(ctx context.Context, token, id string) error
}

// TokenSource yields the current session token, or ("", false) when there is
// no session. Implemented by session.Manager.
type TokenSource interface {
	CurrentToken() (string, bool)
}

// Notifier reports outcomes to the user. Implemented by notify.Center.
type Notifier interface {
	Notify(text string, kind notify.Kind)
}

// Engine is the single-writer sync engine for one resource kind.
//
// Thread-safety model:
//   - LoadAll, Create, Resolve, Update, Remove, Like: safe from any goroutine
//   - Records, Ranked, Lookup: safe from any goroutine (snapshots)
//   - Run: must be called from exactly one goroutine
type Engine struct {
	kind     schema.Kind
	remote   Remote
	tokens   TokenSource
	notifier Notifier
	logger   *slog.Logger
	clock    *Clock
	ids      IDGenerator
	queue    *eventQueue

	// mu guards list. Written only by the Run goroutine.
	mu   sync.RWMutex
	list []record.Record

	// claimMu guards claims: one outstanding op per record id and per
	// folded create key.
	claimMu sync.Mutex
	claims  map[string]string

	calls sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithIDGenerator replaces the UUIDv7 mutation ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithClock replaces the logical clock.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// New creates an Engine for kind. tokens may be nil for kinds that never
// need authorization.
func New(kind schema.Kind, remote Remote, tokens TokenSource, notifier Notifier, opts ...Option) *Engine {
	e := &Engine{
		kind:     kind,
		remote:   remote,
		tokens:   tokens,
		notifier: notifier,
		logger:   slog.Default(),
		clock:    NewClock(),
		ids:      UUIDv7Generator{},
		queue:    newEventQueue(),
		list:     []record.Record{},
		claims:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("kind", kind.Name)
	return e
}

// Kind returns the resource kind this engine manages.
func (e *Engine) Kind() schema.Kind {
	return e.kind
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// QueueLen returns the number of events waiting for the loop.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run starts the single-writer event loop.
// Blocks until ctx is cancelled or Stop is called. Ops still queued at that
// point complete with ErrStopped; remote calls already issued are waited for
// and then discarded.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")
	defer e.shutdown()

	for {
		if e.queue.Closed() {
			e.logger.Info("engine stopping: queue closed")
			return nil
		}
		if event, ok := e.queue.TryDequeue(); ok {
			e.processEvent(ctx, event)
			continue
		}

		// The signal buffer may hold a wakeup for an event already
		// dequeued above; only Closed ends the loop.
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			return ctx.Err()
		case <-e.queue.Wait():
		}
	}
}

// Stop closes the event queue, which makes Run return.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) shutdown() {
	for _, ev := range e.queue.Drain() {
		e.release(ev.Op)
		ev.Op.finish(PhaseRolledBack, record.Record{}, ErrStopped)
	}
	e.calls.Wait()
}

// processEvent routes an event to its handler.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) processEvent(ctx context.Context, ev Event) {
	switch ev.Type {
	case EventTypeIntent:
		e.processIntent(ctx, ev.Op)
	case EventTypeOutcome:
		e.processOutcome(ev.Op, ev.Outcome)
		e.release(ev.Op)
	default:
		e.logger.Error("unknown event type", "type", int(ev.Type))
	}
}

// Records returns a copy of the list in insertion order.
func (e *Engine) Records() []record.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return record.CloneList(e.list)
}

// Ranked returns the list in display order: by the kind's rank field,
// highest first, or insertion order for kinds without one.
func (e *Engine) Ranked() []record.Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return record.Ranked(e.list, e.kind.RankField)
}

// Lookup returns the record with the given id.
func (e *Engine) Lookup(id string) (record.Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if i := record.IndexOf(e.list, id); i >= 0 {
		return e.list[i].Clone(), true
	}
	return record.Record{}, false
}

// LookupKey returns the record whose unique field folds to the same key as key.
func (e *Engine) LookupKey(key string) (record.Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := record.FindByKey(e.list, e.kind.UniqueField, record.FoldKey(key))
	return r.Clone(), ok
}

// Len returns the number of records in the list.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.list)
}

// claim reserves keys for op. It fails if any key is held by another op.
func (e *Engine) claim(op *Op, keys ...string) bool {
	e.claimMu.Lock()
	defer e.claimMu.Unlock()
	for _, k := range keys {
		if _, held := e.claims[k]; held {
			return false
		}
	}
	for _, k := range keys {
		e.claims[k] = op.ID
	}
	op.claims = keys
	return true
}

func (e *Engine) release(op *Op) {
	e.claimMu.Lock()
	defer e.claimMu.Unlock()
	for _, k := range op.claims {
		if e.claims[k] == op.ID {
			delete(e.claims, k)
		}
	}
	op.claims = nil
}

func idClaim(id string) string   { return "id:" + id }
func keyClaim(key string) string { return "key:" + key }

func (e *Engine) token() string {
	if e.tokens == nil {
		return ""
	}
	tok, _ := e.tokens.CurrentToken()
	return tok
}

// keyText is the display text of a record's unique field.
func (e *Engine) keyText(f record.Fields) string {
	return f.Text(e.kind.UniqueField)
}

// submit queues op for the loop.
func (e *Engine) submit(op *Op) (*Op, error) {
	if !e.queue.Enqueue(Event{Type: EventTypeIntent, Op: op}) {
		e.release(op)
		return nil, ErrStopped
	}
	e.logger.Debug("op submitted",
		"op", op.ID,
		"action", string(op.Action),
		"record", op.RecordID,
		"seq", op.Seq,
	)
	return op, nil
}

// issue runs call on its own goroutine and queues its outcome.
// The call runs with a non-cancellable context.
func (e *Engine) issue(ctx context.Context, op *Op, call func(context.Context) Outcome) {
	op.setPhase(PhaseInFlight)
	callCtx := context.WithoutCancel(ctx)

	e.calls.Add(1)
	go func() {
		defer e.calls.Done()
		out := call(callCtx)
		if !e.queue.Enqueue(Event{Type: EventTypeOutcome, Op: op, Outcome: &out}) {
			e.release(op)
			op.finish(PhaseRolledBack, record.Record{}, ErrStopped)
		}
	}()
}
