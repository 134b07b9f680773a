package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/listsync/internal/record"
)

// Action names the kind of mutation an Op performs.
type Action string

const (
	ActionLoad   Action = "load"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
	ActionLike   Action = "like"
)

// Phase is the lifecycle position of an Op.
//
//	Idle -> Validating -> DuplicateCheck (create) -> AwaitingConfirmation
//	     -> InFlight -> Committed | RolledBack
//
// AwaitingConfirmation is terminal for the Op that reached it: the caller
// confirms by issuing a new Op (Resolve, or Remove after its own prompt).
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseDuplicateCheck
	PhaseAwaitingConfirmation
	PhaseInFlight
	PhaseCommitted
	PhaseRolledBack
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseDuplicateCheck:
		return "duplicate_check"
	case PhaseAwaitingConfirmation:
		return "awaiting_confirmation"
	case PhaseInFlight:
		return "in_flight"
	case PhaseCommitted:
		return "committed"
	case PhaseRolledBack:
		return "rolled_back"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether no further transitions follow p.
func (p Phase) Terminal() bool {
	return p == PhaseAwaitingConfirmation || p == PhaseCommitted || p == PhaseRolledBack
}

// Op is one submitted mutation. It is a future: Wait blocks until the remote
// outcome has been applied to the local list.
type Op struct {
	ID       string
	Seq      int64
	Action   Action
	RecordID string
	Fields   record.Fields

	// claims are the in-flight keys held by this op, released on completion.
	claims []string

	mu    sync.Mutex
	phase Phase
	rec   record.Record
	err   error
	done  chan struct{}
}

func newOp(id string, seq int64, action Action, recordID string, fields record.Fields) *Op {
	return &Op{
		ID:       id,
		Seq:      seq,
		Action:   action,
		RecordID: recordID,
		Fields:   fields,
		phase:    PhaseValidating,
		done:     make(chan struct{}),
	}
}

// Done is closed when the op reaches a terminal phase.
func (o *Op) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the op completes or ctx is done.
// Cancelling ctx stops the wait, not the remote call.
func (o *Op) Wait(ctx context.Context) (record.Record, error) {
	select {
	case <-o.done:
		return o.Record(), o.Err()
	case <-ctx.Done():
		return record.Record{}, ctx.Err()
	}
}

// Phase returns the current phase.
func (o *Op) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Record returns the committed record (create, update, like) or the removed
// record (remove). Zero until the op completes.
func (o *Op) Record() record.Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rec
}

// Err returns the failure, or nil if the op committed or is still running.
func (o *Op) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Conflict returns the duplicate found by a create, if any.
func (o *Op) Conflict() (*Conflict, bool) {
	return ConflictOf(o.Err())
}

func (o *Op) setPhase(p Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phase = p
}

// finish moves the op to a terminal phase. Only the first call has effect.
func (o *Op) finish(p Phase, rec record.Record, err error) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.phase.Terminal() {
		return false
	}
	o.phase = p
	o.rec = rec
	o.err = err
	close(o.done)
	return true
}
