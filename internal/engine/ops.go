package engine

import (
	"context"
	"fmt"

	"github.com/roach88/listsync/internal/apperr"
	"github.com/roach88/listsync/internal/notify"
	"github.com/roach88/listsync/internal/record"
)

// LoadAll fetches the full collection and replaces the local list.
// On failure the list becomes empty and an error notification is emitted.
func (e *Engine) LoadAll(ctx context.Context) (*Op, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	op := newOp(e.ids.Generate(), e.clock.Next(), ActionLoad, "", nil)
	return e.submit(op)
}

// Create adds a new record. The returned error is synchronous (VALIDATION,
// or ErrStopped); remote failures and duplicates arrive through the Op.
//
// A duplicate uniqueKey completes the Op with a CONFLICT_DETECTED error
// carrying a *Conflict; nothing is sent and nothing is notified.
func (e *Engine) Create(ctx context.Context, fields record.Fields) (*Op, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.kind.Validate("create", fields); err != nil {
		return nil, err
	}
	key, _ := record.KeyOf(fields, e.kind.UniqueField)

	op := newOp(e.ids.Generate(), e.clock.Next(), ActionCreate, "", fields.Clone())
	if !e.claim(op, keyClaim(key)) {
		return nil, apperr.Validation("create", "mutation already in flight for %q", e.keyText(fields))
	}
	return e.submit(op)
}

// Resolve is the confirmation step after a conflicting Create. It replaces
// the existing record with the proposed fields, keeping the existing
// record's unique value.
func (e *Engine) Resolve(ctx context.Context, c *Conflict) (*Op, error) {
	if c == nil || c.Existing.ID == "" {
		return nil, apperr.Validation("resolve", "conflict has no existing record")
	}
	return e.Update(ctx, c.Existing.ID, c.Merged())
}

// Update replaces the record with the given id.
//
// A 404 from the server means the record was deleted out of band: the local
// copy is removed and the Op fails with STALE_RESOURCE. If the new
// uniqueKey names a different local record the Op fails with
// CONFLICT_DETECTED before any network call.
func (e *Engine) Update(ctx context.Context, id string, fields record.Fields) (*Op, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, apperr.Validation("update", "record id is required")
	}
	if err := e.kind.Validate("update", fields); err != nil {
		return nil, err
	}
	key, _ := record.KeyOf(fields, e.kind.UniqueField)

	op := newOp(e.ids.Generate(), e.clock.Next(), ActionUpdate, id, fields.Clone())
	if !e.claim(op, idClaim(id), keyClaim(key)) {
		return nil, inFlight("update", id)
	}
	return e.submit(op)
}

// Remove deletes the record with the given id. The caller has already
// obtained confirmation. On failure, including 404, the list is unchanged.
func (e *Engine) Remove(ctx context.Context, id string) (*Op, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, apperr.Validation("remove", "record id is required")
	}
	op := newOp(e.ids.Generate(), e.clock.Next(), ActionRemove, id, nil)
	if !e.claim(op, idClaim(id)) {
		return nil, inFlight("remove", id)
	}
	return e.submit(op)
}

// Like increments the kind's counter field of a local record.
// There is no stale handling: a 404 is a TRANSPORT failure.
func (e *Engine) Like(ctx context.Context, id string) (*Op, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.kind.CounterField == "" {
		return nil, apperr.Validation("like", "kind %s has no counter field", e.kind.Name)
	}
	if _, ok := e.Lookup(id); !ok {
		return nil, apperr.Validation("like", "record %q is not in the list", id)
	}
	op := newOp(e.ids.Generate(), e.clock.Next(), ActionLike, id, nil)
	if !e.claim(op, idClaim(id)) {
		return nil, inFlight("like", id)
	}
	return e.submit(op)
}

func inFlight(op, id string) error {
	err := apperr.Validation(op, "mutation already in flight")
	err.RecordID = id
	return err
}

// processIntent runs the loop-side checks and issues the remote call.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) processIntent(ctx context.Context, op *Op) {
	token := e.token()

	switch op.Action {
	case ActionLoad:
		e.issue(ctx, op, func(ctx context.Context) Outcome {
			list, err := e.remote.List(ctx)
			return Outcome{Records: list, Err: err}
		})

	case ActionCreate:
		op.setPhase(PhaseDuplicateCheck)
		key, _ := record.KeyOf(op.Fields, e.kind.UniqueField)
		e.mu.RLock()
		existing, dup := record.FindByKey(e.list, e.kind.UniqueField, key)
		e.mu.RUnlock()
		if dup {
			c := &Conflict{Existing: existing.Clone(), Proposed: op.Fields.Clone(), UniqueField: e.kind.UniqueField}
			e.release(op)
			op.finish(PhaseAwaitingConfirmation, record.Record{}, conflictError("create", c))
			e.logger.Debug("create conflict", "op", op.ID, "existing", existing.ID)
			return
		}
		fields := op.Fields
		e.issue(ctx, op, func(ctx context.Context) Outcome {
			rec, err := e.remote.Create(ctx, token, fields)
			return Outcome{Record: rec, Err: err}
		})

	case ActionUpdate:
		key, _ := record.KeyOf(op.Fields, e.kind.UniqueField)
		e.mu.RLock()
		other, clash := record.FindByKey(e.list, e.kind.UniqueField, key)
		e.mu.RUnlock()
		if clash && other.ID != op.RecordID {
			c := &Conflict{Existing: other.Clone(), Proposed: op.Fields.Clone(), UniqueField: e.kind.UniqueField}
			e.release(op)
			op.finish(PhaseRolledBack, record.Record{}, conflictError("update", c))
			return
		}
		id, fields := op.RecordID, op.Fields
		e.issue(ctx, op, func(ctx context.Context) Outcome {
			rec, err := e.remote.Update(ctx, token, id, fields)
			return Outcome{Record: rec, Err: err}
		})

	case ActionRemove:
		id := op.RecordID
		e.issue(ctx, op, func(ctx context.Context) Outcome {
			return Outcome{Err: e.remote.Delete(ctx, token, id)}
		})

	case ActionLike:
		current, ok := e.Lookup(op.RecordID)
		if !ok {
			e.release(op)
			op.finish(PhaseRolledBack, record.Record{}, apperr.Validation("like", "record %q is not in the list", op.RecordID))
			return
		}
		n, _ := current.Fields.Int(e.kind.CounterField)
		fields := current.Fields.With(e.kind.CounterField, record.Int(n+1))
		op.Fields = fields
		id := op.RecordID
		e.issue(ctx, op, func(ctx context.Context) Outcome {
			rec, err := e.remote.Update(ctx, token, id, fields)
			return Outcome{Record: rec, Err: err}
		})

	default:
		e.release(op)
		op.finish(PhaseRolledBack, record.Record{}, fmt.Errorf("unknown action %q", op.Action))
	}
}

// processOutcome applies a remote result to the list and reports it.
// The list change is visible before the notification is emitted.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) processOutcome(op *Op, out *Outcome) {
	switch op.Action {
	case ActionLoad:
		e.applyLoad(op, out)
	case ActionCreate:
		e.applyCreate(op, out)
	case ActionUpdate:
		e.applyUpdate(op, out)
	case ActionRemove:
		e.applyRemove(op, out)
	case ActionLike:
		e.applyLike(op, out)
	}
}

func (e *Engine) applyLoad(op *Op, out *Outcome) {
	if out.Err != nil {
		e.mu.Lock()
		e.list = []record.Record{}
		e.mu.Unlock()

		err := classify("load", "", out.Err, false)
		e.rollback(op, err, fmt.Sprintf("Cannot load %s: %s", e.kind.Name, reason(out.Err)))
		return
	}

	list := record.CloneList(out.Records)
	e.mu.Lock()
	e.list = list
	e.mu.Unlock()

	e.logger.Info("list loaded", "op", op.ID, "count", len(list))
	op.finish(PhaseCommitted, record.Record{}, nil)
}

func (e *Engine) applyCreate(op *Op, out *Outcome) {
	key := e.keyText(op.Fields)
	if out.Err != nil {
		err := classify("create", "", out.Err, false)
		e.rollback(op, err, fmt.Sprintf("Cannot add %s: %s", key, reason(out.Err)))
		return
	}

	rec := out.Record.Clone()
	e.mu.Lock()
	e.list = append(e.list, rec)
	e.mu.Unlock()

	e.commit(op, rec, fmt.Sprintf("Added %s", e.keyText(rec.Fields)))
}

func (e *Engine) applyUpdate(op *Op, out *Outcome) {
	local, known := e.Lookup(op.RecordID)
	key := e.keyText(op.Fields)
	if known {
		key = e.keyText(local.Fields)
	}

	if out.Err != nil {
		err := classify("update", op.RecordID, out.Err, true)
		if apperr.IsStale(err) {
			e.mu.Lock()
			if i := record.IndexOf(e.list, op.RecordID); i >= 0 {
				e.list = append(e.list[:i:i], e.list[i+1:]...)
			}
			e.mu.Unlock()
			e.rollback(op, err, fmt.Sprintf("Information of %s has already been removed from server", key))
			return
		}
		e.rollback(op, err, fmt.Sprintf("Cannot update %s: %s", key, reason(out.Err)))
		return
	}

	rec := out.Record.Clone()
	if rec.ID == "" {
		rec.ID = op.RecordID
	}
	e.mu.Lock()
	if i := record.IndexOf(e.list, op.RecordID); i >= 0 {
		e.list[i] = rec
	}
	e.mu.Unlock()

	e.commit(op, rec, fmt.Sprintf("Updated %s", e.keyText(rec.Fields)))
}

func (e *Engine) applyRemove(op *Op, out *Outcome) {
	local, known := e.Lookup(op.RecordID)
	key := op.RecordID
	if known {
		key = e.keyText(local.Fields)
	}

	if out.Err != nil {
		err := classify("remove", op.RecordID, out.Err, false)
		e.rollback(op, err, fmt.Sprintf("Cannot remove %s: %s", key, reason(out.Err)))
		return
	}

	e.mu.Lock()
	if i := record.IndexOf(e.list, op.RecordID); i >= 0 {
		e.list = append(e.list[:i:i], e.list[i+1:]...)
	}
	e.mu.Unlock()

	e.commit(op, local, fmt.Sprintf("Removed %s", key))
}

func (e *Engine) applyLike(op *Op, out *Outcome) {
	key := e.keyText(op.Fields)
	if out.Err != nil {
		err := classify("like", op.RecordID, out.Err, false)
		e.rollback(op, err, fmt.Sprintf("Cannot like %s: %s", key, reason(out.Err)))
		return
	}

	counter := e.kind.CounterField
	liked := op.Fields[counter]
	if v, ok := out.Record.Fields[counter]; ok {
		liked = v
	}

	var rec record.Record
	e.mu.Lock()
	if i := record.IndexOf(e.list, op.RecordID); i >= 0 {
		e.list[i] = record.Record{ID: e.list[i].ID, Fields: e.list[i].Fields.With(counter, liked)}
		rec = e.list[i].Clone()
	}
	e.mu.Unlock()

	e.commit(op, rec, fmt.Sprintf("Liked %s", key))
}

func (e *Engine) commit(op *Op, rec record.Record, text string) {
	e.logger.Info("op committed",
		"op", op.ID,
		"action", string(op.Action),
		"record", rec.ID,
	)
	e.notifier.Notify(text, notify.KindSuccess)
	op.finish(PhaseCommitted, rec, nil)
}

func (e *Engine) rollback(op *Op, err error, text string) {
	e.logger.Warn("op failed",
		"op", op.ID,
		"action", string(op.Action),
		"record", op.RecordID,
		"code", string(apperr.CodeOf(err)),
		"error", err,
	)
	e.notifier.Notify(text, notify.KindError)
	op.finish(PhaseRolledBack, record.Record{}, err)
}
