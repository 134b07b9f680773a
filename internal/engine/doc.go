// Package engine implements the resource sync engine.
//
// The engine owns the local copy of one remote collection (contacts, blog
// posts) and keeps it consistent with the remote store. Mutations are
// confirmed by the server before they touch the local list; there is no
// optimistic insert that later has to be rolled back.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Engine.Run is the only goroutine that mutates the list. Callers submit
// intents through LoadAll, Create, Update, Remove and Like. Each intent is
// queued, checked against the current list on the loop, and then sent to the
// remote store on its own goroutine. The remote result is queued back as an
// outcome event and applied on the loop, so two outcomes never modify the
// list at the same time.
//
// Event Processing Flow:
//  1. Caller validates fields synchronously (VALIDATION errors never queue)
//  2. Intent event dequeued by Run; duplicate and collision checks run here
//  3. Remote call issued with the token captured at issue time
//  4. Outcome event dequeued by Run; list change and notification applied
//  5. The caller's Op completes
//
// Completion order follows remote round-trip order. Two mutations of
// unrelated records are not serialized against each other; two mutations of
// the same record are rejected while the first is outstanding.
//
// Remote calls are not cancellable once issued. A logout during a call does
// not abort it; the server sees the old token and the outcome is applied as
// usual.
package engine
