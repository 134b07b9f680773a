// Package harness runs scripted sync scenarios against the real engine.
//
// A scenario seeds a fake remote store, loads the list, then executes
// steps that stand in for the user (create, resolve, update, remove, like)
// and for the world around them (another client deleting a record, a
// failing server, login and logout, time passing).
//
// # Scenario Format
//
//	name: ada_conflict
//	description: "Adding an existing name asks before replacing"
//	kind: contacts
//	seed:
//	  - { name: Ada Lovelace, number: "39-44-5323523" }
//	steps:
//	  - action: create
//	    fields: { name: ada lovelace, number: "555" }
//	    expect: { code: CONFLICT_DETECTED, no_notice: true }
//	  - action: resolve
//	    expect: { code: OK, notice: "Updated Ada Lovelace" }
//	assertions:
//	  - type: list
//	    records: [{ name: Ada Lovelace, number: "555" }]
//
// # Assertion Types
//
//   - list: the local list, in order, subset match per record
//   - remote: the fake remote collection, same matching
//   - notification: the notification showing at the end ("" for none)
//   - remote_calls: number of calls of one method
//   - notice_count: number of notifications of one kind emitted
//
// # Deterministic Testing
//
// The fake remote assigns ids "1", "2", ... and answers immediately, the
// notification clock only moves on advance steps, and every op step waits
// for its outcome before the next step runs. Traces are therefore identical
// across runs and are compared against golden files with RunWithGolden.
package harness
