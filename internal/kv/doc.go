// Package kv is the durable key-value boundary.
//
// The client persists exactly one thing through it: the logged-in session,
// stored as JSON under a fixed application key. Two implementations exist:
//   - SQLite: a single-table database, used by the CLI between invocations
//   - Memory: a map behind a mutex, used by tests and the scenario harness
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Values are opaque strings. Callers own their encoding.
package kv
