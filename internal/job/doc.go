// Package job defines the checking job record and its lifecycle.
//
// A Job is an immutable value. Every state change produces a new Job through
// one of the With* methods; the engine publishes the new record with a single
// atomic pointer swap. Readers always see a complete record, never a
// partially updated one.
//
// Lifecycle:
//
//	Created ──▶ Running ──▶ Completed | NodeDeleted | Error
//	   │           │                 │
//	   └───────────┴──── Canceled ◀──┘     (from any non-terminal state)
//
// For Continuous jobs Completed, NodeDeleted and Error are resting states: a
// change trigger moves the job back to Running. For OneOff jobs they are
// terminal. Canceled is terminal for every job.
package job
