// Package engine runs checking jobs.
//
// ARCHITECTURE:
//
// Registry:
// Jobs live in a sync.Map keyed by id. Each entry holds its job record
// behind an atomic pointer; every state change builds a new record and
// swaps it in with compare-and-swap, so readers never observe a partial
// update and never block writers.
//
// One goroutine per job:
// Each job owns a one-slot mailbox and a goroutine that takes a trigger,
// runs one execution, and repeats. Triggers that arrive while an execution
// is in progress overwrite each other in the mailbox, so a burst of
// document changes costs at most one extra execution, and that execution
// sees the latest document state.
//
// Document listeners:
// Continuous jobs are indexed by the id of the document that owns their
// target. The manager registers one listener per watched document and
// removes it when the last job for that document is canceled.
//
// Results:
// An execution that produces the same messages as the newest stored result
// completes without storing or publishing anything. Otherwise the result is
// appended to the job's bounded history and published on the job's
// broadcast channel, which replays the latest result to late subscribers.
package engine
