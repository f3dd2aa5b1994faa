// Package tasks runs named units of background work per session and bridges
// their lifecycle into the event broker.
//
// StartTask publishes task-started, runs the work on its own goroutine, and
// publishes exactly one terminal event (task-completed, task-failed, or
// task-cancelled) when the work ends. Terminal outcomes are also recorded in
// the run history store. Task records are process-local and removed at the
// terminal transition; nothing here is persisted.
//
// Stream turns a session's event feed into a consumable sequence with
// heartbeat frames substituted while the feed is idle. The subscription is
// always released when the stream ends, including consumer disconnects.
//
// At most one task may be in flight per session; a second StartTask for the
// same session is rejected with ErrSessionBusy rather than letting two runs
// interleave their progress events.
package tasks
