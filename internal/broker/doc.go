// Package broker fans structured progress events out to the live
// subscribers of a session.
//
// Delivery is best-effort with no replay log: Publish reaches exactly the
// subscribers registered at call time, in FIFO order per subscriber. A
// subscriber attaching mid-run misses earlier progress by design. Each
// subscriber carries an unbounded buffer guarded by its own mutex, so a
// slow consumer can never block Publish or another subscriber.
package broker
