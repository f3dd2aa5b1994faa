// Package registry holds the authoritative in-memory view of all sessions
// and pairs it with lazy durable persistence.
//
// A single exclusive lock serializes every map mutation. Critical sections
// cover only map and dirty-set bookkeeping; disk I/O happens outside the
// lock, either synchronously on the upload path (page bytes) or in the
// background autosave flush (metadata). Every mutating operation returns a
// fresh immutable snapshot, so callers never observe partial writes.
//
// The autosave loop wakes on a fixed interval and persists every session
// marked dirty since the last flush. Close stops the loop and performs one
// final synchronous flush, so no acknowledged mutation is lost on clean
// shutdown; a crash can lose at most one interval's worth of metadata.
// Page bytes are never at risk: they are written before the registry ever
// references them.
package registry
