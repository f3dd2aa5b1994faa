// Package store persists session metadata and page images on disk.
//
// Each session owns one directory under <dataRoot>/sessions/<sessionId>/
// holding a session.json manifest plus a pages/ subdirectory with the raw
// image files, named <pageId><ext>. The store keeps no in-memory state; the
// registry is the authoritative runtime view and calls down here for I/O.
//
// LoadAll tolerates corrupt session directories: a directory with a missing
// or unparsable manifest is skipped with a warning so one broken session can
// never prevent the rest from loading.
package store
