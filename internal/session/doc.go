// Package session defines the session aggregate: an ordered set of scanned
// pages, lifecycle status, and the recognized document once processing
// succeeds. Types here are plain data; all mutation goes through the registry
// so callers only ever observe immutable snapshots.
//
// The JSON tags define the on-disk session.json format and the archive
// manifest format, so changes here are wire format changes.
package session
