// Package daemon ties the session registry, task manager, run history, and
// HTTP API into a single lifecycle with flock-based locking to prevent
// multiple daemon instances from sharing one data directory.
package daemon
