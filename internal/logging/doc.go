// Package logging builds the slog loggers used across the Reflow daemon and
// CLI. It supports console and JSON output, optional mirroring to a log file
// under the configured log directory, and exposes small attribute helpers so
// callers do not import log/slog directly for common fields.
package logging
