// Package api exposes the session service over HTTP.
//
// The server is a thin gin layer over the registry, archive codec, task
// manager, pipeline, exporters, and run history. Handlers translate wire
// requests into registry operations and map the domain sentinel errors to
// HTTP status codes; they hold no state of their own.
package api
