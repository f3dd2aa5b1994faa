// Package pipeline drives one recognition run over a session's pages.
//
// The orchestrator walks the pages in index order, handing each image to
// the preprocessing, layout, and recognition collaborators, and assembles
// their output into a document that is saved back onto the session. The
// collaborators are narrow interfaces; the built-in implementations are
// deliberately minimal so the system runs end to end without an external
// OCR engine, and real engines slot in behind the same interfaces.
//
// Progress is emitted through the caller-supplied emitter so events flow
// out on the task orchestrator's publish path.
package pipeline
