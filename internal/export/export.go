// Package export renders recognized documents into downloadable formats.
// Exporters are pure functions from a document to named bytes; the registry
// resolves them by format tag.
package export

import (
	"errors"
	"fmt"
	"strings"

	"reflow/internal/document"
)

// Format tags a supported output format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatPDF      Format = "pdf"
)

// ErrUnsupportedFormat reports an export request for an unknown format.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Request describes one export invocation.
type Request struct {
	Format       Format
	FilenameHint string
}

// Result is a rendered document ready for download.
type Result struct {
	Filename  string
	MediaType string
	Content   []byte
}

// Exporter renders a document into one format.
type Exporter interface {
	Format() Format
	Export(doc *document.Document, req Request) (Result, error)
}

// Registry resolves exporters by format.
type Registry struct {
	exporters map[Format]Exporter
}

// NewRegistry returns a registry with all built-in exporters registered.
func NewRegistry() *Registry {
	r := &Registry{exporters: make(map[Format]Exporter)}
	for _, exp := range []Exporter{&markdownExporter{}, &textExporter{}, &pdfExporter{}} {
		r.exporters[exp.Format()] = exp
	}
	return r
}

// Formats lists the registered format tags.
func (r *Registry) Formats() []Format {
	out := make([]Format, 0, len(r.exporters))
	for _, format := range []Format{FormatMarkdown, FormatText, FormatPDF} {
		if _, ok := r.exporters[format]; ok {
			out = append(out, format)
		}
	}
	return out
}

// Export renders the document with the exporter registered for the
// requested format.
func (r *Registry) Export(doc *document.Document, req Request) (Result, error) {
	exporter, ok := r.exporters[req.Format]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
	if req.FilenameHint == "" {
		req.FilenameHint = "document"
	}
	return exporter.Export(doc, req)
}

// FilenameHint normalizes a session name into a safe filename stem.
func FilenameHint(name string) string {
	hint := strings.ToLower(strings.TrimSpace(name))
	hint = strings.ReplaceAll(hint, " ", "_")
	if hint == "" {
		hint = "document"
	}
	return hint
}
