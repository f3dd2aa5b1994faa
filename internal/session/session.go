package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"reflow/internal/document"
)

// Status represents the lifecycle of a session.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

var allStatuses = []Status{StatusDraft, StatusProcessing, StatusReady, StatusError}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// SourceKind records how a page entered the session.
type SourceKind string

const (
	SourceFile   SourceKind = "file"
	SourceImport SourceKind = "import"
)

// PageMetadata describes the underlying image of a page.
type PageMetadata struct {
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	DPI      int    `json:"dpi,omitempty"`
	MIMEType string `json:"mimetype,omitempty"`
}

// Page is one scanned image owned by exactly one session. The image bytes
// live in durable storage under the session directory; Page itself is
// metadata only.
type Page struct {
	ID           uuid.UUID    `json:"id"`
	Index        int          `json:"index"`
	Filename     string       `json:"filename"`
	OriginalName string       `json:"original_name"`
	Source       SourceKind   `json:"source_type"`
	Metadata     PageMetadata `json:"metadata"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Session is the aggregate root: ordered pages, lifecycle status, and the
// recognized document once a run succeeds.
type Session struct {
	ID               uuid.UUID          `json:"id"`
	Name             string             `json:"name"`
	Description      string             `json:"description,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	PageCount        int                `json:"page_count"`
	Status           Status             `json:"status"`
	Pages            []Page             `json:"pages"`
	Document         *document.Document `json:"document,omitempty"`
	LastError        string             `json:"last_error,omitempty"`
	LastRecognizedAt *time.Time         `json:"last_recognized_at,omitempty"`
}

// Summary is the listing view of a session, without pages or document.
type Summary struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	PageCount   int       `json:"page_count"`
	Status      Status    `json:"status"`
}

// Summary returns the listing view of the session.
func (s *Session) Summary() Summary {
	return Summary{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		PageCount:   s.PageCount,
		Status:      s.Status,
	}
}

// Clone returns a deep copy of the session. The document is shared: it is
// treated as an immutable value once attached.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Pages = make([]Page, len(s.Pages))
	copy(cp.Pages, s.Pages)
	if s.LastRecognizedAt != nil {
		ts := *s.LastRecognizedAt
		cp.LastRecognizedAt = &ts
	}
	return &cp
}

// PageByID returns the page with the given id, if present.
func (s *Session) PageByID(id uuid.UUID) (Page, bool) {
	for _, page := range s.Pages {
		if page.ID == id {
			return page, true
		}
	}
	return Page{}, false
}
