// Package document defines the structured output of a recognition run:
// a document of pages, each holding layout blocks of recognized text spans.
// Values are immutable once attached to a session.
package document

import "time"

// BlockType classifies a layout block.
type BlockType string

const (
	BlockParagraph BlockType = "paragraph"
	BlockHeader    BlockType = "header"
	BlockFooter    BlockType = "footer"
	BlockTable     BlockType = "table"
	BlockFigure    BlockType = "figure"
)

// Span is a piece of recognized text with positional information.
// BBox is x, y, width, height in page pixels.
type Span struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BBox       []int   `json:"bbox"`
}

// Block is a region of a page such as a paragraph or header.
type Block struct {
	ID    string    `json:"id"`
	Type  BlockType `json:"type"`
	BBox  []int     `json:"bbox"`
	Spans []Span    `json:"spans"`
}

// Page is a single recognized page.
type Page struct {
	Index  int     `json:"index"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Blocks []Block `json:"blocks"`
}

// Document is the full recognized output of one session.
type Document struct {
	CreatedAt    time.Time `json:"created_at"`
	LanguageHint string    `json:"language_hint,omitempty"`
	Pages        []Page    `json:"pages"`
}

// New assembles a document from recognized pages.
func New(pages []Page) *Document {
	return &Document{
		CreatedAt: time.Now().UTC(),
		Pages:     pages,
	}
}

// Text returns the plain text of a block, one line per non-empty span.
func (b Block) Text() string {
	var out []byte
	for _, span := range b.Spans {
		if span.Text == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, '\n')
		}
		out = append(out, span.Text...)
	}
	return string(out)
}
