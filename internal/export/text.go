package export

import (
	"strings"

	"reflow/internal/document"
)

type textExporter struct{}

func (t *textExporter) Format() Format { return FormatText }

func (t *textExporter) Export(doc *document.Document, req Request) (Result, error) {
	var b strings.Builder
	for i, page := range doc.Pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		for _, block := range page.Blocks {
			text := block.Text()
			if text == "" {
				continue
			}
			b.WriteString(text)
			b.WriteString("\n\n")
		}
	}
	return Result{
		Filename:  req.FilenameHint + ".txt",
		MediaType: "text/plain; charset=utf-8",
		Content:   []byte(strings.TrimRight(b.String(), "\n") + "\n"),
	}, nil
}
