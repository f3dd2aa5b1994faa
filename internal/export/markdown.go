package export

import (
	"strings"

	"reflow/internal/document"
)

type markdownExporter struct{}

func (m *markdownExporter) Format() Format { return FormatMarkdown }

func (m *markdownExporter) Export(doc *document.Document, req Request) (Result, error) {
	var b strings.Builder
	for i, page := range doc.Pages {
		if i > 0 {
			b.WriteString("\n---\n\n")
		}
		for _, block := range page.Blocks {
			text := block.Text()
			if text == "" {
				continue
			}
			switch block.Type {
			case document.BlockHeader:
				b.WriteString("## ")
				b.WriteString(text)
			case document.BlockTable:
				for _, line := range strings.Split(text, "\n") {
					b.WriteString("    ")
					b.WriteString(line)
					b.WriteString("\n")
				}
			default:
				b.WriteString(text)
			}
			b.WriteString("\n\n")
		}
	}
	return Result{
		Filename:  req.FilenameHint + ".md",
		MediaType: "text/markdown; charset=utf-8",
		Content:   []byte(b.String()),
	}, nil
}
