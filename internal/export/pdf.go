package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"

	"reflow/internal/document"
)

type pdfExporter struct{}

func (p *pdfExporter) Format() Format { return FormatPDF }

func (p *pdfExporter) Export(doc *document.Document, req Request) (Result, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(req.FilenameHint, true)
	pdf.SetAuthor("reflow", false)

	translate := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range doc.Pages {
		pdf.AddPage()
		for _, block := range page.Blocks {
			text := strings.TrimSpace(block.Text())
			if text == "" {
				continue
			}
			switch block.Type {
			case document.BlockHeader:
				pdf.SetFont("Helvetica", "B", 14)
				pdf.MultiCell(0, 8, translate(text), "", "L", false)
				pdf.Ln(2)
			default:
				pdf.SetFont("Helvetica", "", 11)
				pdf.MultiCell(0, 6, translate(text), "", "L", false)
				pdf.Ln(3)
			}
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return Result{}, fmt.Errorf("render pdf: %w", err)
	}
	return Result{
		Filename:  req.FilenameHint + ".pdf",
		MediaType: "application/pdf",
		Content:   buf.Bytes(),
	}, nil
}
