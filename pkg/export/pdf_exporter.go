package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const pdfBodyWidth = 190.0

// PDFExporter renders documents with gofpdf, one page per section.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ContentType implements Renderer.
func (e *PDFExporter) ContentType() string { return "application/pdf" }

// Extension implements Renderer.
func (e *PDFExporter) Extension() string { return "pdf" }

// Render creates an A4 PDF with the document title repeated on every page.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, section := range doc.Sections {
		pdf.AddPage()
		if doc.Title != "" {
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 10, tr(strings.ToUpper(doc.Title)), "", 1, "C", false, 0, "")
		}
		if section.Heading != "" {
			pdf.SetFont("Arial", "B", 12)
			pdf.CellFormat(0, 8, tr(section.Heading), "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)

		pdf.SetFont("Arial", "", 10)
		for _, field := range section.Fields {
			pdf.CellFormat(45, 6, tr(field.Label), "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, tr(field.Value), "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)

		if headers := section.Table.Headers; len(headers) > 0 {
			colWidth := pdfBodyWidth / float64(len(headers))
			pdf.SetFont("Arial", "B", 9)
			pdf.SetFillColor(230, 230, 230)
			for _, header := range headers {
				pdf.CellFormat(colWidth, 8, tr(header), "1", 0, "C", true, 0, "")
			}
			pdf.Ln(-1)

			pdf.SetFont("Arial", "", 9)
			for _, row := range section.Table.Rows {
				for _, header := range headers {
					pdf.CellFormat(colWidth, 7, tr(row[header]), "1", 0, "", false, 0, "")
				}
				pdf.Ln(-1)
			}
		}

		if len(section.Notes) > 0 {
			pdf.Ln(3)
			pdf.SetFont("Arial", "I", 8)
			for _, note := range section.Notes {
				pdf.MultiCell(0, 5, tr(note), "", "L", false)
			}
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
