package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter renders documents as a single CSV stream. Sections are separated
// by an empty record.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// ContentType implements Renderer.
func (e *CSVExporter) ContentType() string { return "text/csv" }

// Extension implements Renderer.
func (e *CSVExporter) Extension() string { return "csv" }

// Render produces CSV encoded bytes for the document.
func (e *CSVExporter) Render(doc Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, fmt.Errorf("csv: %w", err)
	}
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	write := func(record ...string) error {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
		return nil
	}

	for i, section := range doc.Sections {
		if i > 0 {
			if err := write(""); err != nil {
				return nil, err
			}
		}
		if section.Heading != "" {
			if err := write(section.Heading); err != nil {
				return nil, err
			}
		}
		for _, field := range section.Fields {
			if err := write(field.Label, field.Value); err != nil {
				return nil, err
			}
		}
		if len(section.Table.Headers) > 0 {
			if err := write(section.Table.Headers...); err != nil {
				return nil, err
			}
			for _, row := range section.Table.Rows {
				record := make([]string, len(section.Table.Headers))
				for j, header := range section.Table.Headers {
					record[j] = row[header]
				}
				if err := write(record...); err != nil {
					return nil, err
				}
			}
		}
		for _, note := range section.Notes {
			if err := write("Note", note); err != nil {
				return nil, err
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
