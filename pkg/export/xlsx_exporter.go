package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// XLSXExporter renders documents into an Excel workbook with one sheet per
// section.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// ContentType implements Renderer.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension implements Renderer.
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render builds the workbook in memory.
func (e *XLSXExporter) Render(doc Document) ([]byte, error) {
	if err := doc.validate(); err != nil {
		return nil, fmt.Errorf("xlsx: %w", err)
	}
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	used := map[string]int{}
	for i, section := range doc.Sections {
		name := sheetName(section.Heading, i, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("add sheet %s: %w", name, err)
		}
		if err := writeSection(f, name, doc.Title, section, bold); err != nil {
			return nil, err
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSection(f *excelize.File, sheet, title string, section Section, bold int) error {
	row := 1
	set := func(col, r int, value interface{}) error {
		cell, err := excelize.CoordinatesToCellName(col, r)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheet, cell, value)
	}
	boldRow := func(r, cols int) error {
		from, _ := excelize.CoordinatesToCellName(1, r)
		to, _ := excelize.CoordinatesToCellName(cols, r)
		return f.SetCellStyle(sheet, from, to, bold)
	}

	if title != "" {
		if err := set(1, row, title); err != nil {
			return fmt.Errorf("xlsx title: %w", err)
		}
		if err := boldRow(row, 1); err != nil {
			return fmt.Errorf("xlsx title style: %w", err)
		}
		row += 2
	}
	for _, field := range section.Fields {
		if err := set(1, row, field.Label); err != nil {
			return fmt.Errorf("xlsx field: %w", err)
		}
		if err := set(2, row, field.Value); err != nil {
			return fmt.Errorf("xlsx field: %w", err)
		}
		row++
	}
	if len(section.Fields) > 0 {
		row++
	}

	if headers := section.Table.Headers; len(headers) > 0 {
		for col, header := range headers {
			if err := set(col+1, row, header); err != nil {
				return fmt.Errorf("xlsx header: %w", err)
			}
		}
		if err := boldRow(row, len(headers)); err != nil {
			return fmt.Errorf("xlsx header style: %w", err)
		}
		row++
		for _, record := range section.Table.Rows {
			for col, header := range headers {
				if err := set(col+1, row, record[header]); err != nil {
					return fmt.Errorf("xlsx row: %w", err)
				}
			}
			row++
		}
		last, _ := excelize.ColumnNumberToName(len(headers))
		if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
			return fmt.Errorf("xlsx width: %w", err)
		}
	}

	for _, note := range section.Notes {
		row++
		if err := set(1, row, note); err != nil {
			return fmt.Errorf("xlsx note: %w", err)
		}
	}
	return nil
}

// sheetName derives a unique, Excel-safe sheet name.
func sheetName(heading string, index int, used map[string]int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(heading))
	if name == "" {
		name = fmt.Sprintf("Sheet%d", index+1)
	}
	if runes := []rune(name); len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	key := strings.ToLower(name)
	if n := used[key]; n > 0 {
		suffix := fmt.Sprintf(" (%d)", n+1)
		runes := []rune(name)
		if len(runes)+len(suffix) > maxSheetName {
			runes = runes[:maxSheetName-len(suffix)]
		}
		name = string(runes) + suffix
	}
	used[key]++
	return name
}
