package export

import "fmt"

// Dataset defines tabular export content.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// Field is a labelled value printed above a section's table.
type Field struct {
	Label string
	Value string
}

// Section is one logical block of a document. Report cards render as one
// section per student.
type Section struct {
	Heading string
	Fields  []Field
	Table   Dataset
	Notes   []string
}

// Document is the renderer-neutral form of an exported report.
type Document struct {
	Title    string
	Sections []Section
}

// Renderer turns a Document into bytes of one file format.
type Renderer interface {
	Render(doc Document) ([]byte, error)
	ContentType() string
	Extension() string
}

func (d Document) validate() error {
	if len(d.Sections) == 0 {
		return fmt.Errorf("document has no sections")
	}
	for i, section := range d.Sections {
		if len(section.Table.Rows) > 0 && len(section.Table.Headers) == 0 {
			return fmt.Errorf("section %d has rows but no headers", i)
		}
	}
	return nil
}
