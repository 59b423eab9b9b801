package export

import "fmt"

// Column describes one output column. Width is a relative weight used by the PDF layout.
type Column struct {
	Key   string
	Label string
	Width float64
}

// Table is the tabular content handed to a renderer.
type Table struct {
	Title    string
	Subtitle string
	Columns  []Column
	Rows     []map[string]string
}

// Renderer turns a table into a downloadable document.
type Renderer interface {
	Render(Table) ([]byte, error)
	ContentType() string
	Extension() string
}

// Format names a supported renderer.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ForFormat returns the renderer for the given format.
func ForFormat(format Format) (Renderer, error) {
	switch format {
	case FormatCSV, "":
		return NewCSVExporter(), nil
	case FormatPDF:
		return NewPDFExporter(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("export requires at least one column")
	}
	return nil
}

func (t Table) record(row map[string]string) []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = row[col.Key]
	}
	return out
}
