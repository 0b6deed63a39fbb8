// Package export renders tabular reports as CSV or PDF.
package export

import "fmt"

// Format identifies an export encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat validates a requested format. Empty input selects CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(raw) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Table is ordered tabular content. Each row holds one cell per column.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// Renderer encodes a Table.
type Renderer interface {
	Render(table Table) ([]byte, error)
}

// RendererFor returns the renderer for format.
func RendererFor(format Format) Renderer {
	if format == FormatPDF {
		return NewPDFExporter()
	}
	return NewCSVExporter()
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("export requires at least one column")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}
