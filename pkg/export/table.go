package export

import "fmt"

// Format identifies a supported export encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat validates a user supplied format, defaulting to CSV.
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
	return "text/csv"
}

// Column describes one exported field. Weight scales the PDF column width.
type Column struct {
	Key    string
	Title  string
	Weight float64
}

// Table is the tabular content handed to an exporter.
type Table struct {
	Title   string
	Columns []Column
	Rows    []map[string]string
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("export requires at least one column")
	}
	return nil
}

// Render encodes the table in the requested format.
func Render(format Format, table Table) ([]byte, error) {
	switch format {
	case FormatPDF:
		return RenderPDF(table)
	default:
		return RenderCSV(table)
	}
}
