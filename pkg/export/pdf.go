package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const pageWidth = 277.0 // A4 landscape minus margins, in mm

// RenderPDF lays the table out on landscape A4 pages with weighted column widths.
func RenderPDF(table Table) ([]byte, error) {
	if err := table.validate(); err != nil {
		return nil, err
	}
	widths := columnWidths(table.Columns)

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	writeHeader := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, col := range table.Columns {
			pdf.CellFormat(widths[i], 8, tr(col.Title), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	pdf.SetHeaderFunc(func() {
		if table.Title != "" {
			pdf.SetFont("Arial", "B", 13)
			pdf.CellFormat(0, 9, tr(table.Title), "", 1, "L", false, 0, "")
		}
		writeHeader()
	})
	pdf.AddPage()

	for _, row := range table.Rows {
		for i, col := range table.Columns {
			pdf.CellFormat(widths[i], 7, tr(truncate(row[col.Key], widths[i])), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(cols []Column) []float64 {
	total := 0.0
	for _, col := range cols {
		total += weightOf(col)
	}
	widths := make([]float64, len(cols))
	for i, col := range cols {
		widths[i] = pageWidth * weightOf(col) / total
	}
	return widths
}

func weightOf(col Column) float64 {
	if col.Weight <= 0 {
		return 1
	}
	return col.Weight
}

// truncate keeps cell text roughly within the column at the body font size.
func truncate(value string, width float64) string {
	limit := int(width / 1.6)
	runes := []rune(value)
	if limit < 4 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit-3]) + "..."
}
