// Package report renders a decoded document as a one-page PDF.
package report

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/domain"
	"github.com/mrzscan/mrzscan-backend/internal/mrz"
	"github.com/mrzscan/mrzscan-backend/pkg/i18n"
)

const (
	// ContentType of a rendered report
	ContentType = "application/pdf"
	// Filename offered for download
	Filename = "extracted_info.pdf"
)

// Column widths in mm on an A4 page with 15mm margins
const (
	fieldWidth = 60.0
	valueWidth = 85.0
	checkWidth = 35.0
	rowHeight  = 8.0
)

// Renderer builds PDF reports
type Renderer struct {
	compress bool
	now      func() time.Time
}

// NewRenderer creates a renderer with compressed output
func NewRenderer() *Renderer {
	return &Renderer{compress: true, now: time.Now}
}

// Render writes the report for result to w. Labels are localized with l.
func (r *Renderer) Render(w io.Writer, result *domain.ExtractionResult, l *i18n.Localizer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetCreationDate(r.now())
	pdf.SetMargins(15, 15, 15)
	pdf.SetCreator("mrzscan", true)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	title := l.T("report.title")
	pdf.SetTitle(title, true)

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 12, tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(fieldWidth, rowHeight, tr(l.T("report.field")), "1", 0, "L", true, 0, "")
	pdf.CellFormat(valueWidth, rowHeight, tr(l.T("report.value")), "1", 0, "L", true, 0, "")
	pdf.CellFormat(checkWidth, rowHeight, tr(l.T("report.check")), "1", 1, "L", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for _, row := range rows(result.Record) {
		pdf.CellFormat(fieldWidth, rowHeight, tr(l.T("fields."+row.name)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(valueWidth, rowHeight, tr(row.value), "1", 0, "L", false, 0, "")

		check := ""
		if row.checked {
			check = l.T("report.invalid")
			if row.valid {
				check = l.T("report.valid")
			}
		}
		pdf.CellFormat(checkWidth, rowHeight, tr(check), "1", 1, "L", false, 0, "")
	}

	if len(result.Warnings) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 10)
		for _, warn := range result.Warnings {
			pdf.MultiCell(0, 6, tr(warn.Localize(l)), "", "L", false)
		}
	}

	pdf.Ln(6)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, rowHeight, tr(l.T("report.lines")), "", 1, "L", false, 0, "")
	pdf.SetFont("Courier", "", 10)
	for _, line := range result.Record.Lines {
		pdf.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("report: render pdf: %w", err)
	}
	return nil
}

// RenderBytes renders the report into memory
func (r *Renderer) RenderBytes(result *domain.ExtractionResult, l *i18n.Localizer) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, result, l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type row struct {
	name    string
	value   string
	checked bool
	valid   bool
}

// rows lists the decoded fields in MRZ order followed by the composite check.
// Empty optional fields are left out.
func rows(rec mrz.Record) []row {
	values := rec.Fields()
	validity := rec.Validity()

	var out []row
	for _, f := range rec.DecodedFields() {
		v := values[f.Name]
		valid, checked := validity[f.Name]
		if v == "" && !checked {
			continue
		}
		out = append(out, row{name: f.Name, value: v, checked: checked, valid: valid})
	}
	if valid, ok := validity[mrz.FieldComposite]; ok {
		out = append(out, row{name: mrz.FieldComposite, checked: true, valid: valid})
	}
	return out
}
