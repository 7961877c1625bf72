/*
Package document renders report tables to paginated PDF files.

LAYOUT:
  A4, portrait unless the document asks for landscape. The first page
  carries the title and the generation timestamp; every page repeats the
  column header row and ends with a "Page n of N" footer. Rows alternate
  between white and a light fill. Cell text that does not fit its column
  is cut and ends in "...".

FILE NAMES:
  <dir>/<stem>_YYYYMMDD_HHMMSS.pdf, using the document's GeneratedAt.
*/
package document

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
	"github.com/warp/library-engine/library"
)

const (
	margin     = 15.0
	rowHeight  = 7.0
	headHeight = 8.0
	fontFamily = "Helvetica"
)

// PDFRenderer writes documents into Dir.
type PDFRenderer struct {
	Dir string
}

var _ library.Renderer = (*PDFRenderer)(nil)

func NewPDFRenderer(dir string) *PDFRenderer {
	return &PDFRenderer{Dir: dir}
}

// FileName is the name Render uses for doc.
func FileName(doc library.Document) string {
	stem := doc.FileStem
	if stem == "" {
		stem = "report"
	}
	return fmt.Sprintf("%s_%s.pdf", stem, doc.GeneratedAt.Format("20060102_150405"))
}

// Render writes doc and returns the file path.
func (r *PDFRenderer) Render(doc library.Document) (string, error) {
	if len(doc.Columns) == 0 {
		return "", fmt.Errorf("document %q has no columns", doc.Title)
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	orientation := "P"
	if doc.Landscape {
		orientation = "L"
	}
	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, margin)
	pdf.AliasNbPages("")
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("library-engine", true)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()
	widths := columnWidths(doc, pageW-2*margin)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin + 3)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	header := func() {
		pdf.SetFont(fontFamily, "B", 10)
		pdf.SetFillColor(44, 62, 80)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetDrawColor(200, 200, 200)
		for i, col := range doc.Columns {
			pdf.CellFormat(widths[i], headHeight, tr(col), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(headHeight)
		pdf.SetFont(fontFamily, "", 9)
		pdf.SetTextColor(0, 0, 0)
	}

	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.CellFormat(0, 6, "Generated on "+doc.GeneratedAt.Format("02/01/2006 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)
	header()

	if len(doc.Rows) == 0 {
		pdf.SetFont(fontFamily, "I", 10)
		pdf.CellFormat(0, rowHeight, "No records.", "", 1, "C", false, 0, "")
	}

	for n, row := range doc.Rows {
		if pdf.GetY()+rowHeight > pageH-margin {
			pdf.AddPage()
			header()
		}
		if n%2 == 1 {
			pdf.SetFillColor(236, 240, 241)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		for i := range doc.Columns {
			var text string
			if i < len(row) {
				text = tr(row[i])
			}
			pdf.CellFormat(widths[i], rowHeight, fit(pdf, text, widths[i]-2), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(rowHeight)
	}

	path := filepath.Join(r.Dir, FileName(doc))
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// columnWidths scales the relative widths to the printable width.
func columnWidths(doc library.Document, total float64) []float64 {
	weights := doc.Widths
	if len(weights) != len(doc.Columns) {
		weights = make([]float64, len(doc.Columns))
		for i := range weights {
			weights[i] = 1
		}
	}
	var sum float64
	for _, w := range weights {
		sum += w
	}
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = total * w / sum
	}
	return out
}

// fit cuts text to width. text is already translated to the single-byte
// font encoding, so cutting bytes never splits a character.
func fit(pdf *fpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	const ellipsis = "..."
	for len(text) > 0 && pdf.GetStringWidth(text+ellipsis) > width {
		text = text[:len(text)-1]
	}
	return text + ellipsis
}
