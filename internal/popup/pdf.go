package popup

import (
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// WritePDF renders res into a single-page A4 document at outPath.
func WritePDF(res Result, outPath string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(pdfTitle(res)), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(pdfTitle(res)), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(110, 110, 110)
	if res.Action == ActionAsk && strings.TrimSpace(res.Query) != "" {
		pdf.MultiCell(0, 5, tr("Q: "+strings.TrimSpace(res.Query)), "", "L", false)
	}
	if res.Page.URL != "" {
		if strings.HasPrefix(res.Page.URL, "http") {
			pdf.WriteLinkString(5, tr(res.Page.URL), res.Page.URL)
			pdf.Ln(6)
		} else {
			pdf.MultiCell(0, 5, tr(res.Page.URL), "", "L", false)
		}
	}
	pdf.Ln(3)

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 11)
	if res.Placeholder() {
		pdf.SetFont("Helvetica", "I", 11)
	}
	for _, para := range strings.Split(res.Text, "\n") {
		s := strings.TrimSpace(para)
		if s == "" {
			pdf.Ln(5)
			continue
		}
		pdf.MultiCell(0, 5, tr(s), "", "L", false)
	}
	return pdf.OutputFileAndClose(outPath)
}

func pdfTitle(res Result) string {
	prefix := "Summary"
	if res.Action == ActionAsk {
		prefix = "Answer"
	}
	if t := strings.TrimSpace(res.Page.Title); t != "" {
		return prefix + ": " + t
	}
	return prefix
}
