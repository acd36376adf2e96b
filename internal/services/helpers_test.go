package services

import (
	"fmt"
	"strings"
)

// buildTestPDF assembles a minimal valid PDF with the given page count.
func buildTestPDF(pages int) []byte {
	var body strings.Builder
	var offsets []int

	body.WriteString("%PDF-1.4\n")

	addObj := func(s string) {
		offsets = append(offsets, body.Len())
		body.WriteString(s)
	}

	addObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := make([]string, pages)
	for i := 0; i < pages; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	addObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n",
		strings.Join(kids, " "), pages))

	for i := 0; i < pages; i++ {
		addObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>\nendobj\n", i+3))
	}

	xrefStart := body.Len()
	body.WriteString(fmt.Sprintf("xref\n0 %d\n", len(offsets)+1))
	body.WriteString("0000000000 65535 f\r\n")
	for _, off := range offsets {
		body.WriteString(fmt.Sprintf("%010d 00000 n\r\n", off))
	}
	body.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(offsets)+1, xrefStart))

	return []byte(body.String())
}
