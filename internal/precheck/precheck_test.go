package precheck

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF assembles a minimal but structurally valid PDF with the given
// number of pages, computing the xref offsets as it goes.
func buildPDF(pages int) []byte {
	var body strings.Builder
	var offsets []int

	header := "%PDF-1.4\n"
	body.WriteString(header)

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

func TestInspect_PDFPageCount(t *testing.T) {
	for _, pages := range []int{1, 3} {
		t.Run(fmt.Sprintf("%d pages", pages), func(t *testing.T) {
			res, err := Inspect("extracto.pdf", "application/pdf", buildPDF(pages))
			require.NoError(t, err)
			assert.Equal(t, pages, res.UnitCount)
			assert.Equal(t, "extracto.pdf", res.FileName)
		})
	}
}

func TestInspect_CorruptPDF(t *testing.T) {
	// Valid magic, garbage body: must fail, never default to 1 page.
	data := []byte("%PDF-1.4\nthis is not a real pdf body")

	_, err := Inspect("broken.pdf", "application/pdf", data)
	assert.ErrorIs(t, err, ErrDocumentUnreadable)
}

func TestInspect_Image(t *testing.T) {
	res, err := Inspect("foto.jpg", "image/jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UnitCount)
}

func TestInspect_PlainText(t *testing.T) {
	res, err := Inspect("extracto.txt", "text/plain", []byte("SALDO ANTERIOR 1359797.86"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.UnitCount)
}

func TestInspect_Empty(t *testing.T) {
	_, err := Inspect("vacio.pdf", "application/pdf", nil)
	assert.ErrorIs(t, err, ErrDocumentUnreadable)
}

func TestInspect_UnknownBinary(t *testing.T) {
	_, err := Inspect("blob.bin", "application/octet-stream", []byte{0x00, 0xFF, 0xFE, 0x01})
	assert.ErrorIs(t, err, ErrDocumentUnreadable)
}
