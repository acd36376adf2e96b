// Package precheck determines how many billable units an uploaded document
// will cost before any AI extraction is attempted. Page counting parses the
// document structure directly, it never calls the extraction service.
package precheck

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var ErrDocumentUnreadable = errors.New("document unreadable")

// Result is what the pre-check reports back: no side effects, just the
// billable unit count for the named file.
type Result struct {
	FileName  string `json:"file_name"`
	UnitCount int    `json:"unit_count"`
}

// Inspect classifies the upload and returns its billable unit count.
// Paginated documents bill one unit per page; single images and plain text
// bill one unit. A file that cannot be parsed fails loudly rather than
// silently defaulting to one page.
func Inspect(fileName, mimeType string, data []byte) (Result, error) {
	if len(data) == 0 {
		return Result{}, fmt.Errorf("%w: %s is empty", ErrDocumentUnreadable, fileName)
	}

	switch {
	case isPDF(fileName, mimeType, data):
		n, err := countPages(data)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, fileName, err)
		}
		return Result{FileName: fileName, UnitCount: n}, nil

	case strings.HasPrefix(mimeType, "image/"):
		return Result{FileName: fileName, UnitCount: 1}, nil

	case strings.HasPrefix(mimeType, "text/") || mimeType == "text/csv" || utf8.Valid(data):
		return Result{FileName: fileName, UnitCount: 1}, nil

	default:
		return Result{}, fmt.Errorf("%w: %s: unsupported content type %q", ErrDocumentUnreadable, fileName, mimeType)
	}
}

func isPDF(fileName, mimeType string, data []byte) bool {
	if mimeType == "application/pdf" {
		return true
	}
	if strings.HasSuffix(strings.ToLower(fileName), ".pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF"))
}

// countPages opens the PDF structure and returns the page count. The pdf
// library panics on some malformed files, so the recover maps those to a
// parse error instead of taking the process down.
func countPages(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse crashed: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}

	n = reader.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return n, nil
}
