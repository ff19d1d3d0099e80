package documents

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

const mimePDF = "application/pdf"

// countPages returns the number of pages in a PDF.
func countPages(data []byte) (n int, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	return reader.NumPage(), nil
}
