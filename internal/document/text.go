package document

import (
	"bytes"
	"fmt"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PageText extracts the plain-text layer of a zero-based page. Scanned
// pages have no text layer and yield an empty string. The document must
// have been opened WithTextLayer.
func (d *Document) PageText(page int) (string, error) {
	if page < 0 || page >= d.pages {
		return "", fmt.Errorf("page text %d of %d: %w", page, d.pages, ErrPageOutOfRange)
	}

	d.mu.Lock()
	data := d.data
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return "", ErrClosed
	}
	if data == nil {
		return "", ErrNoTextLayer
	}

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open text layer: %w", err)
	}

	p := reader.Page(page + 1)
	if p.V.IsNull() {
		return "", nil
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract page text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
