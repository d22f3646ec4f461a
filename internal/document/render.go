package document

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
)

// NativeDPI is the PDF user-space resolution; scale 1.0 renders at it.
const NativeDPI = 72.0

// DefaultScale matches the 2x zoom matrix used for on-screen pages.
const DefaultScale = 2.0

var (
	ErrPageOutOfRange = errors.New("page index out of range")
	ErrInvalidScale   = errors.New("render scale must be positive")
	ErrClosed         = errors.New("document is closed")
)

// Render rasterizes the zero-based page at scale times its native size.
func Render(d *Document, page int, scale float64) (*image.RGBA, error) {
	if scale <= 0 {
		return nil, ErrInvalidScale
	}
	if page < 0 || page >= d.pages {
		return nil, fmt.Errorf("render page %d of %d: %w", page, d.pages, ErrPageOutOfRange)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrClosed
	}

	img, err := d.fz.ImageDPI(page, NativeDPI*scale)
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", page, err)
	}
	return img, nil
}

// EncodePNG serializes a rendered page for the model request and the browser.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
