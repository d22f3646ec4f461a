package document

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gen2brain/go-fitz"
)

// OutlineEntry is one table-of-contents item. Page is the 1-based target
// page, or 0 when the destination could not be resolved.
type OutlineEntry struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Page  int    `json:"page"`
}

// Document is an opened PDF. It owns the underlying MuPDF handle and must
// be closed by whoever opened it. The raw bytes are kept only when the
// document was opened WithTextLayer.
type Document struct {
	mu      sync.Mutex
	name    string
	data    []byte
	hash    string
	pages   int
	outline []OutlineEntry
	fz      *fitz.Document
	closed  bool
}

var (
	// ErrEmptyDocument is returned when a PDF parses but has no pages.
	ErrEmptyDocument = errors.New("document has no pages")
	// ErrNoTextLayer is returned by PageText on documents opened without
	// WithTextLayer.
	ErrNoTextLayer = errors.New("document opened without text layer")
)

type options struct {
	textLayer bool
}

// Option configures Open and OpenBytes.
type Option func(*options)

// WithTextLayer keeps the raw PDF bytes so PageText can read them.
func WithTextLayer() Option {
	return func(o *options) { o.textLayer = true }
}

// Open reads and opens a PDF from the local filesystem.
func Open(path string, opts ...Option) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	return OpenBytes(filepath.Base(path), data, opts...)
}

// OpenBytes opens a PDF from an in-memory byte stream.
func OpenBytes(name string, data []byte, opts ...Option) (*Document, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("open pdf %q: empty input", name)
	}
	fz, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf %q: %w", name, err)
	}
	n := fz.NumPage()
	if n <= 0 {
		fz.Close()
		return nil, fmt.Errorf("open pdf %q: %w", name, ErrEmptyDocument)
	}

	doc := &Document{
		name:    name,
		hash:    ContentHashHex(data),
		pages:   n,
		outline: readOutline(fz),
		fz:      fz,
	}
	if o.textLayer {
		doc.data = data
	}
	return doc, nil
}

// readOutline converts the MuPDF outline to 1-based target pages. A missing
// outline is reported by MuPDF as an error and is treated as empty.
func readOutline(fz *fitz.Document) []OutlineEntry {
	toc, err := fz.ToC()
	if err != nil {
		return nil
	}
	out := make([]OutlineEntry, 0, len(toc))
	for _, o := range toc {
		page := o.Page + 1
		if o.Page < 0 {
			page = 0
		}
		out = append(out, OutlineEntry{Level: o.Level, Title: o.Title, Page: page})
	}
	return out
}

func (d *Document) Name() string { return d.name }

func (d *Document) PageCount() int { return d.pages }

// HasTextLayer reports whether PageText is available.
func (d *Document) HasTextLayer() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.data != nil
}

// Outline returns a copy of the table of contents, possibly empty.
func (d *Document) Outline() []OutlineEntry {
	out := make([]OutlineEntry, len(d.outline))
	copy(out, d.outline)
	return out
}

// ContentHash is the SHA-256 of the raw PDF bytes, hex encoded.
func (d *Document) ContentHash() string { return d.hash }

// Close releases the MuPDF handle. It is safe to call more than once.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	d.data = nil
	return d.fz.Close()
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
