// Package pdf wraps the PDF libraries used by magsplit: go-fitz for reading
// and rasterizing, pdfcpu for page extraction and text layers.
package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/spherical/magsplit/internal/domain"
)

func init() {
	// pdfcpu must not create a config directory in the user's home.
	api.DisableConfigDir()
}

// Document is an immutable, in-memory PDF. Every method that produces a
// modified document returns a new Document, so one Document can be shared
// by any number of goroutines.
type Document struct {
	name  string
	data  []byte
	pages int
}

// Open reads and validates the PDF at path.
func Open(path string) (*Document, error) {
	if err := NewValidator().ValidatePDFPath(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("failed to read %s", path), err)
	}

	return FromBytes(filepath.Base(path), data)
}

// FromBytes builds a Document from raw PDF bytes. The slice is owned by the
// Document afterwards and must not be modified by the caller.
func FromBytes(name string, data []byte) (*Document, error) {
	pages, err := api.PageCount(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, domain.ValidationError(fmt.Sprintf("failed to parse PDF %s", name), err)
	}

	return &Document{name: name, data: data, pages: pages}, nil
}

// Name returns the file name the document was opened from.
func (d *Document) Name() string { return d.name }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return d.pages }

// Bytes returns the raw PDF. Callers must not modify it.
func (d *Document) Bytes() []byte { return d.data }

// Reader returns an independent reader over the document bytes.
func (d *Document) Reader() *bytes.Reader { return bytes.NewReader(d.data) }

// ExtractPages copies pages [start, end] (1-indexed, inclusive) into a new
// document. The receiver is never modified.
func (d *Document) ExtractPages(start, end int) (*Document, error) {
	if start < 1 || end < start || end > d.pages {
		return nil, domain.ExtractionError(
			fmt.Sprintf("page range %d-%d is outside document with %d pages", start, end, d.pages), nil)
	}

	var buf bytes.Buffer
	selection := []string{fmt.Sprintf("%d-%d", start, end)}
	if err := api.Trim(d.Reader(), &buf, selection, newConfiguration()); err != nil {
		return nil, domain.ExtractionError(fmt.Sprintf("failed to copy pages %d-%d", start, end), err)
	}

	return &Document{
		name:  d.name,
		data:  buf.Bytes(),
		pages: end - start + 1,
	}, nil
}

// Save writes the document to path, creating parent directories.
func (d *Document) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.IOError(fmt.Sprintf("failed to create directory for %s", path), err)
	}
	if err := os.WriteFile(path, d.data, 0o644); err != nil {
		return domain.IOError(fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

// withData returns a copy of d carrying new bytes and the same page count.
func (d *Document) withData(data []byte) *Document {
	return &Document{name: d.name, data: data, pages: d.pages}
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
