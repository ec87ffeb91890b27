package pdf

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/magsplit/internal/domain"
)

// Renderer rasterizes and reads text from one Document using go-fitz.
// Calls are serialized; open one Renderer per goroutine for parallelism.
type Renderer struct {
	mu  sync.Mutex
	doc *fitz.Document
}

// NewRenderer opens doc for rendering.
func NewRenderer(doc *Document) (*Renderer, error) {
	fd, err := fitz.NewFromMemory(doc.Bytes())
	if err != nil {
		return nil, domain.ExtractionError(fmt.Sprintf("failed to open %s for rendering", doc.Name()), err)
	}
	return &Renderer{doc: fd}, nil
}

// NumPage returns the page count reported by the renderer.
func (r *Renderer) NumPage() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.NumPage()
}

// RenderPage renders the zero-based page index at dpi.
func (r *Renderer) RenderPage(index, dpi int) (image.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, err := r.doc.ImageDPI(index, float64(dpi))
	if err != nil {
		return nil, domain.ExtractionError(fmt.Sprintf("failed to render page %d", index+1), err)
	}
	return img, nil
}

// PageText returns the embedded text of the zero-based page index.
func (r *Renderer) PageText(index int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	text, err := r.doc.Text(index)
	if err != nil {
		return "", domain.ExtractionError(fmt.Sprintf("failed to read text of page %d", index+1), err)
	}
	return text, nil
}

// Close releases the underlying document.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.doc == nil {
		return nil
	}
	err := r.doc.Close()
	r.doc = nil
	return err
}

// ExtractText concatenates the embedded text of every page in page order.
// An empty result means the document has no text layer.
func ExtractText(doc *Document) (string, error) {
	r, err := NewRenderer(doc)
	if err != nil {
		return "", err
	}
	defer r.Close()

	var sb strings.Builder
	for i := 0; i < r.NumPage(); i++ {
		text, err := r.PageText(i)
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}
