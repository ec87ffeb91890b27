// Package ocr adds a searchable text layer to image-only PDF pages.
package ocr

import (
	"context"
	"fmt"
	"image"

	"github.com/spherical/magsplit/internal/domain"
	"github.com/spherical/magsplit/internal/observability"
	"github.com/spherical/magsplit/internal/pdf"
)

// PageSource renders the pages of one opened document.
type PageSource interface {
	NumPage() int
	RenderPage(index, dpi int) (image.Image, error)
	Close() error
}

// Rasterizer opens documents for page rendering.
type Rasterizer interface {
	Open(doc *pdf.Document) (PageSource, error)
}

// Recognizer turns a page image into plain text.
type Recognizer interface {
	RecognizeText(ctx context.Context, img image.Image, dpi int) (string, error)
}

// TextLayerWriter embeds recognized text, keyed by 1-based page number.
type TextLayerWriter interface {
	WriteTextLayer(doc *pdf.Document, texts map[int]string) (*pdf.Document, error)
}

// ProgressFunc is called once per page after recognition. pageErr is set
// when the page was copied without text.
type ProgressFunc func(page, total int, pageErr error)

// FitzRasterizer renders pages with go-fitz.
type FitzRasterizer struct{}

// Open implements Rasterizer.
func (FitzRasterizer) Open(doc *pdf.Document) (PageSource, error) {
	return pdf.NewRenderer(doc)
}

// TextLayerFunc adapts a function to TextLayerWriter.
type TextLayerFunc func(doc *pdf.Document, texts map[int]string) (*pdf.Document, error)

// WriteTextLayer implements TextLayerWriter.
func (f TextLayerFunc) WriteTextLayer(doc *pdf.Document, texts map[int]string) (*pdf.Document, error) {
	return f(doc, texts)
}

// Pass runs OCR over every page of a document.
type Pass struct {
	rasterizer Rasterizer
	recognizer Recognizer
	writer     TextLayerWriter
	logger     *observability.Logger
}

// Option customizes a Pass.
type Option func(*Pass)

// WithRasterizer replaces the go-fitz rasterizer.
func WithRasterizer(r Rasterizer) Option {
	return func(p *Pass) { p.rasterizer = r }
}

// WithTextLayerWriter replaces the pdfcpu text layer writer.
func WithTextLayerWriter(w TextLayerWriter) Option {
	return func(p *Pass) { p.writer = w }
}

// WithLogger sets the logger used for per-page warnings.
func WithLogger(l *observability.Logger) Option {
	return func(p *Pass) { p.logger = l }
}

// NewPass creates an OCR pass around recognizer.
func NewPass(recognizer Recognizer, opts ...Option) *Pass {
	p := &Pass{
		rasterizer: FitzRasterizer{},
		recognizer: recognizer,
		writer:     TextLayerFunc(pdf.AddTextLayer),
		logger:     observability.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Apply returns a copy of doc where every page carries an invisible layer
// of its recognized text. Page order and count are preserved. A page that
// cannot be rendered or recognized is copied without text; only failures
// affecting the whole document are returned.
func (p *Pass) Apply(ctx context.Context, doc *pdf.Document, dpi int, progress ProgressFunc) (*pdf.Document, error) {
	src, err := p.rasterizer.Open(doc)
	if err != nil {
		return nil, domain.OCRError(fmt.Sprintf("failed to open %s for OCR", doc.Name()), err)
	}
	defer src.Close()

	total := src.NumPage()
	texts := make(map[int]string, total)

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, domain.OCRError("OCR cancelled", err)
		}

		page := i + 1
		text, pageErr := p.recognizePage(ctx, src, i, dpi)
		if pageErr != nil {
			p.logger.Warn().
				Str("document", doc.Name()).
				Int("page", page).
				Err(pageErr).
				Msg("Page copied without text")
		} else if text != "" {
			if n := pdf.UnsupportedLayerRunes(text); n > 0 {
				p.logger.Warn().
					Str("document", doc.Name()).
					Int("page", page).
					Int("dropped", n).
					Msg("Characters outside Latin-1 left out of the text layer")
			}
			texts[page] = text
		}

		if progress != nil {
			progress(page, total, pageErr)
		}
	}

	out, err := p.writer.WriteTextLayer(doc, texts)
	if err != nil {
		return nil, domain.OCRError("failed to embed recognized text", err)
	}
	if out.PageCount() != doc.PageCount() {
		return nil, domain.OCRError(fmt.Sprintf("text layer changed page count from %d to %d",
			doc.PageCount(), out.PageCount()), nil)
	}

	p.logger.Debug().
		Str("document", doc.Name()).
		Int("pages", total).
		Int("pages_with_text", len(texts)).
		Msg("OCR pass complete")

	return out, nil
}

func (p *Pass) recognizePage(ctx context.Context, src PageSource, index, dpi int) (string, error) {
	img, err := src.RenderPage(index, dpi)
	if err != nil {
		return "", err
	}
	return p.recognizer.RecognizeText(ctx, img, dpi)
}
