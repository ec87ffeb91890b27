// Package pipeline turns one article definition into a split PDF and its
// summary, reporting progress as TaskMessages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/magsplit/internal/domain"
	"github.com/spherical/magsplit/internal/observability"
	"github.com/spherical/magsplit/internal/ocr"
	"github.com/spherical/magsplit/internal/pdf"
	"github.com/spherical/magsplit/internal/summarize"
)

// OCRApplier adds a text layer to a document.
type OCRApplier interface {
	Apply(ctx context.Context, doc *pdf.Document, dpi int, progress ocr.ProgressFunc) (*pdf.Document, error)
}

// SummaryWriter writes the summary of a saved PDF and returns its path.
type SummaryWriter interface {
	Summarize(ctx context.Context, pdfPath string, report summarize.ReportFunc) (string, error)
}

// Source is the opened magazine issue shared by every invocation.
type Source struct {
	Path string
	Doc  *pdf.Document
}

// OutputDir returns the folder articles of the source at path are written
// to: a directory named after the source file, next to it.
func OutputDir(path string) string {
	base := filepath.Base(path)
	return filepath.Join(filepath.Dir(path), strings.TrimSuffix(base, filepath.Ext(base)))
}

// OutputPath returns the PDF path for spec.
func OutputPath(sourcePath string, spec domain.ArticleSpec) string {
	return filepath.Join(OutputDir(sourcePath), domain.SafeName(spec.Name)+".pdf")
}

// Result describes one finished invocation.
type Result struct {
	ArticleID   int
	State       domain.GenerationState
	PDFPath     string
	SummaryPath string
	Err         error
	Duration    time.Duration
}

// Generator runs the article pipeline. One Generator may run many
// invocations concurrently; each reports only through the sink.
type Generator struct {
	sink       domain.MessageSink
	ocr        OCRApplier
	summarizer SummaryWriter
	runID      string
	logger     *observability.Logger
}

// NewGenerator creates a Generator. ocrPass and summarizer may be nil when
// the corresponding stage is never enabled.
func NewGenerator(sink domain.MessageSink, ocrPass OCRApplier, summarizer SummaryWriter, logger *observability.Logger) *Generator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Generator{
		sink:       sink,
		ocr:        ocrPass,
		summarizer: summarizer,
		runID:      uuid.NewString(),
		logger:     logger.WithOperation("generate"),
	}
}

// RunID identifies this Generator in logs.
func (g *Generator) RunID() string { return g.runID }

// Generate validates spec, then splits, optionally OCRs, saves and
// optionally summarizes it. Stages run strictly in order and the first
// failure ends the invocation; files already written stay on disk.
func (g *Generator) Generate(ctx context.Context, src Source, spec domain.ArticleSpec, opts domain.Options) Result {
	start := time.Now()
	log := g.logger.WithArticle(spec.ID, g.runID)
	res := Result{ArticleID: spec.ID, State: domain.StateProcessing}

	fail := func(text string, err error) Result {
		res.State = domain.StateFailed
		res.Err = err
		res.Duration = time.Since(start)
		log.Error().Err(err).Dur("duration", res.Duration).Msg(text)
		g.sink.Post(domain.ErrorMessage(spec.ID, text))
		return res
	}

	if err := domain.Validate(spec, src.Doc.PageCount()); err != nil {
		text := err.Error()
		var de *domain.DomainError
		if errors.As(err, &de) {
			text = de.Message
		}
		return fail(text, err)
	}

	g.status(spec.ID, "Extracting pages %d-%d", spec.StartPage, spec.EndPage)
	doc, err := src.Doc.ExtractPages(spec.StartPage, spec.EndPage)
	if err != nil {
		return fail(fmt.Sprintf("Failed to extract pages for %s: %v", spec.Label(), err), err)
	}

	if opts.OCR {
		if g.ocr == nil {
			return fail(fmt.Sprintf("OCR requested for %s but no OCR engine is configured", spec.Label()),
				domain.OCRError("no OCR engine", nil))
		}
		dpi := opts.DPI
		if dpi < 1 {
			dpi = domain.DefaultDPI
		}
		g.status(spec.ID, "Applying OCR")
		doc, err = g.ocr.Apply(ctx, doc, dpi, func(page, total int, pageErr error) {
			if pageErr != nil {
				g.status(spec.ID, "OCR failed on page %d/%d, copied without text", page, total)
				return
			}
			g.status(spec.ID, "Applying OCR: page %d/%d", page, total)
		})
		if err != nil {
			return fail(fmt.Sprintf("Failed to apply OCR to %s: %v", spec.Label(), err), err)
		}
	}

	res.PDFPath = OutputPath(src.Path, spec)
	g.status(spec.ID, "Saving %s", filepath.Base(res.PDFPath))
	if err := doc.Save(res.PDFPath); err != nil {
		path := res.PDFPath
		res.PDFPath = ""
		return fail(fmt.Sprintf("Failed to save %s to %s: %v", spec.Label(), path, err), err)
	}
	log.Info().Str("pdf", res.PDFPath).Int("pages", doc.PageCount()).Msg("Article PDF written")

	if opts.Summarize {
		if g.summarizer == nil {
			return fail(fmt.Sprintf("Summary requested for %s but no summarizer is configured (PDF kept at %s)",
				spec.Label(), res.PDFPath), domain.SummarizationError("no summarizer", nil))
		}
		g.status(spec.ID, "Generating summary for %s", filepath.Base(res.PDFPath))
		summaryPath, err := g.summarizer.Summarize(ctx, res.PDFPath, func(text string) {
			g.status(spec.ID, "%s", text)
		})
		if err != nil {
			return fail(fmt.Sprintf("Failed to summarize %s: %v (PDF kept at %s without a summary)",
				spec.Label(), err, res.PDFPath), err)
		}
		res.SummaryPath = summaryPath
	}

	res.State = domain.StateComplete
	res.Duration = time.Since(start)
	log.Info().Dur("duration", res.Duration).Msg("Article complete")
	g.sink.Post(domain.CompleteMessage(spec.ID))
	return res
}

func (g *Generator) status(articleID int, format string, args ...interface{}) {
	g.sink.Post(domain.StatusMessage(articleID, format, args...))
}
