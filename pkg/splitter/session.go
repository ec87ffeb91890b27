// Package splitter is the entry point for splitting a magazine issue into
// article PDFs with summaries.
package splitter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spherical/magsplit/internal/articles"
	"github.com/spherical/magsplit/internal/config"
	"github.com/spherical/magsplit/internal/coordinator"
	"github.com/spherical/magsplit/internal/domain"
	"github.com/spherical/magsplit/internal/observability"
	"github.com/spherical/magsplit/internal/pdf"
	"github.com/spherical/magsplit/internal/pipeline"
	"github.com/spherical/magsplit/internal/workpool"
)

// Re-export the types callers need to drive a Session.
type (
	ArticleSpec     = domain.ArticleSpec
	Options         = domain.Options
	TaskMessage     = domain.TaskMessage
	GenerationState = domain.GenerationState
	Entry           = articles.Entry
	Result          = pipeline.Result
)

// Session holds one opened issue, its articles and the workers generating
// them. Registry, Poll and Generate belong to one goroutine; the pipeline
// work itself runs on the pool.
type Session struct {
	source    pipeline.Source
	registry  *articles.Registry
	queue     *coordinator.Queue
	pool      *workpool.Pool
	generator *pipeline.Generator
	logger    *observability.Logger

	mu      sync.Mutex
	results map[int]pipeline.Result

	renderer *pdf.Renderer
}

type settings struct {
	ocr        pipeline.OCRApplier
	summarizer pipeline.SummaryWriter
	logger     *observability.Logger
}

// Option customizes Open.
type Option func(*settings)

// WithOCR replaces the Tesseract OCR pass.
func WithOCR(o pipeline.OCRApplier) Option {
	return func(s *settings) { s.ocr = o }
}

// WithSummarizer replaces the chat-model summarizer.
func WithSummarizer(sw pipeline.SummaryWriter) Option {
	return func(s *settings) { s.summarizer = sw }
}

// WithLogger sets the session logger.
func WithLogger(l *observability.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// Open loads the PDF at path and starts cfg.Pipeline.Workers workers. ctx
// is handed to every pipeline run; cancelling it aborts work in progress.
func Open(ctx context.Context, path string, cfg *config.Config, opts ...Option) (*Session, error) {
	st := &settings{}
	for _, opt := range opts {
		opt(st)
	}
	if st.logger == nil {
		st.logger = observability.Nop()
	}

	doc, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	if doc.PageCount() == 0 {
		return nil, domain.ValidationError(fmt.Sprintf("%s has no pages", path), nil)
	}

	if st.ocr == nil {
		st.ocr = NewOCRPass(cfg, st.logger)
	}
	if st.summarizer == nil && cfg.Pipeline.Summarize {
		sum, err := NewSummarizer(cfg, st.ocr, st.logger)
		if err != nil {
			return nil, err
		}
		st.summarizer = sum
	}

	queue := coordinator.NewQueue()
	s := &Session{
		source:    pipeline.Source{Path: path, Doc: doc},
		registry:  articles.NewRegistry(doc.PageCount()),
		queue:     queue,
		pool:      workpool.New(ctx, cfg.Pipeline.Workers, st.logger),
		generator: pipeline.NewGenerator(queue, st.ocr, st.summarizer, st.logger),
		results:   make(map[int]pipeline.Result),
	}
	s.logger = st.logger.WithStr("run_id", s.generator.RunID())

	s.logger.Info().
		Str("source", path).
		Int("pages", doc.PageCount()).
		Int("workers", cfg.Pipeline.Workers).
		Msg("Session opened")

	return s, nil
}

// PageCount returns the number of pages of the source document.
func (s *Session) PageCount() int { return s.source.Doc.PageCount() }

// SourcePath returns the path the session was opened from.
func (s *Session) SourcePath() string { return s.source.Path }

// OutputDir returns the folder article files are written to.
func (s *Session) OutputDir() string { return pipeline.OutputDir(s.source.Path) }

// Registry returns the article registry.
func (s *Session) Registry() *articles.Registry { return s.registry }

// Messages returns the queue pipeline runs report to. Its Ready channel can
// drive an event loop in place of fixed-interval polling.
func (s *Session) Messages() *coordinator.Queue { return s.queue }

// Generate marks article id Processing and queues its pipeline run. Range
// problems are reported by the run as an Error message.
func (s *Session) Generate(id int, opts domain.Options) error {
	entry, ok := s.registry.Get(id)
	if !ok {
		return domain.ValidationError(fmt.Sprintf("article #%d does not exist", id+1), nil)
	}
	if err := s.registry.MarkProcessing(id); err != nil {
		return err
	}

	spec := entry.Spec
	finished := false
	err := s.pool.Submit(workpool.Job{
		Name: spec.Label(),
		Run: func(ctx context.Context) error {
			res := s.generator.Generate(ctx, s.source, spec, opts)
			s.mu.Lock()
			s.results[spec.ID] = res
			s.mu.Unlock()
			finished = true
			return res.Err
		},
		Done: func(err error) {
			// Errors from a finished run were already reported by the
			// pipeline; only a panic needs a message here.
			if !finished && err != nil {
				s.queue.Error(spec.ID, fmt.Sprintf("%s failed unexpectedly: %v", spec.Label(), err))
			}
		},
	})
	if err != nil {
		_ = s.registry.ReleaseProcessing(id)
		return err
	}
	return nil
}

// Validate checks every article against the source page count and joins
// all problems into one error.
func (s *Session) Validate() error {
	return errors.Join(s.registry.Validate()...)
}

// GenerateAll queues every Pending article and returns how many were queued.
// Nothing is queued while any article is invalid.
func (s *Session) GenerateAll(opts domain.Options) (int, error) {
	if err := s.Validate(); err != nil {
		return 0, err
	}
	queued := 0
	for _, e := range s.registry.List() {
		if e.State != domain.StatePending {
			continue
		}
		if err := s.Generate(e.Spec.ID, opts); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// Retry resets a finished article and queues it again.
func (s *Session) Retry(id int, opts domain.Options) error {
	if err := s.registry.Reset(id); err != nil {
		return err
	}
	return s.Generate(id, opts)
}

// Poll drains pending messages, applies them to the registry and returns
// them in arrival order. It never blocks.
func (s *Session) Poll() []domain.TaskMessage {
	msgs := s.queue.Drain()
	for _, msg := range msgs {
		s.registry.Apply(msg)
	}

	s.mu.Lock()
	for id, res := range s.results {
		s.registry.SetOutputs(id, res.PDFPath, res.SummaryPath)
		delete(s.results, id)
	}
	s.mu.Unlock()

	return msgs
}

// Busy reports whether any article is still Processing.
func (s *Session) Busy() bool {
	return s.registry.Counts()[domain.StateProcessing] > 0
}

// PageText returns the embedded text of 1-based page for previews.
func (s *Session) PageText(page int) (string, error) {
	if page < 1 || page > s.PageCount() {
		return "", domain.ValidationError(fmt.Sprintf("page %d is outside 1-%d", page, s.PageCount()), nil)
	}
	if s.renderer == nil {
		r, err := pdf.NewRenderer(s.source.Doc)
		if err != nil {
			return "", err
		}
		s.renderer = r
	}
	return s.renderer.PageText(page - 1)
}

// Close waits for queued runs to finish and stops the workers. Call Poll
// afterwards to collect the final messages.
func (s *Session) Close() {
	s.pool.Close()
	if s.renderer != nil {
		_ = s.renderer.Close()
		s.renderer = nil
	}
	s.logger.Debug().Msg("Session closed")
}
