// Package summarize produces short article summaries with a chat model.
package summarize

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spherical/magsplit/internal/config"
	"github.com/spherical/magsplit/internal/domain"
	"github.com/spherical/magsplit/internal/llm"
	"github.com/spherical/magsplit/internal/observability"
	"github.com/spherical/magsplit/internal/ocr"
	"github.com/spherical/magsplit/internal/pdf"
)

// SystemPrompt is sent with every chat request.
const SystemPrompt = "You are an assistant that summarizes text."

const (
	DefaultChunkTokens     = 2000
	DefaultMaxOutputTokens = 500
	DefaultWords           = 200
	DefaultTags            = 5
)

// OCRApplier adds a text layer to image-only documents.
type OCRApplier interface {
	Apply(ctx context.Context, doc *pdf.Document, dpi int, progress ocr.ProgressFunc) (*pdf.Document, error)
}

// ReportFunc receives human readable progress lines.
type ReportFunc func(text string)

// Settings tune the summarizer.
type Settings struct {
	ChunkTokens      int
	ChunkConcurrency int
	MaxOutputTokens  int
	Words            int
	Tags             int
	Perspective      string
	RecoverEmptyText bool
	DPI              int
}

// SettingsFromConfig collects the summarizer settings from cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		ChunkTokens:      cfg.Summary.ChunkTokens,
		ChunkConcurrency: cfg.Summary.ChunkConcurrency,
		MaxOutputTokens:  cfg.LLM.MaxOutputTokens,
		Words:            cfg.Summary.Words,
		Tags:             cfg.Summary.Tags,
		Perspective:      cfg.Summary.Perspective,
		RecoverEmptyText: cfg.OCR.RecoverEmptyText,
		DPI:              cfg.OCR.DPI,
	}
}

func (s Settings) withDefaults() Settings {
	if s.ChunkTokens < 1 {
		s.ChunkTokens = DefaultChunkTokens
	}
	if s.ChunkConcurrency < 1 {
		s.ChunkConcurrency = 1
	}
	if s.MaxOutputTokens < 1 {
		s.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if s.Words < 1 {
		s.Words = DefaultWords
	}
	if s.Tags < 0 {
		s.Tags = DefaultTags
	}
	if s.DPI < 1 {
		s.DPI = domain.DefaultDPI
	}
	return s
}

// Summarizer turns article PDFs into .txt summaries.
type Summarizer struct {
	chat      llm.ChatClient
	tokenizer Tokenizer
	ocr       OCRApplier
	settings  Settings
	logger    *observability.Logger
}

// New creates a Summarizer. ocrPass may be nil, which disables recovery of
// image-only PDFs.
func New(chat llm.ChatClient, tokenizer Tokenizer, ocrPass OCRApplier, settings Settings, logger *observability.Logger) *Summarizer {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Summarizer{
		chat:      chat,
		tokenizer: tokenizer,
		ocr:       ocrPass,
		settings:  settings.withDefaults(),
		logger:    logger.WithOperation("summarize"),
	}
}

// SummarizeChunks summarizes every chunk with one chat call each, keeping
// chunk order in the result.
func (s *Summarizer) SummarizeChunks(ctx context.Context, chunks iter.Seq[string]) ([]string, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.ChunkConcurrency)

	var pending []string
	for chunk := range chunks {
		pending = append(pending, chunk)
	}

	summaries := make([]string, len(pending))
	for i, chunk := range pending {
		g.Go(func() error {
			reply, err := s.SummarizeChunk(ctx, chunk)
			if err != nil {
				return err
			}
			summaries[i] = reply
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// SummarizeChunk sends one chunk to the model.
func (s *Summarizer) SummarizeChunk(ctx context.Context, chunk string) (string, error) {
	reply, err := s.chat.Chat(ctx, SystemPrompt, chunk, s.settings.MaxOutputTokens)
	if err != nil {
		return "", domain.SummarizationError("failed to summarize chunk", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", domain.SummarizationError("model returned an empty chunk summary", nil)
	}
	return reply, nil
}

// Condense merges chunk summaries into the final summary with tags.
func (s *Summarizer) Condense(ctx context.Context, summaries []string) (string, error) {
	reply, err := s.chat.Chat(ctx, SystemPrompt, s.condensePrompt(strings.Join(summaries, " ")), s.settings.MaxOutputTokens)
	if err != nil {
		return "", domain.SummarizationError("failed to generate final summary", err)
	}
	if strings.TrimSpace(reply) == "" {
		return "", domain.SummarizationError("model returned an empty summary", nil)
	}
	return reply, nil
}

func (s *Summarizer) condensePrompt(text string) string {
	var sb strings.Builder
	if p := strings.TrimSpace(s.settings.Perspective); p != "" {
		fmt.Fprintf(&sb, "%s, summarize", strings.TrimRight(p, ", "))
	} else {
		sb.WriteString("Summarize")
	}
	fmt.Fprintf(&sb, " the following article in %d words.", s.settings.Words)
	if s.settings.Tags > 0 {
		fmt.Fprintf(&sb, " Also provide %d tags to use at the end of the summary:", s.settings.Tags)
	}
	sb.WriteString("\n\n")
	sb.WriteString(text)
	return sb.String()
}

// SummaryPath returns the .txt path written for pdfPath.
func SummaryPath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".txt"
}

// Summarize writes a summary of the PDF at pdfPath next to it and returns
// the summary path. When the PDF has no text and recovery is enabled, the
// OCR'd document replaces the file on disk first.
func (s *Summarizer) Summarize(ctx context.Context, pdfPath string, report ReportFunc) (string, error) {
	if report == nil {
		report = func(string) {}
	}
	start := time.Now()

	doc, err := pdf.Open(pdfPath)
	if err != nil {
		return "", domain.SummarizationError(fmt.Sprintf("failed to open %s", pdfPath), err)
	}

	text, err := s.extractText(ctx, doc, pdfPath, report)
	if err != nil {
		return "", err
	}

	report("Generating summary")
	summaries, err := s.SummarizeChunks(ctx, Chunk(text, s.tokenizer, s.settings.ChunkTokens))
	if err != nil {
		return "", err
	}

	final, err := s.Condense(ctx, summaries)
	if err != nil {
		return "", err
	}

	out := SummaryPath(pdfPath)
	if err := os.WriteFile(out, []byte(final), 0o644); err != nil {
		return "", domain.IOError(fmt.Sprintf("failed to write summary %s", out), err)
	}

	s.logger.Info().
		Str("pdf", pdfPath).
		Int("chunks", len(summaries)).
		Dur("duration", time.Since(start)).
		Msg("Summary written")

	return out, nil
}

func (s *Summarizer) extractText(ctx context.Context, doc *pdf.Document, pdfPath string, report ReportFunc) (string, error) {
	text, err := pdf.ExtractText(doc)
	if err != nil {
		return "", domain.SummarizationError("failed to extract text", err)
	}
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	if !s.settings.RecoverEmptyText || s.ocr == nil {
		return "", domain.SummarizationError(fmt.Sprintf("no text could be extracted from %s", pdfPath), nil)
	}

	s.logger.Info().Str("pdf", pdfPath).Msg("No text layer, applying OCR")
	ocrDoc, err := s.ocr.Apply(ctx, doc, s.settings.DPI, func(page, total int, pageErr error) {
		report(fmt.Sprintf("Applying OCR: page %d/%d", page, total))
	})
	if err != nil {
		return "", domain.SummarizationError("OCR recovery failed", err)
	}
	if err := ocrDoc.Save(pdfPath); err != nil {
		return "", err
	}

	text, err = pdf.ExtractText(ocrDoc)
	if err != nil {
		return "", domain.SummarizationError("failed to extract text after OCR", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.SummarizationError(fmt.Sprintf("no text could be extracted from %s, even after OCR", pdfPath), nil)
	}
	return text, nil
}

// FolderFunc is called once per PDF visited by SummarizeFolder.
type FolderFunc func(pdfPath, summaryPath string, err error)

// SummarizeFolder summarizes every .pdf below dir. A failing file is
// reported through fn and does not stop the walk.
func (s *Summarizer) SummarizeFolder(ctx context.Context, dir string, fn FolderFunc) error {
	if fn == nil {
		fn = func(string, string, error) {}
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}

		out, err := s.Summarize(ctx, path, nil)
		if err != nil {
			s.logger.Warn().Str("pdf", path).Err(err).Msg("Summary failed")
		}
		fn(path, out, err)
		return nil
	})
}
