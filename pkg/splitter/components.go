package splitter

import (
	"github.com/spherical/magsplit/internal/config"
	"github.com/spherical/magsplit/internal/domain"
	"github.com/spherical/magsplit/internal/llm"
	"github.com/spherical/magsplit/internal/observability"
	"github.com/spherical/magsplit/internal/ocr"
	"github.com/spherical/magsplit/internal/summarize"
)

// NewOCRPass builds the Tesseract-backed OCR pass described by cfg.
func NewOCRPass(cfg *config.Config, logger *observability.Logger) *ocr.Pass {
	return ocr.NewPass(ocr.NewTesseract(cfg.OCR.Language), ocr.WithLogger(logger.WithOperation("ocr")))
}

// NewSummarizer builds the chat-model summarizer described by cfg. ocrPass
// is used to recover PDFs without a text layer and may be nil.
func NewSummarizer(cfg *config.Config, ocrPass summarize.OCRApplier, logger *observability.Logger) (*summarize.Summarizer, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, domain.ConfigError("summarization needs an API key", err)
	}

	client, err := llm.NewClient(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	tokenizer, err := summarize.NewTiktoken(cfg.LLM.Model)
	if err != nil {
		return nil, err
	}

	return summarize.New(client, tokenizer, ocrPass, summarize.SettingsFromConfig(cfg), logger), nil
}

// DefaultOptions returns the pipeline options selected by cfg.
func DefaultOptions(cfg *config.Config) domain.Options {
	return domain.Options{
		OCR:       cfg.Pipeline.OCR,
		Summarize: cfg.Pipeline.Summarize,
		DPI:       cfg.OCR.DPI,
	}
}
