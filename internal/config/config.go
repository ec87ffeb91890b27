// Package config provides configuration loading for magsplit.
// Supports YAML files, .env files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spherical/magsplit/internal/workpool"
)

// Config holds all configuration for magsplit.
type Config struct {
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	OCR           OCRConfig           `yaml:"ocr"`
	LLM           LLMConfig           `yaml:"llm"`
	Summary       SummaryConfig       `yaml:"summary"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PipelineConfig holds generation pipeline settings.
type PipelineConfig struct {
	Workers      int           `yaml:"workers"`
	OCR          bool          `yaml:"ocr"`
	Summarize    bool          `yaml:"summarize"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// OCRConfig holds OCR pass settings. Language takes Tesseract codes joined
// with '+'. The embedded text layer is limited to Latin-1; characters of
// other scripts are recognized but left out of the layer with a warning.
type OCRConfig struct {
	DPI              int    `yaml:"dpi"`
	Language         string `yaml:"language"`
	RecoverEmptyText bool   `yaml:"recover_empty_text"`
}

// LLMConfig holds summarization service settings. APIKey is never read from
// the YAML file.
type LLMConfig struct {
	APIKey            string        `yaml:"-"`
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	MaxOutputTokens   int           `yaml:"max_output_tokens"`
}

// SummaryConfig holds summarizer settings.
type SummaryConfig struct {
	ChunkTokens      int    `yaml:"chunk_tokens"`
	ChunkConcurrency int    `yaml:"chunk_concurrency"`
	Words            int    `yaml:"words"`
	Tags             int    `yaml:"tags"`
	Perspective      string `yaml:"perspective"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads .env, then the YAML file at path (optional), then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	// Missing .env files are fine
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			Workers:      workpool.DefaultWorkers(),
			OCR:          true,
			Summarize:    true,
			PollInterval: 100 * time.Millisecond,
		},
		OCR: OCRConfig{
			DPI:              300,
			Language:         "eng",
			RecoverEmptyText: true,
		},
		LLM: LLMConfig{
			Model:           "gpt-4o-mini",
			MaxOutputTokens: 500,
		},
		Summary: SummaryConfig{
			ChunkTokens:      2000,
			ChunkConcurrency: 1,
			Words:            200,
			Tags:             5,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1, got %d", c.Pipeline.Workers)
	}

	if c.Pipeline.PollInterval <= 0 {
		return fmt.Errorf("pipeline.poll_interval must be positive")
	}

	if c.OCR.DPI < 72 || c.OCR.DPI > 1200 {
		return fmt.Errorf("ocr.dpi must be between 72 and 1200, got %d", c.OCR.DPI)
	}

	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}

	if c.LLM.MaxOutputTokens < 1 {
		return fmt.Errorf("llm.max_output_tokens must be positive")
	}

	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute cannot be negative")
	}

	if c.Summary.ChunkTokens < 1 {
		return fmt.Errorf("summary.chunk_tokens must be positive")
	}

	if c.Summary.ChunkConcurrency < 1 {
		return fmt.Errorf("summary.chunk_concurrency must be at least 1")
	}

	if c.Summary.Words < 1 || c.Summary.Tags < 0 {
		return fmt.Errorf("summary.words must be positive and summary.tags non-negative")
	}

	return nil
}

// RequireAPIKey returns an error when summarization is configured without a credential.
func (c *Config) RequireAPIKey() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("API_KEY environment variable is not set (OPENAI_API_KEY and OPENROUTER_API_KEY are also accepted)")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	for _, key := range []string{"API_KEY", "OPENAI_API_KEY", "OPENROUTER_API_KEY"} {
		if v := os.Getenv(key); v != "" {
			cfg.LLM.APIKey = v
			break
		}
	}

	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}

	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	if v := os.Getenv("MAGSPLIT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.Workers = n
		}
	}

	if v := os.Getenv("MAGSPLIT_OCR_DPI"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OCR.DPI = n
		}
	}

	if v := os.Getenv("MAGSPLIT_OCR_LANGUAGE"); v != "" {
		cfg.OCR.Language = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
