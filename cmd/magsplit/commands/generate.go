package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/spherical/magsplit/internal/domain"
	"github.com/spherical/magsplit/internal/pdf"
	"github.com/spherical/magsplit/internal/tui"
	"github.com/spherical/magsplit/internal/ui"
	"github.com/spherical/magsplit/pkg/splitter"
)

var (
	generateManifest  string
	generateOCR       bool
	generateNoSummary bool
	generateDPI       int
	generateWorkers   int
	generateTUI       bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <issue.pdf>",
	Short: "Split an issue into article PDFs and summaries",
	Long: `Split an issue into one PDF per article. Articles come from a YAML manifest
(--manifest) or are defined interactively (--tui). Output goes to a folder
named after the issue, next to it.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateManifest, "manifest", "m", "", "YAML file listing articles (name, start, end)")
	generateCmd.Flags().BoolVar(&generateOCR, "ocr", true, "add an OCR text layer to every article")
	generateCmd.Flags().BoolVar(&generateNoSummary, "no-summary", false, "skip AI summaries")
	generateCmd.Flags().IntVar(&generateDPI, "dpi", 0, "OCR rasterization DPI (default from config)")
	generateCmd.Flags().IntVarP(&generateWorkers, "workers", "w", 0, "articles processed in parallel (default from config)")
	generateCmd.Flags().BoolVar(&generateTUI, "tui", false, "define and generate articles interactively")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	source := args[0]

	if generateManifest == "" && !generateTUI {
		return fmt.Errorf("either --manifest or --tui is required")
	}

	opts := splitter.DefaultOptions(cfg)
	if cmd.Flags().Changed("ocr") {
		opts.OCR = generateOCR
	}
	if generateNoSummary {
		opts.Summarize = false
	}
	if generateDPI > 0 {
		if err := pdf.NewValidator().ValidateDPI(generateDPI); err != nil {
			return err
		}
		opts.DPI = generateDPI
	}
	if generateWorkers > 0 {
		cfg.Pipeline.Workers = generateWorkers
	}
	cfg.Pipeline.Summarize = opts.Summarize

	session, err := splitter.Open(ctx, source, cfg, splitter.WithLogger(logger))
	if err != nil {
		return err
	}

	if generateManifest != "" {
		manifest, err := splitter.LoadManifest(generateManifest)
		if err != nil {
			session.Close()
			return err
		}
		manifest.AddTo(session)
	}

	if generateTUI {
		defer session.Close()
		p := tea.NewProgram(tui.New(session, opts, cfg.Pipeline.PollInterval), tea.WithAltScreen(), tea.WithContext(ctx))
		_, err := p.Run()
		return err
	}

	if errs := session.Registry().Validate(); len(errs) > 0 {
		session.Close()
		for _, err := range errs {
			ui.Error("%s", invalidText(err))
		}
		return fmt.Errorf("%d invalid articles, nothing generated", len(errs))
	}

	return generatePlain(ctx, session, opts)
}

func invalidText(err error) string {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

func generatePlain(ctx context.Context, session *splitter.Session, opts domain.Options) error {
	ui.Section("Generate articles")
	ui.KeyValue("Source", session.SourcePath())
	ui.KeyValue("Pages", fmt.Sprintf("%d", session.PageCount()))
	ui.KeyValue("Output", session.OutputDir())
	ui.KeyValue("OCR", fmt.Sprintf("%t (%d dpi)", opts.OCR, opts.DPI))
	ui.KeyValue("Summaries", fmt.Sprintf("%t", opts.Summarize))
	ui.Newline()

	start := time.Now()
	total, err := session.GenerateAll(opts)
	if err != nil {
		session.Close()
		return err
	}

	bar := ui.NewProgressBar(total, "Generating")
	ticker := time.NewTicker(cfg.Pipeline.PollInterval)
	defer ticker.Stop()

	finished := 0
	report := func() {
		for _, msg := range session.Poll() {
			label := articleLabel(session, msg.ArticleID)
			switch msg.Kind {
			case domain.MessageStatus:
				ui.Step("%s: %s", label, msg.Text)
			case domain.MessageComplete:
				finished++
				bar.Describe(label + " done")
			case domain.MessageError:
				finished++
				ui.Error("%s", msg.Text)
			}
		}
		bar.Set(finished)
	}

	for session.Busy() {
		select {
		case <-ctx.Done():
		case <-session.Messages().Ready():
		case <-ticker.C:
		}
		report()
		if ctx.Err() != nil {
			break
		}
	}
	session.Close()
	report()
	bar.Finish()

	return printResults(session, time.Since(start))
}

func articleLabel(session *splitter.Session, id int) string {
	if e, ok := session.Registry().Get(id); ok {
		return e.Spec.Label()
	}
	return fmt.Sprintf("Article #%d", id+1)
}

func printResults(session *splitter.Session, elapsed time.Duration) error {
	entries := session.Registry().List()
	rows := make([][]string, 0, len(entries))
	failed := 0
	for _, e := range entries {
		state := string(e.State)
		output := relOutput(session, e.PDFPath)
		if e.SummaryPath != "" {
			output += " + " + filepath.Base(e.SummaryPath)
		}
		if e.State == domain.StateFailed {
			failed++
			output = e.LastMessage
		}
		rows = append(rows, []string{
			e.Spec.Name,
			fmt.Sprintf("%d-%d", e.Spec.StartPage, e.Spec.EndPage),
			state,
			output,
		})
	}

	ui.Section("Results")
	ui.Table([]string{"Article", "Pages", "State", "Output"}, rows)
	ui.Newline()

	if failed > 0 {
		return fmt.Errorf("%d of %d articles failed", failed, len(entries))
	}
	ui.Success("Generated %d articles in %s", len(entries), ui.FormatDuration(elapsed))
	return nil
}

func relOutput(session *splitter.Session, path string) string {
	if path == "" {
		return ""
	}
	if rel, err := filepath.Rel(session.OutputDir(), path); err == nil {
		return rel
	}
	return path
}
