package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical/magsplit/internal/ui"
	"github.com/spherical/magsplit/pkg/splitter"
)

var summarizeNoOCR bool

var summarizeCmd = &cobra.Command{
	Use:   "summarize <article.pdf|folder>",
	Short: "Write summaries for existing article PDFs",
	Long: `Summarize one PDF, or every PDF below a folder. Each summary is written next
to its PDF with a .txt extension. PDFs without a text layer are OCR'd first and
replaced on disk unless --no-ocr is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().BoolVar(&summarizeNoOCR, "no-ocr", false, "do not OCR PDFs that have no text")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	target := args[0]

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("stat %s: %w", target, err)
	}

	if summarizeNoOCR {
		cfg.OCR.RecoverEmptyText = false
	}
	summarizer, err := splitter.NewSummarizer(cfg, splitter.NewOCRPass(cfg, logger), logger)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		spinner := ui.NewSpinner("Summarizing " + target)
		spinner.Start()
		out, err := summarizer.Summarize(ctx, target, spinner.UpdateMessage)
		spinner.Stop()
		if err != nil {
			return err
		}
		ui.Success("Summary written to %s", out)
		return nil
	}

	ui.Section("Summarize " + target)
	failed, total := 0, 0
	err = summarizer.SummarizeFolder(ctx, target, func(pdfPath, summaryPath string, err error) {
		total++
		if err != nil {
			failed++
			ui.Error("%s: %v", pdfPath, err)
			return
		}
		ui.Success("%s", summaryPath)
	})
	if err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d summaries failed", failed, total)
	}
	ui.Info("%d summaries written", total)
	return nil
}
