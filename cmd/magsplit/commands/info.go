package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/magsplit/internal/pdf"
	"github.com/spherical/magsplit/internal/pipeline"
	"github.com/spherical/magsplit/internal/ui"
)

var infoCmd = &cobra.Command{
	Use:   "info <issue.pdf>",
	Short: "Show page count and text layer coverage of a PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := args[0]

	doc, err := pdf.Open(path)
	if err != nil {
		return err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}

	r, err := pdf.NewRenderer(doc)
	if err != nil {
		return err
	}
	defer r.Close()

	withText := 0
	for i := 0; i < r.NumPage(); i++ {
		text, err := r.PageText(i)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) != "" {
			withText++
		}
	}

	ui.Section(doc.Name())
	ui.Table([]string{"Property", "Value"}, [][]string{
		{"Pages", fmt.Sprintf("%d", doc.PageCount())},
		{"Size", fmt.Sprintf("%.1f MB", float64(stat.Size())/(1024*1024))},
		{"Pages with text", fmt.Sprintf("%d", withText)},
		{"Output folder", pipeline.OutputDir(path)},
	})

	if pdf.NewValidator().IsLarge(path) {
		ui.Warning("Large file: rendering and OCR will be slow")
	}
	if withText < doc.PageCount() {
		ui.Info("%d pages have no text layer; use --ocr when generating", doc.PageCount()-withText)
	}
	return nil
}
