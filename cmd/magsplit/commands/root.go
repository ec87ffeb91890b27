package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/spherical/magsplit/internal/config"
	"github.com/spherical/magsplit/internal/observability"
	"github.com/spherical/magsplit/internal/ui"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "magsplit",
	Short: "Split magazine issues into article PDFs with AI summaries",
	Long: `magsplit cuts a magazine PDF into one PDF per article, optionally adds an
OCR text layer to scanned pages, and writes a short summary with tags next to
every article.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		if verbose {
			cfg.Observability.LogLevel = "debug"
		}

		ui.InitUI(noColor, verbose)
		logger = observability.NewLogger(observability.LogConfig{
			Level:       cfg.Observability.LogLevel,
			Format:      cfg.Observability.LogFormat,
			ServiceName: "magsplit",
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
