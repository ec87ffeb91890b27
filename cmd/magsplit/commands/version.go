package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var buildVersion = "dev"

// SetVersion records the version printed by the version command.
func SetVersion(v string) { buildVersion = v }

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the magsplit version",
	Args:  cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "magsplit version %s\n", buildVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
