package commands

import (
	"github.com/spf13/cobra"

	"boardsync/internal/printer"
)

// versionCmd prints detailed build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printer.Printf("boardsync %s\n", version)
		printer.Printf("  commit: %s\n", commit)
		printer.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
