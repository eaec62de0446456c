package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"boardsync/internal/config"
	"boardsync/internal/printer"
	"boardsync/pkg/kanban"
)

var (
	version string
	commit  string
	date    string

	// configPath is settable on every subcommand via --config
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "boardsync",
	Short: "Boardsync - live replica client for collaborative kanban boards",
	Long: `Boardsync keeps a local replica of your kanban boards in sync with the
server. Mutations apply instantly and roll back if the server rejects them,
and server-pushed events from other participants are reconciled live.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no subcommand is specified, show help
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "boardsync.yml", "path to the config file")
}

// newSession loads the config and opens an authenticated session. Shared by
// every subcommand that talks to the server. The desync and evicted
// callbacks may be nil for commands that do not stream.
func newSession(ctx context.Context, onDesync func(kanban.Desync), onEvicted func(string)) (*kanban.Session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, printer.Error(
			"Configuration error",
			err.Error(),
			[]string{
				"Create a boardsync.yml with api_url, ws_url and token",
				"Or set BOARDSYNC_API_URL, BOARDSYNC_WS_URL and BOARDSYNC_TOKEN",
			})
	}

	session, err := kanban.NewSession(ctx, kanban.SessionConfig{
		APIURL:    cfg.APIURL,
		WSURL:     cfg.WSURL,
		Token:     cfg.Token,
		OnDesync:  onDesync,
		OnEvicted: onEvicted,
	})
	if err != nil {
		return nil, printer.Error(
			"Could not connect to the board server",
			err.Error(),
			[]string{"Check that the server is reachable and the token is valid"})
	}
	return session, nil
}
