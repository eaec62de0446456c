package commands

import (
	"github.com/spf13/cobra"

	"boardsync/internal/printer"
	"boardsync/pkg/kanban"
)

// boardsCmd lists the user's boards partitioned by role
var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "List your boards",
	Long:  `Lists every board you can see, split into boards you own and boards you participate in.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		session, err := newSession(ctx, nil, nil)
		if err != nil {
			return err
		}
		defer session.Close()

		if err := session.RefreshBoards(ctx); err != nil {
			return printer.Error(
				"Could not fetch boards",
				err.Error(),
				nil)
		}

		printBoardPartition("Owned by you", session.Store().OwnedBoards())
		printer.Println()
		printBoardPartition("Shared with you", session.Store().MemberBoards())
		return nil
	},
}

func printBoardPartition(heading string, boards []kanban.Board) {
	printer.Heading("%s\n", heading)
	if len(boards) == 0 {
		printer.Printf("  (none)\n")
		return
	}
	for _, b := range boards {
		printer.Printf("  %-12s %s\n", b.ID, b.Name)
	}
}

func init() {
	rootCmd.AddCommand(boardsCmd)
}
