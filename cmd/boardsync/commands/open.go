package commands

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"boardsync/internal/printer"
	"boardsync/pkg/kanban"
)

// openCmd opens one board, prints it, and streams live changes
var openCmd = &cobra.Command{
	Use:   "open <board-id>",
	Short: "Open a board and stream live changes",
	Long: `Loads a board's lists, cards and members, prints them in order, then keeps
the local replica connected and reports every change made by other
participants until interrupted with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		boardID := args[0]
		ctx := cmd.Context()

		evicted := make(chan string, 1)
		session, err := newSession(ctx,
			func(d kanban.Desync) {
				printer.Warning("replica out of sync on board %s, consider reopening\n", d.BoardID)
			},
			func(boardID string) {
				select {
				case evicted <- boardID:
				default:
				}
			})
		if err != nil {
			return err
		}
		defer session.Close()

		if err := session.OpenBoard(ctx, boardID); err != nil {
			return printer.Error(
				"Could not open board "+boardID,
				err.Error(),
				[]string{"Run 'boardsync boards' to see the boards you have access to"})
		}

		printBoard(session, boardID)
		printer.Println()
		printer.Info("Watching for live changes (Ctrl-C to stop)...\n")

		watchEvents(session)

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

		select {
		case <-interrupt:
			printer.Println()
			printer.Success("Closed board %s\n", boardID)
			return nil
		case id := <-evicted:
			return printer.Error(
				"Lost access to board "+id,
				"The board was deleted or you were removed from it.",
				nil)
		case <-ctx.Done():
			return ctx.Err()
		}
	},
}

func printBoard(session *kanban.Session, boardID string) {
	store := session.Store()
	board, ok := store.Board(boardID)
	if !ok {
		return
	}
	printer.Heading("%s\n", board.Name)
	for _, m := range store.MembersByBoard(boardID) {
		printer.Printf("  member: %s <%s> (%s)\n", m.Name, m.Email, m.Role)
	}
	printer.Println()
	for _, l := range store.ListsByBoard(boardID) {
		printer.Heading("  %s\n", l.Title)
		cards := store.CardsByList(l.ID)
		if len(cards) == 0 {
			printer.Printf("    (empty)\n")
			continue
		}
		for _, c := range cards {
			printer.Printf("    [%s] %s\n", c.ID, c.Title)
		}
	}
}

// watchEvents prints a line for every server-pushed change. The reconciler
// has already applied the event to the store by the time these fire, since
// it subscribed first.
func watchEvents(session *kanban.Session) {
	bus := session.Bus()
	for event, label := range map[string]string{
		kanban.EventListCreated:   "list created",
		kanban.EventListUpdated:   "list renamed",
		kanban.EventListMoved:     "list moved",
		kanban.EventListDeleted:   "list deleted",
		kanban.EventCardCreated:   "card created",
		kanban.EventCardUpdated:   "card updated",
		kanban.EventCardMoved:     "card moved",
		kanban.EventCardDeleted:   "card deleted",
		kanban.EventMemberAdded:   "member added",
		kanban.EventMemberRemoved: "member removed",
		kanban.EventMemberLeft:    "member left",
		kanban.EventBoardUpdated:  "board renamed",
	} {
		bus.Subscribe(event, func(json.RawMessage) {
			printer.Event("%s\n", label)
		})
	}
}

func init() {
	rootCmd.AddCommand(openCmd)
}
