package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/waggleboard/waggle/internal/presence"
	"github.com/waggleboard/waggle/internal/printer"
)

var editCmd = &cobra.Command{
	Use:   "edit <card-id>",
	Short: "Announce editing intent for a card",
	Long: `Announce that you are editing a card until interrupted.

Publishes an editing-intent broadcast for the given card and keeps it alive
with heartbeats. Useful for exercising presence handling end to end: other
sessions should show you on the card while this command runs, and drop you
when it exits (or shortly after, if it is killed).

Examples:
  # Hold editing intent on a card until Ctrl+C
  waggle edit task-42`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	cardID := args[0]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := joinWorkspace(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	broadcaster := presence.NewEditingBroadcaster(sess.client, sess.identity(), presence.EditingOptions{})
	defer broadcaster.Close()

	go broadcaster.Run(ctx)

	broadcaster.BroadcastEditing(cardID)
	printer.Success("Editing card %s as %s (press Ctrl+C to stop)\n", cardID, sess.cfg.User.Name)

	<-ctx.Done()

	// Close (via defer) publishes the final stop-editing.
	printer.Info("\nStopped editing.\n")
	return nil
}
