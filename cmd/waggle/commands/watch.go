package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/waggleboard/waggle/internal/printer"
	"github.com/waggleboard/waggle/internal/rollover"
	"github.com/waggleboard/waggle/pkg/board"
)

var watchOutputFormat string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor real-time workspace activity",
	Long: `Monitor real-time collaboration activity in a workspace.

Streams cursor movements, editing intent, graceful leaves, and durable-state
change notifications as they occur, and runs the weekly transition watcher in
the background so the board rolls over on schedule while someone is watching.

Output Formats:
  default - Human-readable output with timestamps
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Watch the configured workspace
  waggle watch

  # Watch a different workspace
  waggle watch --workspace standup

  # Export events as JSON
  waggle watch --output=json > events.jsonl`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchOutputFormat != "default" && watchOutputFormat != "json" {
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := joinWorkspace(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	presence, err := sess.client.SubscribePresence(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to presence: %w", err)
	}
	defer presence.Close()

	changes, err := sess.client.SubscribeChanges(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to changes: %w", err)
	}
	defer changes.Close()

	engine := rollover.New(sess.client, sess.markers(), sess.schedule(), rollover.Options{})
	go engine.Run(ctx)

	if watchOutputFormat == "default" {
		printer.Success("Watching workspace '%s' (press Ctrl+C to stop)\n", sess.client.Workspace())
		printer.Info("Current week: %s\n\n", engine.DisplayMonday(time.Now()))
	}

	for {
		select {
		case <-ctx.Done():
			if watchOutputFormat == "default" {
				printer.Info("\nStopped watching.\n")
			}
			return nil

		case ev, ok := <-presence.Events():
			if !ok {
				return nil
			}
			printPresenceEvent(ev)

		case err, ok := <-presence.Errors():
			if ok && watchOutputFormat == "default" {
				printer.Warning("presence stream error: %v\n", err)
			}

		case kind, ok := <-changes.Events():
			if !ok {
				return nil
			}
			printChange(kind)
		}
	}
}

// printPresenceEvent renders one presence event in the selected format.
func printPresenceEvent(ev board.Event) {
	if watchOutputFormat == "json" {
		printJSON("presence", ev)
		return
	}

	ts := time.Now().Format("15:04:05")
	switch ev.Type {
	case board.EventTypeCursor:
		// A raw publisher on the channel can omit the payload; don't let a
		// malformed event kill the watcher.
		if ev.Cursor == nil {
			printer.Printf("[%s] ❓ cursor event without payload from %s\n", ts, ev.UserID)
			return
		}
		printer.Printf("[%s] 🖱️  %s moved to (%d, %d) on %s\n",
			ts, ev.Cursor.Name, ev.Cursor.X, ev.Cursor.Y, ev.Cursor.Page)
	case board.EventTypeEditing:
		if ev.Editing == nil {
			printer.Printf("[%s] ❓ editing event without payload from %s\n", ts, ev.UserID)
			return
		}
		printer.Printf("[%s] ✏️  %s is editing card %s\n",
			ts, ev.Editing.Name, ev.Editing.CardID)
	case board.EventTypeStopEditing:
		printer.Printf("[%s] ✅ %s stopped editing\n", ts, ev.UserID)
	case board.EventTypeLeave:
		printer.Printf("[%s] 👋 %s left\n", ts, ev.UserID)
	default:
		printer.Printf("[%s] ❓ unknown event type: %s\n", ts, ev.Type)
	}
}

// printChange renders one durable-state change notification.
func printChange(kind string) {
	if watchOutputFormat == "json" {
		printJSON("change", map[string]string{"kind": kind})
		return
	}
	printer.Printf("[%s] 📋 board changed (%s)\n", time.Now().Format("15:04:05"), kind)
}

// printJSON emits one line-delimited JSON record.
func printJSON(stream string, payload any) {
	record := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"stream":    stream,
		"event":     payload,
	}
	data, err := json.Marshal(record)
	if err != nil {
		printer.Warning("failed to marshal event: %v\n", err)
		return
	}
	printer.Println(string(data))
}
