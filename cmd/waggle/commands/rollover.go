package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/waggleboard/waggle/internal/printer"
	"github.com/waggleboard/waggle/internal/rollover"
)

var rolloverIfDue bool

var rolloverCmd = &cobra.Command{
	Use:   "rollover",
	Short: "Run the weekly transition now",
	Long: `Run the weekly transition for the current week.

Completed tasks are archived and removed from their columns; incomplete tasks
carry over to the next week. The transition is idempotent per week: if it
already ran (from this host or any other), this command is a no-op.

With --if-due the transition only runs once the configured trigger day and
hour have passed, matching what the background watcher would do.

Examples:
  # Force the transition now
  waggle rollover

  # Run only if the scheduled trigger has passed
  waggle rollover --if-due`,
	RunE: runRollover,
}

func init() {
	rolloverCmd.Flags().BoolVar(&rolloverIfDue, "if-due", false, "Only transition if the scheduled day and hour have passed")
	rootCmd.AddCommand(rolloverCmd)
}

func runRollover(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	sess, err := joinWorkspace(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	schedule := sess.schedule()
	now := time.Now()

	if rolloverIfDue && !rollover.Eligible(now, schedule) {
		printer.Info("Not due yet: transition is scheduled for %s at %02d:00.\n",
			schedule.Weekday, schedule.Hour)
		return nil
	}

	engine := rollover.New(sess.client, sess.markers(), schedule, rollover.Options{})

	result, err := engine.TransitionToNextWeek(ctx)
	if err != nil {
		return printer.Error(
			"week transition failed",
			err.Error(),
			[]string{"Check the Redis connection and retry; the transition is safe to re-run"},
		)
	}

	if result.ArchivedCount == 0 && result.CarriedOverCount == 0 {
		printer.Info("Week %s already transitioned, nothing to do.\n", rollover.MondayOf(now))
		return nil
	}

	printer.Success("Transitioned week %s: %d archived, %d carried over.\n",
		rollover.MondayOf(now), result.ArchivedCount, result.CarriedOverCount)
	printer.Info("Board now shows the week of %s.\n", engine.DisplayMonday(now))
	return nil
}
