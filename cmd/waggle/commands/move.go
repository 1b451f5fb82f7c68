package commands

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/waggleboard/waggle/internal/printer"
	boardsync "github.com/waggleboard/waggle/internal/sync"
)

var moveCmd = &cobra.Command{
	Use:   "move <task-id> <column-id>",
	Short: "Move a task to another column",
	Long: `Move a task to the end of another column.

The move is applied through the same local-first synchronizer the dashboard
uses: the new layout is committed immediately and only the changed columns
are written back. Other sessions pick the move up through the change stream.

Examples:
  # Move a task into the friday column
  waggle move 3f1c9a2e-... friday-column-id`,
	Args: cobra.ExactArgs(2),
	RunE: runMove,
}

func init() {
	rootCmd.AddCommand(moveCmd)
}

func runMove(cmd *cobra.Command, args []string) error {
	taskID, targetColumnID := args[0], args[1]

	ctx := context.Background()
	sess, err := joinWorkspace(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	layout, err := sess.client.LoadLayout(ctx)
	if err != nil {
		return fmt.Errorf("failed to load board layout: %w", err)
	}

	if !slices.Contains(layout.ColumnOrder, targetColumnID) {
		return printer.Error(
			"unknown column",
			fmt.Sprintf("Column %s does not exist in workspace '%s'", targetColumnID, sess.client.Workspace()),
			[]string{"List the board's columns to find the right ID"},
		)
	}

	sourceColumnID := ""
	for columnID, taskIDs := range layout.TaskOrder {
		if slices.Contains(taskIDs, taskID) {
			sourceColumnID = columnID
			break
		}
	}
	if sourceColumnID == "" {
		return printer.Error(
			"unknown task",
			fmt.Sprintf("Task %s is not on the board", taskID),
			[]string{"Check the task ID (archived tasks can't be moved)"},
		)
	}
	if sourceColumnID == targetColumnID {
		printer.Info("Task %s is already in column %s.\n", taskID, targetColumnID)
		return nil
	}

	task, err := sess.client.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}

	next := layout.Clone()
	next.TaskOrder[sourceColumnID] = slices.DeleteFunc(next.TaskOrder[sourceColumnID],
		func(id string) bool { return id == taskID })
	next.TaskOrder[targetColumnID] = append(next.TaskOrder[targetColumnID], taskID)

	task.ColumnID = targetColumnID

	s := boardsync.New(sess.client, printer.Notices{}, layout, boardsync.Options{})
	s.ApplyLayout(next)
	s.UpdateTask(*task)
	s.Flush()

	printer.Success("Moved task %s from %s to %s\n", taskID, sourceColumnID, targetColumnID)
	return nil
}
