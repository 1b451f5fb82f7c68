package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/waggleboard/waggle/pkg/board"
)

func weekLayout() board.Layout {
	return board.Layout{
		ColumnOrder: []string{"mon", "tue", "wed"},
		TaskOrder: map[string][]string{
			"mon": {"t1", "t2"},
			"tue": {"t3"},
			"wed": {},
		},
	}
}

func TestDiffLayouts(t *testing.T) {
	t.Run("identical layouts produce an empty diff", func(t *testing.T) {
		prev := weekLayout()
		diff := DiffLayouts(prev, prev.Clone())
		assert.True(t, diff.Empty())
	})

	t.Run("reorder within one column touches only that column", func(t *testing.T) {
		prev := weekLayout()
		next := prev.Clone()
		next.TaskOrder["mon"] = []string{"t2", "t1"}

		diff := DiffLayouts(prev, next)
		assert.False(t, diff.ColumnsReordered)
		assert.Equal(t, []string{"mon"}, diff.ChangedColumns)
	})

	t.Run("cross-column move touches exactly the two columns", func(t *testing.T) {
		prev := weekLayout()
		next := prev.Clone()
		next.TaskOrder["mon"] = []string{"t1"}
		next.TaskOrder["tue"] = []string{"t3", "t2"}

		diff := DiffLayouts(prev, next)
		assert.False(t, diff.ColumnsReordered)
		assert.Equal(t, []string{"mon", "tue"}, diff.ChangedColumns)
	})

	t.Run("column reorder alone flags no task changes", func(t *testing.T) {
		prev := weekLayout()
		next := prev.Clone()
		next.ColumnOrder = []string{"wed", "mon", "tue"}

		diff := DiffLayouts(prev, next)
		assert.True(t, diff.ColumnsReordered)
		assert.Empty(t, diff.ChangedColumns)
	})

	t.Run("new column counts as changed", func(t *testing.T) {
		prev := weekLayout()
		next := prev.Clone()
		next.ColumnOrder = append(next.ColumnOrder, "thu")
		next.TaskOrder["thu"] = []string{"t9"}

		diff := DiffLayouts(prev, next)
		assert.True(t, diff.ColumnsReordered)
		assert.Equal(t, []string{"thu"}, diff.ChangedColumns)
	})

	t.Run("dropped column still needs its stored order cleared", func(t *testing.T) {
		prev := weekLayout()
		next := prev.Clone()
		next.ColumnOrder = []string{"mon", "tue"}
		delete(next.TaskOrder, "wed")

		diff := DiffLayouts(prev, next)
		assert.True(t, diff.ColumnsReordered)
		assert.Equal(t, []string{"wed"}, diff.ChangedColumns)
	})

	t.Run("does not mutate its arguments", func(t *testing.T) {
		prev := weekLayout()
		next := weekLayout()
		next.TaskOrder["mon"] = []string{"t2", "t1"}

		DiffLayouts(prev, next)
		assert.Equal(t, []string{"t1", "t2"}, prev.TaskOrder["mon"])
		assert.Equal(t, []string{"t2", "t1"}, next.TaskOrder["mon"])
	})
}
