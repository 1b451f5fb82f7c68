// Package sync implements the optimistic board synchronizer: local-first
// mutation of the ordered task layout, column-level diffing so persistence
// is bounded to what actually changed, and a suppression window that keeps
// self-caused change notifications from reloading over a fresh local edit.
package sync

import (
	"slices"
	"sort"

	"github.com/waggleboard/waggle/pkg/board"
)

// LayoutDiff describes what changed between two layouts, at column
// granularity. Persistence volume is O(changed columns), never O(all
// columns).
type LayoutDiff struct {
	// ColumnsReordered is true when the set or order of column keys changed.
	ColumnsReordered bool

	// ChangedColumns lists the columns whose task-id sequence changed in
	// length or order, sorted for determinism.
	ChangedColumns []string
}

// Empty reports whether the diff contains no changes at all.
func (d LayoutDiff) Empty() bool {
	return !d.ColumnsReordered && len(d.ChangedColumns) == 0
}

// DiffLayouts computes the minimal set of persistence calls needed to move
// the stored state from prev to next. Pure function; neither argument is
// mutated.
func DiffLayouts(prev, next board.Layout) LayoutDiff {
	var diff LayoutDiff

	if !slices.Equal(prev.ColumnOrder, next.ColumnOrder) {
		diff.ColumnsReordered = true
	}

	for columnID, nextIDs := range next.TaskOrder {
		prevIDs, existed := prev.TaskOrder[columnID]
		if !existed || !slices.Equal(prevIDs, nextIDs) {
			diff.ChangedColumns = append(diff.ChangedColumns, columnID)
		}
	}

	// A column dropped from the layout entirely also needs its stored
	// order cleared.
	for columnID := range prev.TaskOrder {
		if _, stillThere := next.TaskOrder[columnID]; !stillThere {
			diff.ChangedColumns = append(diff.ChangedColumns, columnID)
		}
	}

	sort.Strings(diff.ChangedColumns)
	return diff
}
