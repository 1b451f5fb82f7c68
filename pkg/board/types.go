package board

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Task represents a single card on the board. A task belongs to exactly one
// column at a time; its position within that column is tracked by the
// column's order list, not by the task record itself.
type Task struct {
	ID          string   `json:"id"`           // UUID - unique identifier for this task
	ColumnID    string   `json:"column_id"`    // Column the task currently lives in
	Title       string   `json:"title"`        // Display title
	Done        bool     `json:"done"`         // Completion flag
	Archived    bool     `json:"archived"`     // Set by the weekly transition
	Assignees   []string `json:"assignees"`    // User IDs assigned to this task
	ClientTag   string   `json:"client_tag"`   // Optional client/project label
	CreatedAtMs int64    `json:"created_at_ms"` // Unix timestamp in milliseconds
}

// ColumnKind distinguishes the two board layouts: weekday columns on the
// weekly view, free-form lanes on the kanban view. Both follow the same
// ordering and sync rules.
type ColumnKind string

const (
	// ColumnKindDay is a calendar-day column on the weekly board
	ColumnKindDay ColumnKind = "day"

	// ColumnKindLane is a free-form lane on a kanban board
	ColumnKindLane ColumnKind = "lane"
)

// Column represents one ordered lane of tasks.
type Column struct {
	ID       string     `json:"id"`       // UUID - unique identifier for this column
	Title    string     `json:"title"`    // Display title
	Kind     ColumnKind `json:"kind"`     // day or lane
	Position int        `json:"position"` // Left-to-right position on the board
}

// Layout is the ordered, column-partitioned task-id structure a board view
// renders from. It is the unit the synchronizer diffs and replaces: after a
// drag gesture the caller hands over a complete new Layout rather than a
// partial edit.
type Layout struct {
	ColumnOrder []string            `json:"column_order"` // Column IDs, left to right
	TaskOrder   map[string][]string `json:"task_order"`   // columnID → ordered task IDs
}

// Cursor is the ephemeral pointer state of one remote user. Never persisted.
type Cursor struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Color    string `json:"color"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Page     string `json:"page"`
}

// Editing is the ephemeral editing-intent state of one remote user: which
// card they currently have open for inline editing. Never persisted.
type Editing struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Color    string `json:"color"`
	Avatar   string `json:"avatar,omitempty"`
	CardID   string `json:"card_id"`
}

// Identity carries the local user's display metadata. Broadcasters take an
// Identity as an explicit constructor parameter rather than reading ambient
// session state.
type Identity struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Color    string `json:"color"`
	Avatar   string `json:"avatar,omitempty"`
}

// TransitionResult reports what a weekly transition did: completed tasks are
// archived, incomplete ones carry over to the next week.
type TransitionResult struct {
	ArchivedCount    int `json:"archived_count"`
	CarriedOverCount int `json:"carried_over_count"`
}

// Validate checks if the Task has valid field values.
func (t *Task) Validate() error {
	if !isValidUUID(t.ID) {
		return fmt.Errorf("invalid task ID: not a valid UUID")
	}

	if t.ColumnID == "" {
		return fmt.Errorf("task column_id cannot be empty")
	}

	if t.Title == "" {
		return fmt.Errorf("task title cannot be empty")
	}

	return nil
}

// Validate checks if the Column has valid field values.
func (c *Column) Validate() error {
	if !isValidUUID(c.ID) {
		return fmt.Errorf("invalid column ID: not a valid UUID")
	}

	if c.Title == "" {
		return fmt.Errorf("column title cannot be empty")
	}

	if err := c.Kind.Validate(); err != nil {
		return fmt.Errorf("invalid column kind: %w", err)
	}

	if c.Position < 0 {
		return fmt.Errorf("column position must be >= 0, got %d", c.Position)
	}

	return nil
}

// Validate checks if the ColumnKind is a valid enum value.
func (k ColumnKind) Validate() error {
	switch k {
	case ColumnKindDay, ColumnKindLane:
		return nil
	default:
		return fmt.Errorf("unknown column kind: %q", k)
	}
}

// Validate checks that the Identity can be broadcast: a user ID and enough
// display metadata for remote rendering.
func (id *Identity) Validate() error {
	if id.UserID == "" {
		return fmt.Errorf("identity user_id cannot be empty")
	}

	if id.Name == "" {
		return fmt.Errorf("identity name cannot be empty")
	}

	return nil
}

// Clone returns a deep copy of the layout. Mutating the copy never affects
// the original.
func (l Layout) Clone() Layout {
	cloned := Layout{
		ColumnOrder: slices.Clone(l.ColumnOrder),
		TaskOrder:   make(map[string][]string, len(l.TaskOrder)),
	}
	for columnID, taskIDs := range l.TaskOrder {
		cloned.TaskOrder[columnID] = slices.Clone(taskIDs)
	}
	return cloned
}

// Equal reports whether two layouts have identical column order and
// identical per-column task sequences.
func (l Layout) Equal(other Layout) bool {
	if !slices.Equal(l.ColumnOrder, other.ColumnOrder) {
		return false
	}

	if len(l.TaskOrder) != len(other.TaskOrder) {
		return false
	}

	for columnID, taskIDs := range l.TaskOrder {
		otherIDs, ok := other.TaskOrder[columnID]
		if !ok || !slices.Equal(taskIDs, otherIDs) {
			return false
		}
	}

	return true
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
