package board

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTaskValidate(t *testing.T) {
	valid := Task{
		ID:       uuid.New().String(),
		ColumnID: uuid.New().String(),
		Title:    "Ship the release notes",
	}

	t.Run("accepts valid task", func(t *testing.T) {
		task := valid
		assert.NoError(t, task.Validate())
	})

	t.Run("rejects non-UUID id", func(t *testing.T) {
		task := valid
		task.ID = "task-1"
		assert.Error(t, task.Validate())
	})

	t.Run("rejects empty column", func(t *testing.T) {
		task := valid
		task.ColumnID = ""
		assert.Error(t, task.Validate())
	})

	t.Run("rejects empty title", func(t *testing.T) {
		task := valid
		task.Title = ""
		assert.Error(t, task.Validate())
	})
}

func TestColumnValidate(t *testing.T) {
	valid := Column{
		ID:    uuid.New().String(),
		Title: "Wednesday",
		Kind:  ColumnKindDay,
	}

	t.Run("accepts both kinds", func(t *testing.T) {
		col := valid
		assert.NoError(t, col.Validate())
		col.Kind = ColumnKindLane
		assert.NoError(t, col.Validate())
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		col := valid
		col.Kind = "swimlane"
		assert.Error(t, col.Validate())
	})

	t.Run("rejects negative position", func(t *testing.T) {
		col := valid
		col.Position = -1
		assert.Error(t, col.Validate())
	})
}

func TestIdentityValidate(t *testing.T) {
	assert.NoError(t, (&Identity{UserID: "u1", Name: "Maya"}).Validate())
	assert.Error(t, (&Identity{Name: "Maya"}).Validate())
	assert.Error(t, (&Identity{UserID: "u1"}).Validate())
}

func TestLayoutClone(t *testing.T) {
	original := Layout{
		ColumnOrder: []string{"mon", "tue"},
		TaskOrder: map[string][]string{
			"mon": {"t1", "t2"},
			"tue": {"t3"},
		},
	}

	cloned := original.Clone()
	assert.True(t, original.Equal(cloned))

	// Mutating the clone must not leak into the original.
	cloned.TaskOrder["mon"][0] = "t9"
	cloned.ColumnOrder[0] = "fri"
	assert.Equal(t, "t1", original.TaskOrder["mon"][0])
	assert.Equal(t, "mon", original.ColumnOrder[0])
}

func TestLayoutEqual(t *testing.T) {
	base := Layout{
		ColumnOrder: []string{"mon"},
		TaskOrder:   map[string][]string{"mon": {"t1", "t2"}},
	}

	t.Run("equal to its clone", func(t *testing.T) {
		assert.True(t, base.Equal(base.Clone()))
	})

	t.Run("detects reordered tasks", func(t *testing.T) {
		other := base.Clone()
		other.TaskOrder["mon"] = []string{"t2", "t1"}
		assert.False(t, base.Equal(other))
	})

	t.Run("detects extra column", func(t *testing.T) {
		other := base.Clone()
		other.TaskOrder["tue"] = []string{}
		assert.False(t, base.Equal(other))
	})

	t.Run("detects different column order", func(t *testing.T) {
		other := base.Clone()
		other.ColumnOrder = []string{"tue"}
		assert.False(t, base.Equal(other))
	})
}
