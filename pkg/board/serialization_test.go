package board

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskHashRoundTrip(t *testing.T) {
	task := &Task{
		ID:          uuid.New().String(),
		ColumnID:    uuid.New().String(),
		Title:       "Refill the coffee machine",
		Done:        true,
		Archived:    false,
		Assignees:   []string{"user-1", "user-2"},
		ClientTag:   "office",
		CreatedAtMs: 1756166400000,
	}

	hash, err := TaskToHash(task)
	require.NoError(t, err)
	assert.Equal(t, "true", hash["done"])
	assert.Equal(t, "false", hash["archived"])
	assert.JSONEq(t, `["user-1","user-2"]`, hash["assignees"].(string))

	// Simulate what HGetAll hands back: everything is a string.
	stringHash := map[string]string{
		"id":            task.ID,
		"column_id":     task.ColumnID,
		"title":         task.Title,
		"done":          "true",
		"archived":      "false",
		"assignees":     hash["assignees"].(string),
		"client_tag":    "office",
		"created_at_ms": "1756166400000",
	}

	restored, err := HashToTask(stringHash)
	require.NoError(t, err)
	assert.Equal(t, task, restored)
}

func TestHashToTaskDefaults(t *testing.T) {
	t.Run("missing assignees become empty slice", func(t *testing.T) {
		task, err := HashToTask(map[string]string{"id": "x", "title": "y"})
		require.NoError(t, err)
		assert.NotNil(t, task.Assignees)
		assert.Empty(t, task.Assignees)
	})

	t.Run("malformed assignees is an error", func(t *testing.T) {
		_, err := HashToTask(map[string]string{"assignees": "{not json"})
		assert.Error(t, err)
	})
}

func TestColumnHashRoundTrip(t *testing.T) {
	col := &Column{
		ID:       uuid.New().String(),
		Title:    "Thursday",
		Kind:     ColumnKindDay,
		Position: 3,
	}

	hash := ColumnToHash(col)
	restored, err := HashToColumn(map[string]string{
		"id":       col.ID,
		"title":    col.Title,
		"kind":     hash["kind"].(string),
		"position": "3",
	})
	require.NoError(t, err)
	assert.Equal(t, col, restored)
}

func TestHashToColumnBadPosition(t *testing.T) {
	_, err := HashToColumn(map[string]string{"id": "x", "position": "leftmost"})
	assert.Error(t, err)
}
