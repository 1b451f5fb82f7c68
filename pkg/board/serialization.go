package board

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores records as string-to-string maps (hashes). Slice fields are
// JSON-encoded into single hash fields. This keeps individual fields
// queryable while allowing structured values where needed.

// TaskToHash converts a Task struct to a Redis hash format.
// The assignees slice is JSON-encoded.
func TaskToHash(t *Task) (map[string]interface{}, error) {
	assigneesJSON, err := json.Marshal(t.Assignees)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal assignees: %w", err)
	}

	hash := map[string]interface{}{
		"id":            t.ID,
		"column_id":     t.ColumnID,
		"title":         t.Title,
		"done":          strconv.FormatBool(t.Done),
		"archived":      strconv.FormatBool(t.Archived),
		"assignees":     string(assigneesJSON),
		"client_tag":    t.ClientTag,
		"created_at_ms": t.CreatedAtMs,
	}

	return hash, nil
}

// HashToTask converts a Redis hash to a Task struct.
func HashToTask(hash map[string]string) (*Task, error) {
	var assignees []string
	if assigneesJSON := hash["assignees"]; assigneesJSON != "" {
		if err := json.Unmarshal([]byte(assigneesJSON), &assignees); err != nil {
			return nil, fmt.Errorf("failed to unmarshal assignees: %w", err)
		}
	}

	// Ensure we have an empty slice instead of nil for consistency
	if assignees == nil {
		assignees = []string{}
	}

	done, _ := strconv.ParseBool(hash["done"])
	archived, _ := strconv.ParseBool(hash["archived"])
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	task := &Task{
		ID:          hash["id"],
		ColumnID:    hash["column_id"],
		Title:       hash["title"],
		Done:        done,
		Archived:    archived,
		Assignees:   assignees,
		ClientTag:   hash["client_tag"],
		CreatedAtMs: createdAtMs,
	}

	return task, nil
}

// ColumnToHash converts a Column struct to a Redis hash format.
func ColumnToHash(c *Column) map[string]interface{} {
	return map[string]interface{}{
		"id":       c.ID,
		"title":    c.Title,
		"kind":     string(c.Kind),
		"position": c.Position,
	}
}

// HashToColumn converts a Redis hash to a Column struct.
func HashToColumn(hash map[string]string) (*Column, error) {
	position, err := strconv.Atoi(hash["position"])
	if err != nil {
		return nil, fmt.Errorf("invalid position field: %w", err)
	}

	column := &Column{
		ID:       hash["id"],
		Title:    hash["title"],
		Kind:     ColumnKind(hash["kind"]),
		Position: position,
	}

	return column, nil
}
