package board

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by workspace name so
// multiple workspaces can safely coexist on a single Redis server.
//
// Key pattern: waggle:{workspace}:{entity}:{id}
// Channel pattern: waggle:{workspace}:{event_type}_events

// TaskKey returns the Redis key for a task record.
// Pattern: waggle:{workspace}:task:{task_id}
func TaskKey(workspace, taskID string) string {
	return fmt.Sprintf("waggle:%s:task:%s", workspace, taskID)
}

// ColumnKey returns the Redis key for a column record.
// Pattern: waggle:{workspace}:column:{column_id}
func ColumnKey(workspace, columnID string) string {
	return fmt.Sprintf("waggle:%s:column:%s", workspace, columnID)
}

// ColumnsIndexKey returns the Redis key for the set of column IDs in a
// workspace. Pattern: waggle:{workspace}:columns
func ColumnsIndexKey(workspace string) string {
	return fmt.Sprintf("waggle:%s:columns", workspace)
}

// ColumnOrderKey returns the Redis key for a column's ordered task-id list.
// Pattern: waggle:{workspace}:order:{column_id}
func ColumnOrderKey(workspace, columnID string) string {
	return fmt.Sprintf("waggle:%s:order:%s", workspace, columnID)
}

// TasksIndexKey returns the Redis key for the set of task IDs in a
// workspace. Used by the weekly transition to scan all tasks.
// Pattern: waggle:{workspace}:tasks
func TasksIndexKey(workspace string) string {
	return fmt.Sprintf("waggle:%s:tasks", workspace)
}

// ArchiveMarkerKey returns the Redis key marking that the weekly transition
// already ran for the week starting at the given Monday (ISO date string).
// Pattern: waggle:{workspace}:archived:{monday}
func ArchiveMarkerKey(workspace, monday string) string {
	return fmt.Sprintf("waggle:%s:archived:%s", workspace, monday)
}

// PresenceChannel returns the Pub/Sub channel name for ephemeral presence
// events (cursor, leave, editing, stop-editing).
// Pattern: waggle:{workspace}:presence_events
func PresenceChannel(workspace string) string {
	return fmt.Sprintf("waggle:%s:presence_events", workspace)
}

// ChangeChannel returns the Pub/Sub channel name for durable-state change
// notifications. The payload is a short kind string with no further
// semantics beyond "something changed".
// Pattern: waggle:{workspace}:change_events
func ChangeChannel(workspace string) string {
	return fmt.Sprintf("waggle:%s:change_events", workspace)
}
