// Package board provides type-safe Go definitions and Redis schema patterns
// for a shared Waggle workspace.
//
// # Overview
//
// A workspace is the shared state system where all Waggle sessions (the
// synchronizer, presence broadcasters, gateway, CLI) interact via well-defined
// data structures stored in Redis. Durable state (tasks, columns, per-column
// task ordering) lives in Redis keys; ephemeral state (pointer positions,
// editing intent) travels over Redis Pub/Sub and is never persisted.
//
// # Core Concepts
//
// Tasks are the records shown as cards on the board. Each task belongs to
// exactly one column, and each column carries an explicit ordered list of the
// task IDs it contains. Order replacement is always whole-column: callers
// supply the complete new sequence rather than splicing in place, which keeps
// local and remote shapes structurally comparable.
//
// Events are the ephemeral presence messages (cursor movement, graceful
// leave, editing intent, stop-editing). Every client stamps events with its
// own session ID, and subscriptions filter out the subscriber's own events so
// broadcasters never see their own echoes.
//
// Change notifications are a separate, payload-free signal: every durable
// write publishes a short kind string ("task", "column", "order") so other
// sessions know something changed and can schedule a reload.
//
// # Multi-Workspace Support
//
// All Redis keys and Pub/Sub channels are namespaced by workspace name so
// multiple workspaces can safely coexist on a single Redis server.
//
// # Redis Schema
//
// Keys follow the pattern: waggle:{workspace}:{entity}:{id}
//
//	Tasks:         waggle:{workspace}:task:{task_id}
//	Columns:       waggle:{workspace}:column:{column_id}
//	Column index:  waggle:{workspace}:columns
//	Task ordering: waggle:{workspace}:order:{column_id}
//	Week marker:   waggle:{workspace}:archived:{monday}
//
// Pub/Sub channels:
//
//	Presence: waggle:{workspace}:presence_events
//	Changes:  waggle:{workspace}:change_events
package board
