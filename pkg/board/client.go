package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client provides workspace-scoped Redis operations for a Waggle board.
// All keys and channels are automatically namespaced with the workspace name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
//
// Every client carries a unique session ID. Presence events published through
// the client are stamped with it, and presence subscriptions drop events
// carrying the same session ID, so a publisher never receives its own
// broadcasts.
type Client struct {
	rdb       *redis.Client
	workspace string
	sessionID string
}

// NewClient creates a new board client for the specified workspace.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - workspace: workspace identifier (must not be empty)
//
// Returns an error if workspace is empty.
func NewClient(redisOpts *redis.Options, workspace string) (*Client, error) {
	if workspace == "" {
		return nil, fmt.Errorf("workspace name cannot be empty")
	}

	return &Client{
		rdb:       redis.NewClient(redisOpts),
		workspace: workspace,
		sessionID: uuid.New().String(),
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Workspace returns the workspace this client is scoped to.
func (c *Client) Workspace() string {
	return c.workspace
}

// SessionID returns this client's unique session identifier.
func (c *Client) SessionID() string {
	return c.sessionID
}

// publishChange publishes a change notification for durable-state writes.
// The payload is a short kind string; subscribers only learn that something
// changed, not what.
func (c *Client) publishChange(ctx context.Context, kind string) error {
	if err := c.rdb.Publish(ctx, ChangeChannel(c.workspace), kind).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// CreateTask writes a task record, appends its ID to its column's order
// list, and publishes a change event. Validates the task before writing.
func (c *Client) CreateTask(ctx context.Context, t *Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	hash, err := TaskToHash(t)
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, TaskKey(c.workspace, t.ID), hash)
	pipe.SAdd(ctx, TasksIndexKey(c.workspace), t.ID)
	pipe.RPush(ctx, ColumnOrderKey(c.workspace, t.ColumnID), t.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write task to Redis: %w", err)
	}

	return c.publishChange(ctx, "task")
}

// GetTask retrieves a task by ID.
// Returns (nil, redis.Nil) if the task doesn't exist. Use IsNotFound() to
// check for not-found errors.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	hashData, err := c.rdb.HGetAll(ctx, TaskKey(c.workspace, taskID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read task from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	task, err := HashToTask(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize task: %w", err)
	}

	return task, nil
}

// UpdateTask replaces an existing task record (full HSET replacement) and
// publishes a change event. Ordering moves are handled separately via
// ReplaceColumnOrder; UpdateTask only touches the record itself.
func (c *Client) UpdateTask(ctx context.Context, t *Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	hash, err := TaskToHash(t)
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}

	if err := c.rdb.HSet(ctx, TaskKey(c.workspace, t.ID), hash).Err(); err != nil {
		return fmt.Errorf("failed to update task in Redis: %w", err)
	}

	return c.publishChange(ctx, "task")
}

// DeleteTask removes a task record, drops it from its column's order list,
// and publishes a change event. Deleting a missing task is a no-op.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	task, err := c.GetTask(ctx, taskID)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return err
	}

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, TaskKey(c.workspace, taskID))
	pipe.SRem(ctx, TasksIndexKey(c.workspace), taskID)
	pipe.LRem(ctx, ColumnOrderKey(c.workspace, task.ColumnID), 0, taskID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete task from Redis: %w", err)
	}

	return c.publishChange(ctx, "task")
}

// CreateColumn writes a column record, adds it to the workspace column
// index, and publishes a change event.
func (c *Client) CreateColumn(ctx context.Context, col *Column) error {
	if err := col.Validate(); err != nil {
		return fmt.Errorf("invalid column: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, ColumnKey(c.workspace, col.ID), ColumnToHash(col))
	pipe.SAdd(ctx, ColumnsIndexKey(c.workspace), col.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write column to Redis: %w", err)
	}

	return c.publishChange(ctx, "column")
}

// GetColumn retrieves a column by ID.
// Returns (nil, redis.Nil) if the column doesn't exist.
func (c *Client) GetColumn(ctx context.Context, columnID string) (*Column, error) {
	hashData, err := c.rdb.HGetAll(ctx, ColumnKey(c.workspace, columnID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read column from Redis: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	column, err := HashToColumn(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize column: %w", err)
	}

	return column, nil
}

// ListColumns retrieves all columns in the workspace sorted by position.
// Returns an empty slice if the workspace has no columns.
func (c *Client) ListColumns(ctx context.Context) ([]*Column, error) {
	ids, err := c.rdb.SMembers(ctx, ColumnsIndexKey(c.workspace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}

	columns := make([]*Column, 0, len(ids))
	for _, id := range ids {
		column, err := c.GetColumn(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				// Index can briefly lead the records; skip
				continue
			}
			return nil, err
		}
		columns = append(columns, column)
	}

	sort.Slice(columns, func(i, j int) bool {
		if columns[i].Position != columns[j].Position {
			return columns[i].Position < columns[j].Position
		}
		return columns[i].ID < columns[j].ID
	})

	return columns, nil
}

// SetColumnPositions persists a new left-to-right column order: each column
// ID in the slice gets its index as position. Publishes a change event.
func (c *Client) SetColumnPositions(ctx context.Context, columnIDs []string) error {
	pipe := c.rdb.TxPipeline()
	for i, id := range columnIDs {
		pipe.HSet(ctx, ColumnKey(c.workspace, id), "position", i)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update column positions: %w", err)
	}

	return c.publishChange(ctx, "column")
}

// ReplaceColumnOrder replaces a column's ordered task-id list with the
// supplied sequence. The replacement is whole-column (DEL + RPUSH in one
// transaction) so the stored shape always matches what a client rendered.
// Publishes a change event.
func (c *Client) ReplaceColumnOrder(ctx context.Context, columnID string, taskIDs []string) error {
	key := ColumnOrderKey(c.workspace, columnID)

	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(taskIDs) > 0 {
		args := make([]interface{}, len(taskIDs))
		for i, id := range taskIDs {
			args[i] = id
		}
		pipe.RPush(ctx, key, args...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to replace column order: %w", err)
	}

	return c.publishChange(ctx, "order")
}

// GetColumnOrder retrieves a column's ordered task-id list.
// Returns an empty slice for an empty or missing column.
func (c *Client) GetColumnOrder(ctx context.Context, columnID string) ([]string, error) {
	taskIDs, err := c.rdb.LRange(ctx, ColumnOrderKey(c.workspace, columnID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read column order: %w", err)
	}
	return taskIDs, nil
}

// LoadLayout fetches the full board layout: column order by position plus
// every column's task-id sequence. This is the reload path the synchronizer
// uses to reconcile with remote changes.
func (c *Client) LoadLayout(ctx context.Context) (Layout, error) {
	columns, err := c.ListColumns(ctx)
	if err != nil {
		return Layout{}, err
	}

	layout := Layout{
		ColumnOrder: make([]string, 0, len(columns)),
		TaskOrder:   make(map[string][]string, len(columns)),
	}

	for _, column := range columns {
		taskIDs, err := c.GetColumnOrder(ctx, column.ID)
		if err != nil {
			return Layout{}, err
		}
		layout.ColumnOrder = append(layout.ColumnOrder, column.ID)
		layout.TaskOrder[column.ID] = taskIDs
	}

	return layout, nil
}

// PublishPresence publishes an ephemeral presence event to the workspace's
// presence channel. Events without a session ID are stamped with this
// client's. Validates the event before publishing.
func (c *Client) PublishPresence(ctx context.Context, ev Event) error {
	if ev.SessionID == "" {
		ev.SessionID = c.sessionID
	}

	if err := ev.Validate(); err != nil {
		return fmt.Errorf("invalid presence event: %w", err)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal presence event: %w", err)
	}

	if err := c.rdb.Publish(ctx, PresenceChannel(c.workspace), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish presence event: %w", err)
	}

	return nil
}

// PresenceSubscription represents an active Pub/Sub subscription to a
// workspace's presence events. Caller must call Close() when done.
type PresenceSubscription struct {
	events <-chan Event
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of presence events. The subscriber's own
// events are filtered out. The channel is closed when the subscription is
// closed or the context is cancelled.
func (s *PresenceSubscription) Events() <-chan Event {
	return s.events
}

// Errors returns the channel of subscription errors. Errors include JSON
// unmarshal failures; the subscription continues after errors - malformed
// messages are skipped.
func (s *PresenceSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *PresenceSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribePresence subscribes to presence events for this workspace,
// filtering out events published by this client's own session.
// Caller must call subscription.Close() when done. Context cancellation
// also stops the subscription.
//
// Events are delivered on a buffered channel (size 32). Redis Pub/Sub is
// at-most-once: a slow subscriber may miss events, which presence tolerates
// because every update is an insert-or-replace by key.
func (c *Client) SubscribePresence(ctx context.Context) (*PresenceSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, PresenceChannel(c.workspace))

	eventsChan := make(chan Event, 32)
	errorsChan := make(chan error, 8)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal presence event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				// Self-filter: the channel layer guarantees a publisher
				// never observes its own broadcasts.
				if ev.SessionID == c.sessionID {
					continue
				}

				select {
				case eventsChan <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &PresenceSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// ChangeSubscription represents an active Pub/Sub subscription to a
// workspace's change notifications. Caller must call Close() when done.
type ChangeSubscription struct {
	events <-chan string
	cancel func()
	once   sync.Once
}

// Events returns the channel of change kinds ("task", "column", "order").
func (s *ChangeSubscription) Events() <-chan string {
	return s.events
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
func (s *ChangeSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeChanges subscribes to durable-state change notifications for
// this workspace. Unlike presence, the subscriber's own writes ARE
// delivered - reconciling with self-caused echoes is the synchronizer's
// job (suppression window), not the channel's.
func (c *Client) SubscribeChanges(ctx context.Context) (*ChangeSubscription, error) {
	pubsub := c.rdb.Subscribe(ctx, ChangeChannel(c.workspace))

	eventsChan := make(chan string, 32)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				select {
				case eventsChan <- msg.Payload:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &ChangeSubscription{
		events: eventsChan,
		cancel: cancelFunc,
	}, nil
}

// ArchiveWeek runs the weekly transition for the week starting at the given
// Monday (ISO date string, e.g. "2026-08-24"): completed tasks are marked
// archived and dropped from their column order lists; incomplete tasks are
// left in place to carry over.
//
// The operation is idempotent per Monday: a marker key is claimed with
// SETNX before any work, so concurrent or repeated calls for an already
// archived week return zero counts and no error. If the transition fails
// after the claim the marker is released again, keeping the failed week
// retryable; per-task archiving is itself idempotent, so a retry that
// re-scans partially archived state is safe.
func (c *Client) ArchiveWeek(ctx context.Context, monday string) (TransitionResult, error) {
	if monday == "" {
		return TransitionResult{}, fmt.Errorf("monday date cannot be empty")
	}

	claimed, err := c.rdb.SetNX(ctx, ArchiveMarkerKey(c.workspace, monday), time.Now().UTC().Format(time.RFC3339), 0).Result()
	if err != nil {
		return TransitionResult{}, fmt.Errorf("failed to claim archive marker: %w", err)
	}
	if !claimed {
		// Another session already transitioned this week; safe no-op.
		return TransitionResult{}, nil
	}

	taskIDs, err := c.rdb.SMembers(ctx, TasksIndexKey(c.workspace)).Result()
	if err != nil {
		c.releaseArchiveMarker(monday)
		return TransitionResult{}, fmt.Errorf("failed to list tasks for transition: %w", err)
	}

	var result TransitionResult
	for _, taskID := range taskIDs {
		task, err := c.GetTask(ctx, taskID)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			c.releaseArchiveMarker(monday)
			return result, err
		}

		if task.Archived {
			continue
		}

		if task.Done {
			pipe := c.rdb.TxPipeline()
			pipe.HSet(ctx, TaskKey(c.workspace, task.ID), "archived", "true")
			pipe.LRem(ctx, ColumnOrderKey(c.workspace, task.ColumnID), 0, task.ID)
			if _, err := pipe.Exec(ctx); err != nil {
				c.releaseArchiveMarker(monday)
				return result, fmt.Errorf("failed to archive task %s: %w", task.ID, err)
			}
			result.ArchivedCount++
		} else {
			result.CarriedOverCount++
		}
	}

	if err := c.publishChange(ctx, "task"); err != nil {
		// The transition itself succeeded; a lost notification self-heals
		// on the next reload.
		log.Printf("[Board] transition change notification failed: %v", err)
	}

	return result, nil
}

// releaseArchiveMarker drops the per-week idempotency marker after a failed
// transition so the next attempt can claim it again. Runs on a fresh context:
// the failure may have been the caller's context expiring. If the delete
// itself fails the marker stays claimed and the week is stuck until an
// operator removes the key, so the failure is logged loudly.
func (c *Client) releaseArchiveMarker(monday string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.rdb.Del(ctx, ArchiveMarkerKey(c.workspace, monday)).Err(); err != nil {
		log.Printf("[Board] failed to release archive marker for %s after failed transition: %v", monday, err)
	}
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check if GetTask or GetColumn returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
