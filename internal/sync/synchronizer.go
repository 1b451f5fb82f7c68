package sync

import (
	"context"
	"encoding/json"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/waggleboard/waggle/pkg/board"
)

// Store is the persistence surface the synchronizer writes through.
// *board.Client satisfies it; tests substitute recording fakes.
type Store interface {
	ReplaceColumnOrder(ctx context.Context, columnID string, taskIDs []string) error
	SetColumnPositions(ctx context.Context, columnIDs []string) error
	CreateTask(ctx context.Context, t *board.Task) error
	UpdateTask(ctx context.Context, t *board.Task) error
	DeleteTask(ctx context.Context, taskID string) error
	LoadLayout(ctx context.Context) (board.Layout, error)
}

// Notifier surfaces persistence failures to the user without blocking or
// rolling back the optimistic edit (unless the operation defines a cheap
// rollback). The CLI backs this with the printer.
type Notifier interface {
	Notify(format string, args ...any)
}

// Options tunes the synchronizer's timing heuristics.
type Options struct {
	// SuppressFor is how long remote change notifications are ignored
	// after a local mutation dispatches its writes. The window starts at
	// dispatch, not completion - a heuristic sized to outlast the usual
	// round trip plus the notifier's debounce, not a guarantee. Defaults
	// to DefaultSuppressFor.
	SuppressFor time.Duration

	// ReloadDebounce batches bursts of change notifications into one
	// reload. Defaults to DefaultReloadDebounce.
	ReloadDebounce time.Duration
}

const (
	// DefaultSuppressFor is the default remote-echo suppression window.
	DefaultSuppressFor = 2 * time.Second

	// DefaultReloadDebounce is the default change-notification debounce.
	DefaultReloadDebounce = 500 * time.Millisecond

	// persistTimeout bounds each fire-and-forget persistence call.
	persistTimeout = 10 * time.Second
)

func (o *Options) applyDefaults() {
	if o.SuppressFor <= 0 {
		o.SuppressFor = DefaultSuppressFor
	}
	if o.ReloadDebounce <= 0 {
		o.ReloadDebounce = DefaultReloadDebounce
	}
}

// Synchronizer owns the board layout for one workspace view. Local
// mutations are applied synchronously - the caller's state is committed
// before any network round trip starts - then persisted asynchronously,
// column by column, only for the columns that actually changed.
type Synchronizer struct {
	store    Store
	notifier Notifier
	opts     Options

	mu            sync.Mutex
	layout        board.Layout
	tasks         map[string]board.Task
	suppressed    bool
	suppressTimer *time.Timer

	persists sync.WaitGroup
}

// New creates a synchronizer seeded with an initial layout (typically from
// Store.LoadLayout at page load).
func New(store Store, notifier Notifier, initial board.Layout, opts Options) *Synchronizer {
	opts.applyDefaults()
	return &Synchronizer{
		store:    store,
		notifier: notifier,
		opts:     opts,
		layout:   initial.Clone(),
		tasks:    make(map[string]board.Task),
	}
}

// Layout returns a snapshot of the current local layout.
func (s *Synchronizer) Layout() board.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout.Clone()
}

// Task returns the locally known record for a task ID.
func (s *Synchronizer) Task(id string) (board.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Suppressed reports whether remote change notifications are currently
// being ignored.
func (s *Synchronizer) Suppressed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suppressed
}

// ApplyLayout commits the full post-gesture layout locally, synchronously
// and unconditionally - the view never sees the previous structure again -
// then dispatches one concurrent persistence call per changed column.
// Callers are never blocked on network completion.
func (s *Synchronizer) ApplyLayout(next board.Layout) {
	s.mu.Lock()
	prev := s.layout
	s.layout = next.Clone()
	s.suppressLocked()
	s.mu.Unlock()

	diff := DiffLayouts(prev, next)
	if diff.Empty() {
		return
	}

	s.logEvent("layout_applied", map[string]interface{}{
		"changed_columns":   diff.ChangedColumns,
		"columns_reordered": diff.ColumnsReordered,
	})

	if diff.ColumnsReordered {
		columnIDs := slices.Clone(next.ColumnOrder)
		s.persists.Add(1)
		go func() {
			defer s.persists.Done()
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := s.store.SetColumnPositions(ctx, columnIDs); err != nil {
				log.Printf("[Synchronizer] column reorder persistence failed: %v", err)
				s.notifier.Notify("Couldn't save the new column order - it will be retried on the next change")
			}
		}()
	}

	for _, columnID := range diff.ChangedColumns {
		columnID := columnID
		taskIDs := slices.Clone(next.TaskOrder[columnID])
		s.persists.Add(1)
		go func() {
			defer s.persists.Done()
			ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
			defer cancel()
			if err := s.store.ReplaceColumnOrder(ctx, columnID, taskIDs); err != nil {
				log.Printf("[Synchronizer] order persistence failed for column %s: %v", columnID, err)
				s.notifier.Notify("Couldn't save task order for a column - your local view is kept")
			}
		}()
	}
}

// suppressLocked arms (or re-arms) the remote-echo suppression window.
// Caller must hold s.mu.
func (s *Synchronizer) suppressLocked() {
	s.suppressed = true
	if s.suppressTimer != nil {
		s.suppressTimer.Stop()
	}
	s.suppressTimer = time.AfterFunc(s.opts.SuppressFor, func() {
		s.mu.Lock()
		s.suppressed = false
		s.mu.Unlock()
	})
}

// CreateTask inserts a task optimistically (record plus append to its
// column's order) and persists it in the background. On failure the insert
// is rolled back - the one case where rollback is cheaply derivable.
func (s *Synchronizer) CreateTask(t board.Task) {
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.layout.TaskOrder[t.ColumnID] = append(s.layout.TaskOrder[t.ColumnID], t.ID)
	s.suppressLocked()
	s.mu.Unlock()

	s.persists.Add(1)
	go func() {
		defer s.persists.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		task := t
		if err := s.store.CreateTask(ctx, &task); err != nil {
			log.Printf("[Synchronizer] create failed for task %s: %v", t.ID, err)
			s.mu.Lock()
			delete(s.tasks, t.ID)
			s.layout.TaskOrder[t.ColumnID] = removeID(s.layout.TaskOrder[t.ColumnID], t.ID)
			s.mu.Unlock()
			s.notifier.Notify("Couldn't create %q - the card was removed again", t.Title)
		}
	}()
}

// UpdateTask replaces a task record optimistically and persists it in the
// background. There is no cheap rollback for an update; on failure the user
// is notified and a best-effort full reload reconciles state.
func (s *Synchronizer) UpdateTask(t board.Task) {
	s.mu.Lock()
	s.tasks[t.ID] = t
	s.suppressLocked()
	s.mu.Unlock()

	s.persists.Add(1)
	go func() {
		defer s.persists.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		task := t
		if err := s.store.UpdateTask(ctx, &task); err != nil {
			log.Printf("[Synchronizer] update failed for task %s: %v", t.ID, err)
			s.notifier.Notify("Couldn't save changes to %q - reloading the board", t.Title)
			s.reload(context.Background())
		}
	}()
}

// DeleteTask removes a task optimistically, remembering where it was so a
// failed delete can restore it at the same position.
func (s *Synchronizer) DeleteTask(id string) {
	s.mu.Lock()
	task, known := s.tasks[id]
	if !known {
		s.mu.Unlock()
		return
	}
	order := s.layout.TaskOrder[task.ColumnID]
	index := slices.Index(order, id)
	delete(s.tasks, id)
	s.layout.TaskOrder[task.ColumnID] = removeID(order, id)
	s.suppressLocked()
	s.mu.Unlock()

	s.persists.Add(1)
	go func() {
		defer s.persists.Done()
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.store.DeleteTask(ctx, id); err != nil {
			log.Printf("[Synchronizer] delete failed for task %s: %v", id, err)
			s.mu.Lock()
			s.tasks[id] = task
			s.layout.TaskOrder[task.ColumnID] = insertID(s.layout.TaskOrder[task.ColumnID], id, index)
			s.mu.Unlock()
			s.notifier.Notify("Couldn't delete %q - the card was restored", task.Title)
		}
	}()
}

// Flush blocks until every dispatched persistence call has completed. The
// long-lived dashboard never needs it; one-shot CLI commands call it before
// exiting so their writes aren't abandoned mid-flight.
func (s *Synchronizer) Flush() {
	s.persists.Wait()
}

// Run consumes change notifications until the context is cancelled or the
// channel closes. Notifications are debounced; when the debounce fires
// inside the suppression window the reload is skipped - it would only echo
// back this synchronizer's own very recent writes.
func (s *Synchronizer) Run(ctx context.Context, changes <-chan string) error {
	var debounce *time.Timer
	var fire <-chan time.Time

	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(s.opts.ReloadDebounce)
			fire = debounce.C

		case <-fire:
			debounce = nil
			fire = nil
			if s.Suppressed() {
				s.logEvent("reload_suppressed", nil)
				continue
			}
			s.reload(ctx)
		}
	}
}

// reload replaces the local layout with the stored one. Called outside the
// suppression window, and as the best-effort recovery after a failed update.
func (s *Synchronizer) reload(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	layout, err := s.store.LoadLayout(ctx)
	if err != nil {
		log.Printf("[Synchronizer] reload failed: %v", err)
		return
	}

	s.mu.Lock()
	s.layout = layout
	s.mu.Unlock()

	s.logEvent("reloaded", map[string]interface{}{"columns": len(layout.ColumnOrder)})
}

// logEvent logs a structured event in JSON format.
func (s *Synchronizer) logEvent(eventType string, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "synchronizer"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Synchronizer] failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}

// removeID returns the sequence with the first occurrence of id removed.
func removeID(ids []string, id string) []string {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(slices.Clone(ids), i, i+1)
	}
	return ids
}

// insertID returns the sequence with id inserted at index, clamped to the
// sequence bounds.
func insertID(ids []string, id string, index int) []string {
	if index < 0 || index > len(ids) {
		index = len(ids)
	}
	return slices.Insert(slices.Clone(ids), index, id)
}
