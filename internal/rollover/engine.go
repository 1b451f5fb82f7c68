package rollover

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/waggleboard/waggle/pkg/board"
)

// Archiver runs the actual week transition against the store: archive
// completed tasks, leave incomplete ones to carry over. The operation must
// be safe to invoke more than once per Monday - multiple sessions may race
// to trigger it. *board.Client satisfies it.
type Archiver interface {
	ArchiveWeek(ctx context.Context, monday string) (board.TransitionResult, error)
}

// MarkerStore persists the per-host transition marker: the Monday for which
// this host already ran the transition. localstate's workspace view
// satisfies it.
type MarkerStore interface {
	TransitionMarker() (string, error)
	SetTransitionMarker(monday string) error
}

// Options tunes the engine's watcher.
type Options struct {
	// Tick is the watcher's evaluation interval. Defaults to DefaultTick.
	Tick time.Duration

	// Now supplies the current time; injectable for tests. Defaults to
	// time.Now.
	Now func() time.Time
}

// DefaultTick is the default watcher evaluation interval.
const DefaultTick = time.Minute

func (o *Options) applyDefaults() {
	if o.Tick <= 0 {
		o.Tick = DefaultTick
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Engine watches the clock and triggers the weekly transition at most once
// per calendar week. Manual invocation bypasses the day/hour gate but goes
// through the same marker, so a manual run and the automatic run mutually
// exclude each other for the week.
type Engine struct {
	archiver Archiver
	markers  MarkerStore
	schedule Schedule
	opts     Options

	// mu serializes transitions so two triggers racing before the marker
	// write converge to a single effective transition per Monday.
	mu sync.Mutex
}

// New creates a transition engine.
func New(archiver Archiver, markers MarkerStore, schedule Schedule, opts Options) *Engine {
	opts.applyDefaults()
	return &Engine{
		archiver: archiver,
		markers:  markers,
		schedule: schedule,
		opts:     opts,
	}
}

// Run evaluates the schedule on every tick until the context is cancelled.
// Automatic-tick failures are logged and retried on the next tick within
// the same eligibility window; they are never fatal to the process.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.TickOnce(ctx)
		}
	}
}

// TickOnce runs one watcher evaluation: gate on day/hour, skip if this
// week's marker is already written, otherwise transition.
func (e *Engine) TickOnce(ctx context.Context) {
	now := e.opts.Now()
	if !Eligible(now, e.schedule) {
		return
	}

	monday := MondayOf(now)
	marker, err := e.markers.TransitionMarker()
	if err != nil {
		log.Printf("[Rollover] failed to read transition marker: %v", err)
		return
	}
	if marker == monday {
		// Already ran this week from this host.
		return
	}

	result, err := e.TransitionToNextWeek(ctx)
	if err != nil {
		// Retried on the next tick while the window stays open.
		log.Printf("[Rollover] automatic transition failed: %v", err)
		return
	}

	e.logEvent("week_transitioned", map[string]interface{}{
		"monday":       monday,
		"archived":     result.ArchivedCount,
		"carried_over": result.CarriedOverCount,
		"trigger":      "automatic",
	})
}

// TransitionToNextWeek archives the current week now, regardless of the
// day/hour gate. The marker is rechecked inside the critical section, so a
// second call racing the first observes the updated marker and becomes a
// no-op; the marker is only written after the archive call succeeds.
func (e *Engine) TransitionToNextWeek(ctx context.Context) (board.TransitionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	monday := MondayOf(e.opts.Now())

	marker, err := e.markers.TransitionMarker()
	if err != nil {
		return board.TransitionResult{}, fmt.Errorf("failed to read transition marker: %w", err)
	}
	if marker == monday {
		return board.TransitionResult{}, nil
	}

	result, err := e.archiver.ArchiveWeek(ctx, monday)
	if err != nil {
		return board.TransitionResult{}, fmt.Errorf("week transition failed: %w", err)
	}

	if err := e.markers.SetTransitionMarker(monday); err != nil {
		// The store-side marker still prevents double archiving; a failed
		// local write only costs a redundant (idempotent) call later.
		return result, fmt.Errorf("transition succeeded but marker write failed: %w", err)
	}

	return result, nil
}

// DisplayMonday returns the Monday of the week the UI should present at the
// given moment, accounting for an already-run transition this week.
func (e *Engine) DisplayMonday(now time.Time) string {
	marker, err := e.markers.TransitionMarker()
	if err != nil {
		log.Printf("[Rollover] failed to read transition marker: %v", err)
		marker = ""
	}
	return DisplayWeekMonday(now, marker, e.schedule)
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "rollover"
	data["event_type"] = eventType

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Rollover] failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
