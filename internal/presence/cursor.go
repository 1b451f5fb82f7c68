package presence

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/waggleboard/waggle/pkg/board"
)

// CursorOptions tunes the cursor broadcaster's timers.
type CursorOptions struct {
	// Throttle is the minimum spacing between outbound cursor messages.
	// Calls arriving inside the window are coalesced: only the latest
	// coordinates survive. Defaults to DefaultThrottle.
	Throttle time.Duration

	// StaleAfter drops a remote cursor that hasn't been refreshed within
	// the window, so a crashed peer doesn't leave a ghost cursor behind.
	// Defaults to DefaultStaleAfter.
	StaleAfter time.Duration
}

func (o *CursorOptions) applyDefaults() {
	if o.Throttle <= 0 {
		o.Throttle = DefaultThrottle
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
}

// CursorBroadcaster turns local pointer movement into throttled presence
// events and maintains the map of remote cursors it hears about.
//
// All state is guarded by one mutex; timers fire on their own goroutines
// and re-enter through it.
type CursorBroadcaster struct {
	client   *board.Client
	identity board.Identity
	page     string
	opts     CursorOptions

	mu          sync.Mutex
	remote      map[string]board.Cursor
	staleTimers map[string]*time.Timer
	lastSent    time.Time
	pending     *pendingCursor
	pendingTick *time.Timer
	closed      bool
}

type pendingCursor struct {
	x, y int
}

// NewCursorBroadcaster creates a cursor broadcaster for one user on one
// page of a workspace. The identity is injected explicitly; the broadcaster
// never reads ambient session state.
func NewCursorBroadcaster(client *board.Client, identity board.Identity, page string, opts CursorOptions) *CursorBroadcaster {
	opts.applyDefaults()
	return &CursorBroadcaster{
		client:      client,
		identity:    identity,
		page:        page,
		opts:        opts,
		remote:      make(map[string]board.Cursor),
		staleTimers: make(map[string]*time.Timer),
	}
}

// Run subscribes to the workspace presence channel and maintains the remote
// cursor map until the context is cancelled or the broadcaster is closed.
// Receive-loop failures are logged, never propagated: presence self-heals.
func (b *CursorBroadcaster) Run(ctx context.Context) error {
	sub, err := b.client.SubscribePresence(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			b.handleEvent(ev)

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			log.Printf("[Presence] cursor subscription error: %v", err)
		}
	}
}

// handleEvent applies one inbound presence event to the remote cursor map.
// Editing events are ignored here; they belong to the editing broadcaster.
func (b *CursorBroadcaster) handleEvent(ev board.Event) {
	switch ev.Type {
	case board.EventTypeCursor:
		if ev.Cursor == nil || ev.UserID == b.identity.UserID {
			return
		}
		b.mu.Lock()
		b.remote[ev.UserID] = *ev.Cursor
		b.resetStaleLocked(ev.UserID)
		b.mu.Unlock()

	case board.EventTypeLeave:
		b.mu.Lock()
		b.removeLocked(ev.UserID)
		b.mu.Unlock()
	}
}

// resetStaleLocked restarts the stale-expiry timer for a remote user.
// Caller must hold b.mu.
func (b *CursorBroadcaster) resetStaleLocked(userID string) {
	if t, ok := b.staleTimers[userID]; ok {
		t.Stop()
	}
	b.staleTimers[userID] = time.AfterFunc(b.opts.StaleAfter, func() {
		b.mu.Lock()
		b.removeLocked(userID)
		b.mu.Unlock()
	})
}

// removeLocked drops a remote cursor and cancels its stale timer.
// Caller must hold b.mu. Removing an unknown user is a no-op.
func (b *CursorBroadcaster) removeLocked(userID string) {
	delete(b.remote, userID)
	if t, ok := b.staleTimers[userID]; ok {
		t.Stop()
		delete(b.staleTimers, userID)
	}
}

// Broadcast publishes the local pointer position, throttled to one message
// per window. A call landing inside the window replaces any pending
// coordinates rather than queueing behind them; when the window elapses the
// latest coordinates are sent.
func (b *CursorBroadcaster) Broadcast(x, y int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	elapsed := time.Since(b.lastSent)
	if elapsed >= b.opts.Throttle && b.pendingTick == nil {
		b.lastSent = time.Now()
		go b.publish(x, y)
		return
	}

	// Coalesce: only the latest coordinates survive the window.
	b.pending = &pendingCursor{x: x, y: y}
	if b.pendingTick == nil {
		b.pendingTick = time.AfterFunc(b.opts.Throttle-elapsed, b.flushPending)
	}
}

// flushPending sends the coordinates that accumulated during the throttle
// window.
func (b *CursorBroadcaster) flushPending() {
	b.mu.Lock()
	if b.closed || b.pending == nil {
		b.pendingTick = nil
		b.pending = nil
		b.mu.Unlock()
		return
	}
	p := *b.pending
	b.pending = nil
	b.pendingTick = nil
	b.lastSent = time.Now()
	b.mu.Unlock()

	b.publish(p.x, p.y)
}

// publish sends one cursor event. Failures are logged and dropped; the next
// pointer movement supersedes a lost one anyway.
func (b *CursorBroadcaster) publish(x, y int) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := b.client.PublishPresence(ctx, board.CursorEvent(b.identity, x, y, b.page)); err != nil {
		log.Printf("[Presence] cursor broadcast failed: %v", err)
	}
}

// Cursors returns the remote cursors currently known, ordered by user ID
// for stable rendering.
func (b *CursorBroadcaster) Cursors() []board.Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()

	cursors := make([]board.Cursor, 0, len(b.remote))
	for _, c := range b.remote {
		cursors = append(cursors, c)
	}
	sort.Slice(cursors, func(i, j int) bool { return cursors[i].UserID < cursors[j].UserID })
	return cursors
}

// Close sends a best-effort graceful leave for the local user and stops all
// timers. After Close, Broadcast calls are no-ops.
func (b *CursorBroadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	if b.pendingTick != nil {
		b.pendingTick.Stop()
		b.pendingTick = nil
	}
	b.pending = nil
	for userID, t := range b.staleTimers {
		t.Stop()
		delete(b.staleTimers, userID)
	}
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := b.client.PublishPresence(ctx, board.LeaveEvent(b.identity)); err != nil {
		// Accepted limitation: peers keep the cursor until their stale
		// timer fires.
		log.Printf("[Presence] leave broadcast failed: %v", err)
	}

	return nil
}
