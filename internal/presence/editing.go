package presence

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/waggleboard/waggle/pkg/board"
)

// EditingOptions tunes the editing broadcaster's timers.
type EditingOptions struct {
	// Heartbeat is how often an in-progress edit is re-announced so
	// observers keep it alive. Defaults to DefaultHeartbeat.
	Heartbeat time.Duration

	// StaleAfter drops a remote editor that hasn't heartbeated within the
	// window - the backstop for a peer that crashed before sending
	// stop-editing. Defaults to DefaultStaleAfter.
	StaleAfter time.Duration
}

func (o *EditingOptions) applyDefaults() {
	if o.Heartbeat <= 0 {
		o.Heartbeat = DefaultHeartbeat
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
}

// EditingBroadcaster announces which card the local user is editing and
// maintains the map of remote editors.
//
// Remote editors follow a small per-user state machine:
//
//	Unknown → Editing   on "editing" (insert, stale timer armed)
//	Editing → Editing   on "editing" (replace, stale timer reset)
//	Editing → Unknown   on "stop-editing" or stale-timer expiry
//
// A stop-editing for an already-unknown user is a no-op. At most one entry
// per user ID is ever visible: a new editing message overwrites, never
// appends.
type EditingBroadcaster struct {
	client   *board.Client
	identity board.Identity
	opts     EditingOptions

	mu          sync.Mutex
	remote      map[string]board.Editing
	staleTimers map[string]*time.Timer
	currentCard string
	heartbeat   *time.Ticker
	heartbeatWG sync.WaitGroup
	stopBeat    chan struct{}
	closed      bool
}

// NewEditingBroadcaster creates an editing broadcaster for one user in a
// workspace.
func NewEditingBroadcaster(client *board.Client, identity board.Identity, opts EditingOptions) *EditingBroadcaster {
	opts.applyDefaults()
	return &EditingBroadcaster{
		client:      client,
		identity:    identity,
		opts:        opts,
		remote:      make(map[string]board.Editing),
		staleTimers: make(map[string]*time.Timer),
	}
}

// Run subscribes to the workspace presence channel and maintains the remote
// editor map until the context is cancelled. Failures are logged, never
// propagated.
func (b *EditingBroadcaster) Run(ctx context.Context) error {
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
			log.Printf("[Presence] editing subscription error: %v", err)
		}
	}
}

// handleEvent applies one inbound presence event to the remote editor map.
func (b *EditingBroadcaster) handleEvent(ev board.Event) {
	switch ev.Type {
	case board.EventTypeEditing:
		if ev.Editing == nil || ev.UserID == b.identity.UserID {
			return
		}
		b.mu.Lock()
		b.remote[ev.UserID] = *ev.Editing
		b.resetStaleLocked(ev.UserID)
		b.mu.Unlock()

	case board.EventTypeStopEditing, board.EventTypeLeave:
		b.mu.Lock()
		b.removeLocked(ev.UserID)
		b.mu.Unlock()
	}
}

// resetStaleLocked restarts the stale-expiry timer for a remote editor,
// cancelling any prior timer for the same user. Caller must hold b.mu.
func (b *EditingBroadcaster) resetStaleLocked(userID string) {
	if t, ok := b.staleTimers[userID]; ok {
		t.Stop()
	}
	b.staleTimers[userID] = time.AfterFunc(b.opts.StaleAfter, func() {
		b.mu.Lock()
		b.removeLocked(userID)
		b.mu.Unlock()
	})
}

// removeLocked drops a remote editor and cancels its stale timer.
// Caller must hold b.mu. Removing an unknown user is a no-op.
func (b *EditingBroadcaster) removeLocked(userID string) {
	delete(b.remote, userID)
	if t, ok := b.staleTimers[userID]; ok {
		t.Stop()
		delete(b.staleTimers, userID)
	}
}

// BroadcastEditing announces that the local user is editing the given card.
// The message is sent immediately and then re-sent on every heartbeat tick
// for as long as an edit is in progress. Switching cards just swaps what
// the already-running heartbeat announces.
func (b *EditingBroadcaster) BroadcastEditing(cardID string) {
	b.mu.Lock()
	if b.closed || cardID == "" {
		b.mu.Unlock()
		return
	}
	b.currentCard = cardID
	b.startHeartbeatLocked()
	b.mu.Unlock()

	b.publish(board.EditingEvent(b.identity, cardID))
}

// BroadcastStopEditing announces the local user finished editing (save,
// cancel, or blur). Clears the current-card marker and stops the heartbeat.
func (b *EditingBroadcaster) BroadcastStopEditing() {
	b.mu.Lock()
	if b.closed || b.currentCard == "" {
		b.mu.Unlock()
		return
	}
	b.currentCard = ""
	b.stopHeartbeatLocked()
	b.mu.Unlock()

	b.publish(board.StopEditingEvent(b.identity))
}

// startHeartbeatLocked starts the heartbeat loop if it isn't already
// running. The loop always announces whatever card is current at tick time.
// Caller must hold b.mu.
func (b *EditingBroadcaster) startHeartbeatLocked() {
	if b.heartbeat != nil {
		return
	}

	b.heartbeat = time.NewTicker(b.opts.Heartbeat)
	b.stopBeat = make(chan struct{})
	ticker := b.heartbeat
	stop := b.stopBeat

	b.heartbeatWG.Add(1)
	go func() {
		defer b.heartbeatWG.Done()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				b.mu.Lock()
				cardID := b.currentCard
				b.mu.Unlock()
				if cardID != "" {
					b.publish(board.EditingEvent(b.identity, cardID))
				}
			}
		}
	}()
}

// stopHeartbeatLocked cancels the heartbeat loop. Caller must hold b.mu.
func (b *EditingBroadcaster) stopHeartbeatLocked() {
	if b.heartbeat == nil {
		return
	}
	b.heartbeat.Stop()
	close(b.stopBeat)
	b.heartbeat = nil
	b.stopBeat = nil
}

// publish sends one presence event. Failures are logged and dropped; the
// heartbeat (or the peer's stale timer) repairs missed messages.
func (b *EditingBroadcaster) publish(ev board.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := b.client.PublishPresence(ctx, ev); err != nil {
		log.Printf("[Presence] editing broadcast failed: %v", err)
	}
}

// Editors returns the remote editors currently known, ordered by user ID.
func (b *EditingBroadcaster) Editors() []board.Editing {
	b.mu.Lock()
	defer b.mu.Unlock()

	editors := make([]board.Editing, 0, len(b.remote))
	for _, e := range b.remote {
		editors = append(editors, e)
	}
	sort.Slice(editors, func(i, j int) bool { return editors[i].UserID < editors[j].UserID })
	return editors
}

// EditorOf returns the remote editor currently on the given card, if any.
func (b *EditingBroadcaster) EditorOf(cardID string) (board.Editing, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.remote {
		if e.CardID == cardID {
			return e, true
		}
	}
	return board.Editing{}, false
}

// Close sends a final stop-editing if an edit was in progress, then stops
// all timers. Peers also have the stale timer as a correctness backstop if
// the final message is lost.
func (b *EditingBroadcaster) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	wasEditing := b.currentCard != ""
	b.currentCard = ""
	b.stopHeartbeatLocked()
	for userID, t := range b.staleTimers {
		t.Stop()
		delete(b.staleTimers, userID)
	}
	b.mu.Unlock()

	b.heartbeatWG.Wait()

	if wasEditing {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := b.client.PublishPresence(ctx, board.StopEditingEvent(b.identity)); err != nil {
			log.Printf("[Presence] final stop-editing broadcast failed: %v", err)
		}
	}

	return nil
}
