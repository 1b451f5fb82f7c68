package board

import "fmt"

// EventType identifies the kind of ephemeral presence message on the wire.
type EventType string

const (
	// EventTypeCursor carries a pointer position update
	EventTypeCursor EventType = "cursor"

	// EventTypeLeave announces a session is going away (graceful leave)
	EventTypeLeave EventType = "leave"

	// EventTypeEditing announces (and heartbeats) that a user is editing a card
	EventTypeEditing EventType = "editing"

	// EventTypeStopEditing announces a user finished editing
	EventTypeStopEditing EventType = "stop-editing"
)

// Event is the envelope for every presence message published to a
// workspace's presence channel. SessionID identifies the publishing client;
// subscriptions drop events carrying their own session ID so a publisher
// never receives its own broadcasts.
//
// Exactly one of Cursor or Editing is set for cursor/editing events; leave
// and stop-editing events carry only UserID.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Cursor    *Cursor   `json:"cursor,omitempty"`
	Editing   *Editing  `json:"editing,omitempty"`
}

// Validate checks if the EventType is a valid enum value.
func (t EventType) Validate() error {
	switch t {
	case EventTypeCursor, EventTypeLeave, EventTypeEditing, EventTypeStopEditing:
		return nil
	default:
		return fmt.Errorf("unknown event type: %q", t)
	}
}

// Validate checks the event envelope is well-formed for its type.
func (e *Event) Validate() error {
	if err := e.Type.Validate(); err != nil {
		return err
	}

	if e.SessionID == "" {
		return fmt.Errorf("event session_id cannot be empty")
	}

	if e.UserID == "" {
		return fmt.Errorf("event user_id cannot be empty")
	}

	switch e.Type {
	case EventTypeCursor:
		if e.Cursor == nil {
			return fmt.Errorf("cursor event missing cursor payload")
		}
		if e.Cursor.UserID != e.UserID {
			return fmt.Errorf("cursor payload user_id %q does not match envelope user_id %q", e.Cursor.UserID, e.UserID)
		}
	case EventTypeEditing:
		if e.Editing == nil {
			return fmt.Errorf("editing event missing editing payload")
		}
		if e.Editing.UserID != e.UserID {
			return fmt.Errorf("editing payload user_id %q does not match envelope user_id %q", e.Editing.UserID, e.UserID)
		}
		if e.Editing.CardID == "" {
			return fmt.Errorf("editing event missing card_id")
		}
	}

	return nil
}

// CursorEvent builds a cursor event for the given identity and position.
// The session ID is stamped by the publishing client.
func CursorEvent(id Identity, x, y int, page string) Event {
	return Event{
		Type:   EventTypeCursor,
		UserID: id.UserID,
		Cursor: &Cursor{
			UserID:   id.UserID,
			Name:     id.Name,
			Initials: id.Initials,
			Color:    id.Color,
			X:        x,
			Y:        y,
			Page:     page,
		},
	}
}

// LeaveEvent builds a graceful-leave event for the given identity.
func LeaveEvent(id Identity) Event {
	return Event{
		Type:   EventTypeLeave,
		UserID: id.UserID,
	}
}

// EditingEvent builds an editing-intent event for the given identity and card.
func EditingEvent(id Identity, cardID string) Event {
	return Event{
		Type:   EventTypeEditing,
		UserID: id.UserID,
		Editing: &Editing{
			UserID:   id.UserID,
			Name:     id.Name,
			Initials: id.Initials,
			Color:    id.Color,
			Avatar:   id.Avatar,
			CardID:   cardID,
		},
	}
}

// StopEditingEvent builds a stop-editing event for the given identity.
func StopEditingEvent(id Identity) Event {
	return Event{
		Type:   EventTypeStopEditing,
		UserID: id.UserID,
	}
}
