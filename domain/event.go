package domain

import (
	"fmt"
	"strconv"
	"time"
)

// EventType names a todo mutation.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
	EventToggled EventType = "toggled"
)

// IsValid reports whether t is one of the known event types.
func (t EventType) IsValid() bool {
	switch t {
	case EventCreated, EventUpdated, EventDeleted, EventToggled:
		return true
	default:
		return false
	}
}

// Event is the domain event published after a successful append. It carries a snapshot of the
// todo at mutation time and is the wire shape of the event stream.
type Event struct {
	EventID   string    `json:"event_id"`
	EventType EventType `json:"event_type"`
	TodoID    string    `json:"todo_id"`
	Title     string    `json:"title"`
	IsDone    bool      `json:"is_done"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an event for the given snapshot.
func NewEvent(id string, eventType EventType, todo Todo, owner string, at time.Time) Event {
	return Event{
		EventID:   id,
		EventType: eventType,
		TodoID:    strconv.FormatUint(uint64(todo.ID), 10),
		Title:     todo.Text,
		IsDone:    todo.Done,
		UserID:    owner,
		Timestamp: at.UTC(),
	}
}

// Validate checks the fields an audit record cannot do without.
func (e Event) Validate() error {
	if e.EventID == "" {
		return WrapError(ErrCodeInvalid, "invalid event", fmt.Errorf("missing event_id"))
	}
	if !e.EventType.IsValid() {
		return WrapError(ErrCodeInvalid, "invalid event", fmt.Errorf("unknown event_type %q", e.EventType))
	}
	if e.TodoID == "" {
		return WrapError(ErrCodeInvalid, "invalid event", fmt.Errorf("missing todo_id"))
	}
	return nil
}

// AuditRecord is the persisted projection of an Event, keyed by EventID.
type AuditRecord struct {
	EventID     string    `json:"event_id"`
	EventType   EventType `json:"event_type"`
	TodoID      string    `json:"todo_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsDone      bool      `json:"is_done"`
	UserID      string    `json:"user_id"`
	Timestamp   time.Time `json:"timestamp"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// NewAuditRecord projects an event into an audit row.
func NewAuditRecord(e Event, recordedAt time.Time) AuditRecord {
	return AuditRecord{
		EventID:     e.EventID,
		EventType:   e.EventType,
		TodoID:      e.TodoID,
		Title:       e.Title,
		Description: describe(e),
		IsDone:      e.IsDone,
		UserID:      e.UserID,
		Timestamp:   e.Timestamp.UTC(),
		RecordedAt:  recordedAt.UTC(),
	}
}

func describe(e Event) string {
	state := "open"
	if e.IsDone {
		state = "done"
	}
	return fmt.Sprintf("todo %s %s (%s)", e.TodoID, e.EventType, state)
}
