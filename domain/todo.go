package domain

import (
	"strings"
	"time"
)

// TodoVersion is one immutable row of the todo log. Every change to a todo is a new version
// with the same (Owner, ID) and a newer UpdatedAt; rows are never rewritten.
type TodoVersion struct {
	ID        uint32    `json:"id"`
	Owner     string    `json:"owner"`
	Text      string    `json:"text"`
	Done      bool      `json:"done"`
	UpdatedAt time.Time `json:"updated_at"`
	Deleted   bool      `json:"deleted"`
	// Seq is assigned by the log on append and breaks ties between equal UpdatedAt values.
	Seq uint64 `json:"seq"`
}

// Snapshot returns the caller-facing view of the version.
func (v TodoVersion) Snapshot() Todo {
	return Todo{
		ID:        v.ID,
		Text:      v.Text,
		Done:      v.Done,
		UpdatedAt: v.UpdatedAt,
	}
}

// Next derives a successor version of v stamped with the given revision time.
func (v TodoVersion) Next(rev time.Time) TodoVersion {
	next := v
	next.UpdatedAt = rev
	next.Seq = 0
	return next
}

// Todo is the resolved, visible state of a todo.
type Todo struct {
	ID        uint32    `json:"id"`
	Text      string    `json:"text"`
	Done      bool      `json:"done"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TodoPatch carries the fields supplied by an update. Nil fields keep their current value.
type TodoPatch struct {
	Text *string
	Done *bool
}

// Apply merges the patch over the given version.
func (p TodoPatch) Apply(v TodoVersion) TodoVersion {
	if p.Text != nil {
		v.Text = *p.Text
	}
	if p.Done != nil {
		v.Done = *p.Done
	}
	return v
}

// NormalizeText trims the todo text and rejects blank values.
func NormalizeText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}
