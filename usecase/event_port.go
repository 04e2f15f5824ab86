package usecase

import (
	"context"

	"github.com/fastygo/todolog/domain"
)

// EventPublisher abstracts the event bus so use cases stay transport-agnostic.
//
// Publish is best-effort: it must not block on the transport and never reports transport
// failures to the caller. The todo log is the source of truth; the event stream may lag or miss
// an event when the bus is down.
type EventPublisher interface {
	Publish(ctx context.Context, eventType domain.EventType, todo domain.Todo, owner string)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.EventType, domain.Todo, string) {}
