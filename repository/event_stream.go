package repository

import "context"

// StreamMessage is one delivery from the event stream. ID is the transport position used for
// acknowledgement; Payload is the encoded domain.Event.
type StreamMessage struct {
	ID      string
	EventID string
	Payload []byte
}

// EventProducer appends encoded events to the stream.
type EventProducer interface {
	Send(ctx context.Context, eventID string, payload []byte) error
}

// EventSubscription is an at-least-once consumer position on the stream. Messages fetched but
// not acknowledged are delivered again after a restart.
type EventSubscription interface {
	Fetch(ctx context.Context, count int) ([]StreamMessage, error)
	Ack(ctx context.Context, ids ...string) error
	Close() error
}

// StreamTrimmer bounds the stream length.
type StreamTrimmer interface {
	Trim(ctx context.Context, maxLen int64) (int64, error)
}
