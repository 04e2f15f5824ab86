package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/todolog/repository"
)

const (
	fieldEventID = "event_id"
	fieldPayload = "payload"
)

type streamProducer struct {
	client *redislib.Client
	stream string
	maxLen int64
}

// NewEventProducer returns a producer appending events to a Redis Stream. When maxLen is
// positive every XADD trims the stream approximately to that length.
func NewEventProducer(client *redislib.Client, stream string, maxLen int64) repository.EventProducer {
	return &streamProducer{client: client, stream: stream, maxLen: maxLen}
}

func (p *streamProducer) Send(ctx context.Context, eventID string, payload []byte) error {
	args := &redislib.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			fieldEventID: eventID,
			fieldPayload: payload,
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// SubscriptionConfig names the consumer-group position of one ingester.
type SubscriptionConfig struct {
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
}

type streamSubscription struct {
	client *redislib.Client
	cfg    SubscriptionConfig
	// groupReady is false until the consumer group is known to exist.
	groupReady bool
	// backlog is true until this consumer's pending entries have been re-read after a restart.
	backlog bool
	// cursor is the last pending entry returned, so one backlog pass visits each entry once.
	cursor string
}

// NewEventSubscription returns a consumer-group position on the stream. Redis tracks the
// group's last delivered id and each consumer's pending list, which gives at-least-once
// resume: entries delivered before a crash but never acknowledged are returned first.
//
// The group is created on first use, so a subscription can be built while Redis is down;
// Fetch reports the connection error and the caller retries.
func NewEventSubscription(ctx context.Context, client *redislib.Client, cfg SubscriptionConfig) (repository.EventSubscription, error) {
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	if cfg.Stream == "" || cfg.Group == "" || cfg.Consumer == "" {
		return nil, fmt.Errorf("subscription needs stream, group and consumer")
	}
	sub := &streamSubscription{client: client, cfg: cfg, backlog: true, cursor: "0"}
	// Best effort: an unreachable Redis is retried by Fetch.
	_ = sub.ensureGroup(ctx)
	return sub, nil
}

func (s *streamSubscription) ensureGroup(ctx context.Context) error {
	if s.groupReady {
		return nil
	}
	err := s.client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", s.cfg.Group, err)
	}
	s.groupReady = true
	return nil
}

// Fetch returns this consumer's pending entries first, one pass in id order, then new entries.
// Entries whose ack failed during the pass stay pending and come back after the next restart.
func (s *streamSubscription) Fetch(ctx context.Context, count int) ([]repository.StreamMessage, error) {
	if err := s.ensureGroup(ctx); err != nil {
		return nil, err
	}
	if s.backlog {
		msgs, err := s.read(ctx, s.cursor, count, -1)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 {
			s.cursor = msgs[len(msgs)-1].ID
			return msgs, nil
		}
		s.backlog = false
	}
	return s.read(ctx, ">", count, s.cfg.Block)
}

func (s *streamSubscription) read(ctx context.Context, from string, count int, block time.Duration) ([]repository.StreamMessage, error) {
	streams, err := s.client.XReadGroup(ctx, &redislib.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, from},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, nil
		}
		if strings.HasPrefix(err.Error(), "NOGROUP") {
			s.groupReady = false
		}
		return nil, fmt.Errorf("xreadgroup %s: %w", s.cfg.Stream, err)
	}

	var msgs []repository.StreamMessage
	for _, stream := range streams {
		for _, m := range stream.Messages {
			msgs = append(msgs, toStreamMessage(m))
		}
	}
	return msgs, nil
}

func (s *streamSubscription) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, ids...).Err(); err != nil {
		return fmt.Errorf("xack %s: %w", s.cfg.Stream, err)
	}
	return nil
}

// Close releases the subscription. The group and pending list stay in Redis so the next
// subscription with the same consumer name resumes where this one stopped.
func (s *streamSubscription) Close() error {
	return nil
}

type streamTrimmer struct {
	client *redislib.Client
	stream string
}

// NewStreamTrimmer returns a trimmer for the event stream.
func NewStreamTrimmer(client *redislib.Client, stream string) repository.StreamTrimmer {
	return &streamTrimmer{client: client, stream: stream}
}

func (t *streamTrimmer) Trim(ctx context.Context, maxLen int64) (int64, error) {
	removed, err := t.client.XTrimMaxLenApprox(ctx, t.stream, maxLen, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("xtrim %s: %w", t.stream, err)
	}
	return removed, nil
}

func toStreamMessage(m redislib.XMessage) repository.StreamMessage {
	msg := repository.StreamMessage{ID: m.ID}
	if v, ok := m.Values[fieldEventID].(string); ok {
		msg.EventID = v
	}
	if v, ok := m.Values[fieldPayload].(string); ok {
		msg.Payload = []byte(v)
	}
	return msg
}
