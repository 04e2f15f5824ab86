package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/todolog/domain"
	"github.com/fastygo/todolog/repository"
)

// Outcome is the result of ingesting one stream message.
type Outcome int

const (
	OutcomeRecorded Outcome = iota
	// OutcomeDuplicate means the event id was already in the audit trail; the redelivery was
	// absorbed without writing.
	OutcomeDuplicate
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "failed"
	}
}

// IngesterConfig controls batching and the timeouts of external calls.
type IngesterConfig struct {
	BatchSize    int
	StoreTimeout time.Duration
	Backoff      time.Duration
}

// IngesterStats counts processed messages by outcome.
type IngesterStats struct {
	Recorded   int64
	Duplicates int64
	Failed     int64
}

var (
	errIngesterRunning = errors.New("event ingester already running")
	errIngesterStopped = errors.New("event ingester stopped")
)

// EventIngester is the single background worker turning stream events into audit records.
//
// Messages are processed one at a time and acknowledged only after processing. A message that
// fails to decode or store is logged and acknowledged anyway; there is no dead-letter queue.
// Stop finishes the in-flight message and leaves the rest of the fetched batch unacknowledged,
// so the next subscription under the same consumer name receives it again.
type EventIngester struct {
	sub    repository.EventSubscription
	audits repository.AuditRepository
	logger *zap.Logger
	cfg    IngesterConfig
	now    func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool

	recorded   atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

func NewEventIngester(sub repository.EventSubscription, audits repository.AuditRepository, logger *zap.Logger, cfg IngesterConfig) *EventIngester {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventIngester{
		sub:    sub,
		audits: audits,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Start launches the worker goroutine. It runs until Stop is called or ctx is cancelled.
func (in *EventIngester) Start(ctx context.Context) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.stopped {
		return errIngesterStopped
	}
	if in.done != nil {
		return errIngesterRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	in.cancel = cancel
	in.done = make(chan struct{})
	go in.run(runCtx, in.done)

	in.logger.Info("event ingester started", zap.Int("batch_size", in.cfg.BatchSize))
	return nil
}

// Stop halts pulling, waits for the in-flight message and releases the subscription.
func (in *EventIngester) Stop(ctx context.Context) error {
	in.mu.Lock()
	if in.stopped {
		in.mu.Unlock()
		return nil
	}
	in.stopped = true
	cancel, done := in.cancel, in.done
	in.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("stop event ingester: %w", ctx.Err())
		}
	}

	if err := in.sub.Close(); err != nil {
		return fmt.Errorf("close subscription: %w", err)
	}
	stats := in.Stats()
	in.logger.Info("event ingester stopped",
		zap.Int64("recorded", stats.Recorded),
		zap.Int64("duplicates", stats.Duplicates),
		zap.Int64("failed", stats.Failed))
	return nil
}

// Done is closed when the worker goroutine exits.
func (in *EventIngester) Done() <-chan struct{} {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.done
}

// Stats returns counters since construction.
func (in *EventIngester) Stats() IngesterStats {
	return IngesterStats{
		Recorded:   in.recorded.Load(),
		Duplicates: in.duplicates.Load(),
		Failed:     in.failed.Load(),
	}
}

func (in *EventIngester) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		msgs, err := in.sub.Fetch(ctx, in.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			in.logger.Error("event fetch failed",
				zap.Error(domain.WrapError(domain.ErrCodeTransport, "fetch events", err)),
				zap.Duration("backoff", in.cfg.Backoff))
			if !sleep(ctx, in.cfg.Backoff) {
				return
			}
			continue
		}

		for _, msg := range msgs {
			if ctx.Err() != nil {
				return
			}
			// In-flight work runs on a context that Stop does not cancel.
			if _, ackErr := in.process(context.WithoutCancel(ctx), msg); ackErr != nil {
				if !sleep(ctx, in.cfg.Backoff) {
					return
				}
			}
		}
	}
}

// Process ingests and acknowledges a single message.
func (in *EventIngester) Process(ctx context.Context, msg repository.StreamMessage) Outcome {
	outcome, _ := in.process(ctx, msg)
	return outcome
}

// process also reports the ack error so the loop can back off while Redis refuses acks.
func (in *EventIngester) process(ctx context.Context, msg repository.StreamMessage) (Outcome, error) {
	log := in.logger.With(zap.String("message_id", msg.ID), zap.String("event_id", msg.EventID))

	outcome, err := in.record(ctx, msg)
	switch outcome {
	case OutcomeRecorded:
		in.recorded.Add(1)
		log.Debug("audit record written")
	case OutcomeDuplicate:
		in.duplicates.Add(1)
		log.Info("duplicate event ignored")
	default:
		in.failed.Add(1)
		log.Error("event ingestion failed, dropping", zap.Error(err))
	}

	ackCtx, cancel := context.WithTimeout(ctx, in.cfg.StoreTimeout)
	defer cancel()
	if err := in.sub.Ack(ackCtx, msg.ID); err != nil {
		// The message will be redelivered; the event id key absorbs the replay.
		ackErr := domain.WrapError(domain.ErrCodeTransport, "ack event", err)
		log.Warn("event ack failed", zap.Error(ackErr), zap.Duration("backoff", in.cfg.Backoff))
		return outcome, ackErr
	}
	return outcome, nil
}

func (in *EventIngester) record(ctx context.Context, msg repository.StreamMessage) (Outcome, error) {
	var event domain.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return OutcomeFailed, domain.WrapError(domain.ErrCodeInvalid, "decode event", err)
	}
	if err := event.Validate(); err != nil {
		return OutcomeFailed, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, in.cfg.StoreTimeout)
	defer cancel()

	inserted, err := in.audits.Insert(storeCtx, domain.NewAuditRecord(event, in.now()))
	if err != nil {
		return OutcomeFailed, domain.WrapError(domain.ErrCodeUnavailable, "insert audit record", err)
	}
	if !inserted {
		return OutcomeDuplicate, nil
	}
	return OutcomeRecorded, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
