package services

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/todolog/domain"
	"github.com/fastygo/todolog/pkg/logger"
	"github.com/fastygo/todolog/repository"
	"github.com/fastygo/todolog/usecase"
)

// PublisherConfig bounds the transport call of each publish.
type PublisherConfig struct {
	Timeout time.Duration
}

// EventPublisher emits a domain event after each successful append.
//
// Publishing happens on its own goroutine with a context detached from the request, so the
// HTTP response never waits for the bus. Transport failures are logged and counted, not
// retried: the todo log and the audit trail may diverge by the events lost this way.
type EventPublisher struct {
	producer repository.EventProducer
	logger   *zap.Logger
	cfg      PublisherConfig
	now      func() time.Time
	newID    func() string

	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
	sent     atomic.Int64
	failures atomic.Int64
}

func NewEventPublisher(producer repository.EventProducer, logger *zap.Logger, cfg PublisherConfig) *EventPublisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{
		producer: producer,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Publish builds the event and hands it to the transport in the background.
func (p *EventPublisher) Publish(ctx context.Context, eventType domain.EventType, todo domain.Todo, owner string) {
	if p == nil || p.producer == nil {
		return
	}
	log := logger.FromContext(ctx, p.logger)
	event := domain.NewEvent(p.newID(), eventType, todo, owner, p.now())

	base := context.Background()
	if ctx != nil {
		base = context.WithoutCancel(ctx)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.failures.Add(1)
		log.Warn("event dropped, publisher closed", zap.String("event_id", event.EventID))
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		sendCtx, cancel := context.WithTimeout(base, p.cfg.Timeout)
		defer cancel()
		p.send(sendCtx, event, log)
	}()
}

func (p *EventPublisher) send(ctx context.Context, event domain.Event, log *zap.Logger) {
	payload, err := json.Marshal(event)
	if err == nil {
		err = p.producer.Send(ctx, event.EventID, payload)
	}
	if err != nil {
		p.failures.Add(1)
		transportErr := domain.WrapError(domain.ErrCodeTransport, "publish event", err)
		log.Error("event publish failed",
			zap.String("event_id", event.EventID),
			zap.String("event_type", string(event.EventType)),
			zap.String("todo_id", event.TodoID),
			zap.Error(transportErr))
		return
	}
	p.sent.Add(1)
	log.Debug("event published", zap.String("event_id", event.EventID), zap.String("event_type", string(event.EventType)))
}

// Close stops accepting events and waits for in-flight publishes or ctx expiry.
func (p *EventPublisher) Close(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats reports how many events were handed to the transport and how many were lost.
func (p *EventPublisher) Stats() (sent, failed int64) {
	if p == nil {
		return 0, 0
	}
	return p.sent.Load(), p.failures.Load()
}

var _ usecase.EventPublisher = (*EventPublisher)(nil)
