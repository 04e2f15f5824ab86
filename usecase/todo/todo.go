package todo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/todolog/domain"
	"github.com/fastygo/todolog/pkg/logger"
	"github.com/fastygo/todolog/repository"
	"github.com/fastygo/todolog/usecase"
)

// UseCase orchestrates todo mutations as "read latest, compute new version, append, publish".
//
// No locks are taken per todo: two concurrent mutations of the same todo both read the same
// current version and both append; the later revision wins at read time and the earlier row
// stays in the log, masked.
type UseCase struct {
	log    repository.TodoLog
	ids    repository.IDAllocator
	events usecase.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*UseCase)

// WithClock overrides the revision clock.
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		if now != nil {
			uc.now = now
		}
	}
}

func New(log repository.TodoLog, ids repository.IDAllocator, events usecase.EventPublisher, logger *zap.Logger, opts ...Option) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if events == nil {
		events = usecase.NopPublisher{}
	}
	uc := &UseCase{
		log:    log,
		ids:    ids,
		events: events,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *UseCase) List(ctx context.Context, owner string) ([]domain.Todo, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	rows, err := uc.log.Scan(ctx, owner, nil)
	if err != nil {
		return nil, storeError(err)
	}
	return domain.ResolveLatest(rows), nil
}

func (uc *UseCase) Get(ctx context.Context, owner string, id uint32) (*domain.Todo, error) {
	current, err := uc.current(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	todo := current.Snapshot()
	return &todo, nil
}

// History returns every stored version of a todo, oldest first, tombstones included.
func (uc *UseCase) History(ctx context.Context, owner string, id uint32) ([]domain.TodoVersion, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	rows, err := uc.log.Scan(ctx, owner, &id)
	if err != nil {
		return nil, storeError(err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrTodoNotFound
	}
	domain.SortVersions(rows)
	return rows, nil
}

func (uc *UseCase) Create(ctx context.Context, owner, text string, done bool) (*domain.Todo, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	text, err := domain.NormalizeText(text)
	if err != nil {
		return nil, err
	}

	id, err := uc.ids.NextID(ctx, owner)
	if err != nil {
		return nil, storeError(err)
	}

	version := domain.TodoVersion{
		ID:        id,
		Owner:     owner,
		Text:      text,
		Done:      done,
		UpdatedAt: domain.NextRevision(time.Time{}, uc.now()),
	}
	return uc.appendAndPublish(ctx, domain.EventCreated, version)
}

func (uc *UseCase) Update(ctx context.Context, owner string, id uint32, patch domain.TodoPatch) (*domain.Todo, error) {
	if err := checkOwner(owner); err != nil {
		return nil, err
	}
	if patch.Text != nil {
		text, err := domain.NormalizeText(*patch.Text)
		if err != nil {
			return nil, err
		}
		patch.Text = &text
	}

	current, err := uc.current(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	next := patch.Apply(current.Next(domain.NextRevision(current.UpdatedAt, uc.now())))
	return uc.appendAndPublish(ctx, domain.EventUpdated, next)
}

// Toggle flips the done flag. Two toggles restore the original state but append two versions.
func (uc *UseCase) Toggle(ctx context.Context, owner string, id uint32) (*domain.Todo, error) {
	current, err := uc.current(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	next := current.Next(domain.NextRevision(current.UpdatedAt, uc.now()))
	next.Done = !current.Done
	return uc.appendAndPublish(ctx, domain.EventToggled, next)
}

// Delete appends a tombstone and returns the todo as it was before deletion. A deleted id is
// never reactivated.
func (uc *UseCase) Delete(ctx context.Context, owner string, id uint32) (*domain.Todo, error) {
	current, err := uc.current(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	tombstone := current.Next(domain.NextRevision(current.UpdatedAt, uc.now()))
	tombstone.Deleted = true
	if err := uc.log.Append(ctx, &tombstone); err != nil {
		return nil, storeError(err)
	}

	before := current.Snapshot()
	uc.events.Publish(ctx, domain.EventDeleted, before, owner)
	logger.FromContext(ctx, uc.logger).Debug("todo deleted", zap.Uint32("todo_id", id), zap.Uint64("seq", tombstone.Seq))
	return &before, nil
}

func (uc *UseCase) current(ctx context.Context, owner string, id uint32) (domain.TodoVersion, error) {
	if err := checkOwner(owner); err != nil {
		return domain.TodoVersion{}, err
	}
	rows, err := uc.log.Scan(ctx, owner, &id)
	if err != nil {
		return domain.TodoVersion{}, storeError(err)
	}
	current, ok := domain.ResolveOne(rows, id)
	if !ok {
		return domain.TodoVersion{}, domain.ErrTodoNotFound
	}
	return current, nil
}

func (uc *UseCase) appendAndPublish(ctx context.Context, eventType domain.EventType, version domain.TodoVersion) (*domain.Todo, error) {
	if err := uc.log.Append(ctx, &version); err != nil {
		return nil, storeError(err)
	}

	todo := version.Snapshot()
	uc.events.Publish(ctx, eventType, todo, version.Owner)
	logger.FromContext(ctx, uc.logger).Debug("todo version appended",
		zap.String("event_type", string(eventType)),
		zap.Uint32("todo_id", version.ID),
		zap.Uint64("seq", version.Seq))
	return &todo, nil
}

func checkOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return domain.ErrUnauthorized
	}
	return nil
}

func storeError(err error) error {
	var dErr *domain.Error
	if errors.As(err, &dErr) {
		return err
	}
	return domain.WrapError(domain.ErrCodeUnavailable, domain.ErrStoreUnavailable.Message, err)
}
