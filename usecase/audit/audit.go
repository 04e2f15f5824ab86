package audit

import (
	"context"
	"strconv"
	"strings"

	"github.com/fastygo/todolog/domain"
	"github.com/fastygo/todolog/repository"
)

// UseCase reads the audit trail written by the event ingester. The trail is eventually
// consistent with the todo log and may be missing events lost in transport.
type UseCase struct {
	repo repository.AuditRepository
}

func New(repo repository.AuditRepository) *UseCase {
	return &UseCase{repo: repo}
}

// Trail returns one page of the recorded events of a todo, newest first.
func (uc *UseCase) Trail(ctx context.Context, owner string, todoID uint32, limit, offset int) ([]domain.AuditRecord, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, domain.ErrUnauthorized
	}
	if offset < 0 {
		offset = 0
	}
	records, err := uc.repo.List(ctx, repository.AuditFilter{
		UserID: owner,
		TodoID: strconv.FormatUint(uint64(todoID), 10),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnavailable, "audit store unavailable", err)
	}
	if records == nil {
		records = []domain.AuditRecord{}
	}
	return records, nil
}
