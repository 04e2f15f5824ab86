package repository

import (
	"context"

	"github.com/fastygo/todolog/domain"
)

// AuditFilter selects a page of the audit trail. Pages run newest first; Offset skips that
// many matching records.
type AuditFilter struct {
	UserID string
	TodoID string
	Limit  int
	Offset int
}

// AuditRepository stores the audit trail keyed by event id.
type AuditRepository interface {
	// Insert records the entry unless its event id is already present. It reports whether a
	// new row was written; a duplicate is not an error.
	Insert(ctx context.Context, record domain.AuditRecord) (bool, error)
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditRecord, error)
	Count(ctx context.Context) (int, error)
}
