package repository

import (
	"context"

	"github.com/fastygo/todolog/domain"
)

// TodoLog is the append-only store of todo versions.
//
// Implementations never update or delete rows and never enforce business rules on Append;
// Scan returns rows in no particular order and callers resolve them with domain.ResolveLatest.
type TodoLog interface {
	// Append persists one new version and sets its Seq.
	Append(ctx context.Context, version *domain.TodoVersion) error
	// Scan returns every version of the owner, or of a single todo when id is non-nil.
	Scan(ctx context.Context, owner string, id *uint32) ([]domain.TodoVersion, error)
	// MaxID returns the highest todo id recorded for the owner, zero when there is none.
	MaxID(ctx context.Context, owner string) (uint32, error)
}

// IDAllocator hands out todo ids. NextID is atomic: concurrent callers for the same owner
// never receive the same value, and values never go backwards past the log's MaxID.
type IDAllocator interface {
	NextID(ctx context.Context, owner string) (uint32, error)
}
