package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/todolog/repository"
)

type idAllocator struct {
	pool *pgxpool.Pool
}

// NewIDAllocator returns an allocator backed by the todo_id_counters table. Each call is a
// single upsert, so two concurrent creates for one owner serialize on the counter row.
func NewIDAllocator(pool *pgxpool.Pool) repository.IDAllocator {
	return &idAllocator{pool: pool}
}

func (a *idAllocator) NextID(ctx context.Context, owner string) (uint32, error) {
	// The seed from todo_versions keeps ids increasing for logs written before the counter
	// existed.
	const query = `
	INSERT INTO todo_id_counters (owner, last_id)
	VALUES ($1, (SELECT COALESCE(MAX(id), 0) FROM todo_versions WHERE owner = $1) + 1)
	ON CONFLICT (owner) DO UPDATE
	SET last_id = GREATEST(todo_id_counters.last_id + 1, EXCLUDED.last_id)
	RETURNING last_id
	`

	var next int64
	if err := a.pool.QueryRow(ctx, query, owner).Scan(&next); err != nil {
		return 0, fmt.Errorf("allocate todo id: %w", err)
	}
	return toTodoID(next)
}
