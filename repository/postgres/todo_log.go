package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/todolog/domain"
	"github.com/fastygo/todolog/repository"
)

var versionColumns = []string{"seq", "id", "owner", "text", "done", "updated_at", "deleted"}

type todoLog struct {
	pool *pgxpool.Pool
}

// NewTodoLog returns a Postgres-backed TodoLog over the todo_versions table.
// The table rejects UPDATE and DELETE through a trigger, see assets/migrations.
func NewTodoLog(pool *pgxpool.Pool) repository.TodoLog {
	return &todoLog{pool: pool}
}

func (r *todoLog) Append(ctx context.Context, version *domain.TodoVersion) error {
	if version == nil {
		return errNilVersion
	}

	const query = `
	INSERT INTO todo_versions (id, owner, text, done, updated_at, deleted)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING seq
	`

	var seq int64
	if err := r.pool.QueryRow(ctx, query,
		int64(version.ID),
		version.Owner,
		version.Text,
		version.Done,
		version.UpdatedAt,
		version.Deleted,
	).Scan(&seq); err != nil {
		return fmt.Errorf("append todo version: %w", err)
	}
	version.Seq = uint64(seq)
	return nil
}

func (r *todoLog) Scan(ctx context.Context, owner string, id *uint32) ([]domain.TodoVersion, error) {
	where := sq.Eq{"owner": owner}
	if id != nil {
		where["id"] = int64(*id)
	}

	query, args, err := psql.
		Select(versionColumns...).
		From("todo_versions").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build scan query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan todo versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.TodoVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todo versions: %w", err)
	}
	return versions, nil
}

func (r *todoLog) MaxID(ctx context.Context, owner string) (uint32, error) {
	const query = `SELECT COALESCE(MAX(id), 0) FROM todo_versions WHERE owner = $1`

	var max int64
	if err := r.pool.QueryRow(ctx, query, owner).Scan(&max); err != nil {
		return 0, fmt.Errorf("max todo id: %w", err)
	}
	return toTodoID(max)
}

func scanVersion(row rowScanner) (domain.TodoVersion, error) {
	var (
		v   domain.TodoVersion
		seq int64
		id  int64
	)
	if err := row.Scan(&seq, &id, &v.Owner, &v.Text, &v.Done, &v.UpdatedAt, &v.Deleted); err != nil {
		return domain.TodoVersion{}, fmt.Errorf("scan todo version: %w", err)
	}
	todoID, err := toTodoID(id)
	if err != nil {
		return domain.TodoVersion{}, err
	}
	v.ID = todoID
	v.Seq = uint64(seq)
	v.UpdatedAt = v.UpdatedAt.UTC()
	return v, nil
}
