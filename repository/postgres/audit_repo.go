package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/todolog/domain"
	"github.com/fastygo/todolog/repository"
)

var auditColumns = []string{
	"event_id", "event_type", "todo_id", "title", "description",
	"is_done", "user_id", `"timestamp"`, "recorded_at",
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository returns a Postgres-backed AuditRepository over the todo_audit table.
func NewAuditRepository(pool *pgxpool.Pool) repository.AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Insert(ctx context.Context, record domain.AuditRecord) (bool, error) {
	const query = `
	INSERT INTO todo_audit (event_id, event_type, todo_id, title, description, is_done, user_id, "timestamp", recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (event_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		record.EventID,
		string(record.EventType),
		record.TodoID,
		record.Title,
		record.Description,
		record.IsDone,
		record.UserID,
		record.Timestamp,
		record.RecordedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert audit record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *auditRepository) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditRecord, error) {
	builder := psql.
		Select(auditColumns...).
		From("todo_audit").
		OrderBy(`"timestamp" DESC`, "event_id DESC").
		Limit(uint64(clampLimit(filter.Limit)))
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}
	if filter.UserID != "" {
		builder = builder.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.TodoID != "" {
		builder = builder.Where(sq.Eq{"todo_id": filter.TodoID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit list query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var (
			rec       domain.AuditRecord
			eventType string
		)
		if err := rows.Scan(
			&rec.EventID,
			&eventType,
			&rec.TodoID,
			&rec.Title,
			&rec.Description,
			&rec.IsDone,
			&rec.UserID,
			&rec.Timestamp,
			&rec.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.EventType = domain.EventType(eventType)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

func (r *auditRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM todo_audit`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return count, nil
}
