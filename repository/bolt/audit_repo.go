package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/todolog/domain"
	boltInfra "github.com/fastygo/todolog/internal/infrastructure/bolt"
	"github.com/fastygo/todolog/repository"
)

type auditRepository struct {
	db *bbolt.DB
}

// NewAuditRepository returns an embedded AuditRepository keyed by event id.
func NewAuditRepository(store *boltInfra.Store) repository.AuditRepository {
	return &auditRepository{db: store.DB()}
}

func (r *auditRepository) Insert(ctx context.Context, record domain.AuditRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return false, err
	}

	var inserted bool
	err = r.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(boltInfra.BucketAudit)
		key := []byte(record.EventID)
		if bucket.Get(key) != nil {
			return nil
		}
		inserted = true
		return bucket.Put(key, payload)
	})
	if err != nil {
		return false, fmt.Errorf("insert audit record: %w", err)
	}
	return inserted, nil
}

func (r *auditRepository) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []domain.AuditRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltInfra.BucketAudit).ForEach(func(_, value []byte) error {
			var rec domain.AuditRecord
			if err := json.Unmarshal(value, &rec); err != nil {
				return fmt.Errorf("decode audit record: %w", err)
			}
			if filter.UserID != "" && rec.UserID != filter.UserID {
				return nil
			}
			if filter.TodoID != "" && rec.TodoID != filter.TodoID {
				return nil
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].Timestamp.Equal(records[j].Timestamp) {
			return records[i].Timestamp.After(records[j].Timestamp)
		}
		return records[i].EventID > records[j].EventID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(records) {
			return nil, nil
		}
		records = records[filter.Offset:]
	}
	if limit := clampLimit(filter.Limit); len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *auditRepository) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var count int
	err := r.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(boltInfra.BucketAudit).Stats().KeyN
		return nil
	})
	return count, err
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}
