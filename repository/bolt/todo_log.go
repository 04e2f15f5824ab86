package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/todolog/domain"
	boltInfra "github.com/fastygo/todolog/internal/infrastructure/bolt"
	"github.com/fastygo/todolog/repository"
)

// todoLog keeps one nested bucket per owner inside BucketVersions. Keys are the big-endian
// global sequence, so cursor order equals insertion order.
type todoLog struct {
	db *bbolt.DB
}

// NewTodoLog returns an embedded TodoLog over the bolt store.
func NewTodoLog(store *boltInfra.Store) repository.TodoLog {
	return &todoLog{db: store.DB()}
}

func (r *todoLog) Append(ctx context.Context, version *domain.TodoVersion) error {
	if version == nil {
		return errors.New("nil todo version")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(boltInfra.BucketVersions)
		owner, err := root.CreateBucketIfNotExists([]byte(version.Owner))
		if err != nil {
			return fmt.Errorf("owner bucket: %w", err)
		}
		seq, err := root.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}

		row := *version
		row.Seq = seq
		payload, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if err := owner.Put(seqKey(seq), payload); err != nil {
			return fmt.Errorf("append todo version: %w", err)
		}
		version.Seq = seq
		return nil
	})
}

func (r *todoLog) Scan(ctx context.Context, owner string, id *uint32) ([]domain.TodoVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var versions []domain.TodoVersion
	err := r.db.View(func(tx *bbolt.Tx) error {
		return eachVersion(tx, owner, func(v domain.TodoVersion) error {
			if id == nil || v.ID == *id {
				versions = append(versions, v)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan todo versions: %w", err)
	}
	return versions, nil
}

func (r *todoLog) MaxID(ctx context.Context, owner string) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var max uint32
	err := r.db.View(func(tx *bbolt.Tx) error {
		var err error
		max, err = maxID(tx, owner)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("max todo id: %w", err)
	}
	return max, nil
}

func eachVersion(tx *bbolt.Tx, owner string, fn func(domain.TodoVersion) error) error {
	bucket := tx.Bucket(boltInfra.BucketVersions).Bucket([]byte(owner))
	if bucket == nil {
		return nil
	}
	return bucket.ForEach(func(_, value []byte) error {
		var v domain.TodoVersion
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("decode todo version: %w", err)
		}
		return fn(v)
	})
}

func maxID(tx *bbolt.Tx, owner string) (uint32, error) {
	var max uint32
	err := eachVersion(tx, owner, func(v domain.TodoVersion) error {
		if v.ID > max {
			max = v.ID
		}
		return nil
	})
	return max, err
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
