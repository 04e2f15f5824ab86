package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	bbolt "go.etcd.io/bbolt"

	boltInfra "github.com/fastygo/todolog/internal/infrastructure/bolt"
	"github.com/fastygo/todolog/repository"
)

var errIDSpaceExhausted = errors.New("todo id space exhausted")

type idAllocator struct {
	db *bbolt.DB
}

// NewIDAllocator returns an allocator over BucketCounters. Bolt runs one write transaction at
// a time, which makes the read-increment-write below atomic.
func NewIDAllocator(store *boltInfra.Store) repository.IDAllocator {
	return &idAllocator{db: store.DB()}
}

func (a *idAllocator) NextID(ctx context.Context, owner string) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var next uint32
	err := a.db.Update(func(tx *bbolt.Tx) error {
		counters := tx.Bucket(boltInfra.BucketCounters)

		last, err := maxID(tx, owner)
		if err != nil {
			return err
		}
		if raw := counters.Get([]byte(owner)); len(raw) == 4 {
			if stored := binary.BigEndian.Uint32(raw); stored > last {
				last = stored
			}
		}
		if last == math.MaxUint32 {
			return errIDSpaceExhausted
		}

		next = last + 1
		value := make([]byte, 4)
		binary.BigEndian.PutUint32(value, next)
		return counters.Put([]byte(owner), value)
	})
	if err != nil {
		return 0, fmt.Errorf("allocate todo id: %w", err)
	}
	return next, nil
}
