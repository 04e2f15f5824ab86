package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/todolog/domain"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func version(id uint32, seq uint64, offset time.Duration, text string, deleted bool) domain.TodoVersion {
	return domain.TodoVersion{
		ID:        id,
		Owner:     "alice",
		Text:      text,
		UpdatedAt: base.Add(offset),
		Deleted:   deleted,
		Seq:       seq,
	}
}

func TestResolveLatestPicksNewestPerID(t *testing.T) {
	rows := []domain.TodoVersion{
		version(2, 3, 2*time.Second, "b2", false),
		version(1, 1, 0, "a1", false),
		version(2, 2, time.Second, "b1", false),
		version(1, 4, 3*time.Second, "a2", false),
	}

	todos := domain.ResolveLatest(rows)

	require.Len(t, todos, 2)
	assert.Equal(t, uint32(1), todos[0].ID)
	assert.Equal(t, "a2", todos[0].Text)
	assert.Equal(t, uint32(2), todos[1].ID)
	assert.Equal(t, "b2", todos[1].Text)
}

func TestResolveLatestDropsTombstones(t *testing.T) {
	rows := []domain.TodoVersion{
		version(1, 1, 0, "a", false),
		version(1, 2, time.Second, "a", true),
		version(2, 3, 0, "b", false),
	}

	todos := domain.ResolveLatest(rows)

	require.Len(t, todos, 1)
	assert.Equal(t, uint32(2), todos[0].ID)
}

func TestResolveLatestIgnoresStaleRowAfterTombstone(t *testing.T) {
	// A stale, older live row must not resurrect a deleted todo regardless of scan order.
	rows := []domain.TodoVersion{
		version(1, 2, time.Second, "a", true),
		version(1, 1, 0, "a", false),
	}

	assert.Empty(t, domain.ResolveLatest(rows))
	_, ok := domain.ResolveOne(rows, 1)
	assert.False(t, ok)
}

func TestResolveTieBreaksOnSeq(t *testing.T) {
	rows := []domain.TodoVersion{
		version(1, 7, 0, "later insert", false),
		version(1, 5, 0, "earlier insert", false),
	}

	current, ok := domain.ResolveOne(rows, 1)
	require.True(t, ok)
	assert.Equal(t, "later insert", current.Text)

	todos := domain.ResolveLatest([]domain.TodoVersion{rows[1], rows[0]})
	require.Len(t, todos, 1)
	assert.Equal(t, "later insert", todos[0].Text)
}

func TestResolveOneMissing(t *testing.T) {
	_, ok := domain.ResolveOne(nil, 1)
	assert.False(t, ok)

	_, ok = domain.ResolveOne([]domain.TodoVersion{version(2, 1, 0, "b", false)}, 1)
	assert.False(t, ok)
}

func TestResolveMatchesBruteForce(t *testing.T) {
	// For every permutation of a small history the resolved state equals the maximum live row.
	history := []domain.TodoVersion{
		version(1, 1, 0, "v1", false),
		version(1, 2, time.Second, "v2", false),
		version(1, 3, time.Second, "v3", false),
		version(1, 4, 2*time.Second, "v3", true),
		version(1, 5, 3*time.Second, "v4", false),
	}

	for n := 1; n <= len(history); n++ {
		prefix := history[:n]
		want := prefix[0]
		for _, v := range prefix[1:] {
			if domain.Newer(v, want) {
				want = v
			}
		}

		permute(append([]domain.TodoVersion(nil), prefix...), 0, func(rows []domain.TodoVersion) {
			got, ok := domain.ResolveOne(rows, 1)
			if want.Deleted {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, want.Seq, got.Seq)
		})
	}
}

func TestSortVersions(t *testing.T) {
	rows := []domain.TodoVersion{
		version(1, 3, time.Second, "c", false),
		version(1, 1, 0, "a", false),
		version(1, 2, time.Second, "b", false),
	}

	domain.SortVersions(rows)

	assert.Equal(t, []uint64{1, 2, 3}, []uint64{rows[0].Seq, rows[1].Seq, rows[2].Seq})
}

func TestNextRevision(t *testing.T) {
	last := base.Add(500 * time.Microsecond)

	assert.Equal(t, base.Add(time.Second), domain.NextRevision(last, base.Add(time.Second+300)))
	assert.Equal(t, last.Add(time.Microsecond), domain.NextRevision(last, last))
	assert.Equal(t, last.Add(time.Microsecond), domain.NextRevision(last, base))
	assert.True(t, domain.NextRevision(time.Time{}, base).Equal(base))
}

func permute(rows []domain.TodoVersion, k int, fn func([]domain.TodoVersion)) {
	if k == len(rows) {
		fn(rows)
		return
	}
	for i := k; i < len(rows); i++ {
		rows[k], rows[i] = rows[i], rows[k]
		permute(rows, k+1, fn)
		rows[k], rows[i] = rows[i], rows[k]
	}
}
