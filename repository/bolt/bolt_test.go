package bolt_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/todolog/domain"
	boltInfra "github.com/fastygo/todolog/internal/infrastructure/bolt"
	boltRepo "github.com/fastygo/todolog/repository/bolt"
)

func openStore(t *testing.T) *boltInfra.Store {
	t.Helper()
	store, err := boltInfra.Open(filepath.Join(t.TempDir(), "todos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTodoLogAppendAndScan(t *testing.T) {
	ctx := context.Background()
	log := boltRepo.NewTodoLog(openStore(t))
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := []domain.TodoVersion{
		{ID: 1, Owner: "alice", Text: "buy milk", UpdatedAt: now},
		{ID: 1, Owner: "alice", Text: "buy milk", Done: true, UpdatedAt: now.Add(time.Second)},
		{ID: 2, Owner: "alice", Text: "walk dog", UpdatedAt: now},
		{ID: 1, Owner: "bob", Text: "other tenant", UpdatedAt: now},
	}
	var lastSeq uint64
	for i := range rows {
		require.NoError(t, log.Append(ctx, &rows[i]))
		assert.Greater(t, rows[i].Seq, lastSeq)
		lastSeq = rows[i].Seq
	}

	all, err := log.Scan(ctx, "alice", nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	id := uint32(1)
	one, err := log.Scan(ctx, "alice", &id)
	require.NoError(t, err)
	require.Len(t, one, 2)
	assert.Equal(t, rows[0].Seq, one[0].Seq)
	assert.True(t, one[1].Done)

	none, err := log.Scan(ctx, "carol", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTodoLogMaxID(t *testing.T) {
	ctx := context.Background()
	log := boltRepo.NewTodoLog(openStore(t))

	max, err := log.MaxID(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, max)

	for _, id := range []uint32{3, 7, 5} {
		require.NoError(t, log.Append(ctx, &domain.TodoVersion{ID: id, Owner: "alice", Text: "x", UpdatedAt: time.Now()}))
	}
	require.NoError(t, log.Append(ctx, &domain.TodoVersion{ID: 9, Owner: "bob", Text: "x", UpdatedAt: time.Now()}))

	max, err = log.MaxID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint32(7), max)
}

func TestIDAllocatorSeedsFromLog(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	log := boltRepo.NewTodoLog(store)
	ids := boltRepo.NewIDAllocator(store)

	require.NoError(t, log.Append(ctx, &domain.TodoVersion{ID: 41, Owner: "alice", Text: "legacy", UpdatedAt: time.Now()}))

	next, err := ids.NextID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), next)

	next, err = ids.NextID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint32(43), next)

	next, err = ids.NextID(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, uint32(1), next)
}

func TestIDAllocatorConcurrentCallersGetDistinctIDs(t *testing.T) {
	ctx := context.Background()
	ids := boltRepo.NewIDAllocator(openStore(t))

	const callers = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[uint32]bool)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := ids.NextID(ctx, "alice")
			assert.NoError(t, err)
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, callers)
	for i := uint32(1); i <= callers; i++ {
		assert.True(t, seen[i], "missing id %d", i)
	}
}

func TestAuditInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	audits := boltRepo.NewAuditRepository(openStore(t))
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	rec := domain.AuditRecord{EventID: "evt-1", EventType: domain.EventCreated, TodoID: "1", UserID: "alice", Timestamp: at}

	inserted, err := audits.Insert(ctx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)

	rec.Title = "changed on redelivery"
	inserted, err = audits.Insert(ctx, rec)
	require.NoError(t, err)
	assert.False(t, inserted)

	count, err := audits.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	records, err := audits.List(ctx, repositoryFilter("alice", "1"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Title)
}

func TestAuditListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	audits := boltRepo.NewAuditRepository(openStore(t))
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, owner := range []string{"alice", "alice", "bob", "alice"} {
		_, err := audits.Insert(ctx, domain.AuditRecord{
			EventID:   fmt.Sprintf("evt-%d", i),
			EventType: domain.EventUpdated,
			TodoID:    "1",
			UserID:    owner,
			Timestamp: at.Add(time.Duration(-i) * time.Second),
		})
		require.NoError(t, err)
	}

	records, err := audits.List(ctx, repositoryFilter("alice", "1"))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "evt-0", records[0].EventID)
	assert.Equal(t, "evt-3", records[2].EventID)

	filter := repositoryFilter("alice", "1")
	filter.Limit, filter.Offset = 1, 1
	records, err = audits.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "evt-1", records[0].EventID)

	filter.Offset = 3
	records, err = audits.List(ctx, filter)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestAuditListPagesPastTheLimit(t *testing.T) {
	ctx := context.Background()
	audits := boltRepo.NewAuditRepository(openStore(t))
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 105; i++ {
		_, err := audits.Insert(ctx, domain.AuditRecord{
			EventID:   fmt.Sprintf("evt-%03d", i),
			EventType: domain.EventToggled,
			TodoID:    "1",
			UserID:    "alice",
			Timestamp: at.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	records, err := audits.List(ctx, repositoryFilter("alice", "1"))
	require.NoError(t, err)
	require.Len(t, records, 100)
	assert.Equal(t, "evt-104", records[0].EventID)

	filter := repositoryFilter("alice", "1")
	filter.Offset = 100
	records, err = audits.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "evt-004", records[0].EventID)
	assert.Equal(t, "evt-000", records[4].EventID)
}
