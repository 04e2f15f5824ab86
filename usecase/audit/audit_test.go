package audit_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/todolog/domain"
	boltInfra "github.com/fastygo/todolog/internal/infrastructure/bolt"
	"github.com/fastygo/todolog/repository"
	boltRepo "github.com/fastygo/todolog/repository/bolt"
	"github.com/fastygo/todolog/usecase/audit"
)

func openAudits(t *testing.T) repository.AuditRepository {
	t.Helper()
	store, err := boltInfra.Open(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return boltRepo.NewAuditRepository(store)
}

func TestTrailPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := openAudits(t)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, eventType := range []domain.EventType{domain.EventCreated, domain.EventToggled, domain.EventUpdated} {
		event := domain.NewEvent("evt-"+string(eventType), eventType, domain.Todo{ID: 7, Text: "buy milk"}, "alice", at.Add(time.Duration(i)*time.Second))
		_, err := repo.Insert(ctx, domain.NewAuditRecord(event, at))
		require.NoError(t, err)
	}
	uc := audit.New(repo)

	records, err := uc.Trail(ctx, "alice", 7, 2, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.EventUpdated, records[0].EventType)
	assert.Equal(t, domain.EventToggled, records[1].EventType)

	records, err = uc.Trail(ctx, "alice", 7, 2, 2)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.EventCreated, records[0].EventType)

	records, err = uc.Trail(ctx, "alice", 7, 2, -5)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestTrailEmptyAndUnauthorized(t *testing.T) {
	uc := audit.New(openAudits(t))

	records, err := uc.Trail(context.Background(), "alice", 1, 10, 0)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	_, err = uc.Trail(context.Background(), " ", 1, 10, 0)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}
