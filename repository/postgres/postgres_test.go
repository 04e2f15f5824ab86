package postgres_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"github.com/fastygo/todolog/domain"
	"github.com/fastygo/todolog/internal/config"
	pgInfra "github.com/fastygo/todolog/internal/infrastructure/postgres"
	"github.com/fastygo/todolog/repository"
	"github.com/fastygo/todolog/repository/postgres"
)

// PostgresSuite runs against a real database named by TEST_DATABASE_URL. Each test uses a
// fresh owner so rows from earlier runs never interfere; the log table rejects deletes.
type PostgresSuite struct {
	suite.Suite
	pool   *pgxpool.Pool
	log    repository.TodoLog
	ids    repository.IDAllocator
	audits repository.AuditRepository
	owner  string
}

func TestPostgresSuite(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	suite.Run(t, &PostgresSuite{})
}

func (s *PostgresSuite) SetupSuite() {
	cfg := &config.Config{
		Database:   config.DatabaseConfig{URL: os.Getenv("TEST_DATABASE_URL"), Name: "todolog_test"},
		Migrations: config.MigrationsConfig{Enabled: true, Path: "../../assets/migrations"},
	}
	s.Require().NoError(pgInfra.RunMigrations(cfg, nil))

	pool, err := pgInfra.NewPool(context.Background(), cfg.Database, nil)
	s.Require().NoError(err)
	s.pool = pool
	s.log = postgres.NewTodoLog(pool)
	s.ids = postgres.NewIDAllocator(pool)
	s.audits = postgres.NewAuditRepository(pool)
}

func (s *PostgresSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresSuite) SetupTest() {
	s.owner = "owner-" + uuid.NewString()
}

func (s *PostgresSuite) TestAppendAssignsIncreasingSeq() {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	first := domain.TodoVersion{ID: 1, Owner: s.owner, Text: "buy milk", UpdatedAt: now}
	second := first.Next(now)
	second.Done = true
	s.Require().NoError(s.log.Append(ctx, &first))
	s.Require().NoError(s.log.Append(ctx, &second))
	s.Greater(second.Seq, first.Seq)

	id := uint32(1)
	rows, err := s.log.Scan(ctx, s.owner, &id)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)

	latest, ok := domain.ResolveOne(rows, 1)
	s.Require().True(ok)
	s.True(latest.Done)
	s.Equal(now, latest.UpdatedAt)
}

func (s *PostgresSuite) TestLogRejectsUpdates() {
	ctx := context.Background()
	v := domain.TodoVersion{ID: 1, Owner: s.owner, Text: "immutable", UpdatedAt: time.Now().UTC()}
	s.Require().NoError(s.log.Append(ctx, &v))

	_, err := s.pool.Exec(ctx, `UPDATE todo_versions SET text = 'changed' WHERE seq = $1`, int64(v.Seq))
	s.Error(err)
	_, err = s.pool.Exec(ctx, `DELETE FROM todo_versions WHERE seq = $1`, int64(v.Seq))
	s.Error(err)
}

func (s *PostgresSuite) TestMaxIDAndAllocatorSeed() {
	ctx := context.Background()

	max, err := s.log.MaxID(ctx, s.owner)
	s.Require().NoError(err)
	s.Zero(max)

	legacy := domain.TodoVersion{ID: 7, Owner: s.owner, Text: "from before counters", UpdatedAt: time.Now().UTC()}
	s.Require().NoError(s.log.Append(ctx, &legacy))

	next, err := s.ids.NextID(ctx, s.owner)
	s.Require().NoError(err)
	s.Equal(uint32(8), next)
	next, err = s.ids.NextID(ctx, s.owner)
	s.Require().NoError(err)
	s.Equal(uint32(9), next)
}

func (s *PostgresSuite) TestAllocatorConcurrent() {
	ctx := context.Background()
	const n = 20

	var (
		mu   sync.Mutex
		seen = map[uint32]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.ids.NextID(ctx, s.owner)
			s.NoError(err)
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	s.Len(seen, n)
}

func (s *PostgresSuite) TestAuditInsertIsIdempotent() {
	ctx := context.Background()
	event := domain.NewEvent(uuid.NewString(), domain.EventCreated, domain.Todo{ID: 1, Text: "buy milk"}, s.owner, time.Now())
	record := domain.NewAuditRecord(event, time.Now())

	inserted, err := s.audits.Insert(ctx, record)
	s.Require().NoError(err)
	s.True(inserted)

	inserted, err = s.audits.Insert(ctx, record)
	s.Require().NoError(err)
	s.False(inserted)

	records, err := s.audits.List(ctx, repository.AuditFilter{UserID: s.owner, TodoID: "1"})
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(record.EventID, records[0].EventID)
	s.Equal("todo 1 created (open)", records[0].Description)
}

func (s *PostgresSuite) TestAuditListNewestFirstWithOffset() {
	ctx := context.Background()
	at := time.Now().UTC().Truncate(time.Second)
	var ids []string
	for i := 0; i < 3; i++ {
		event := domain.NewEvent(uuid.NewString(), domain.EventToggled, domain.Todo{ID: 2, Done: i%2 == 0}, s.owner, at.Add(time.Duration(i)*time.Second))
		_, err := s.audits.Insert(ctx, domain.NewAuditRecord(event, time.Now()))
		s.Require().NoError(err)
		ids = append(ids, event.EventID)
	}

	records, err := s.audits.List(ctx, repository.AuditFilter{UserID: s.owner, TodoID: "2"})
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal(ids[2], records[0].EventID)
	s.Equal(ids[0], records[2].EventID)

	records, err = s.audits.List(ctx, repository.AuditFilter{UserID: s.owner, TodoID: "2", Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(ids[1], records[0].EventID)
}
