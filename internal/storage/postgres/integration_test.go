//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"repost_monitor/internal/storage/postgres/migrations"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db

	s.Require().NoError(migrations.Run(db.DB))
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM watermarks")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) TestWatermarkStore_GetAbsent() {
	store := NewWatermarkStore(s.db)

	itemID, err := store.Get(s.ctx, "never-seen")
	s.NoError(err)
	s.Equal("", itemID)
}

func (s *PostgresIntegrationSuite) TestWatermarkStore_SetAndGet() {
	store := NewWatermarkStore(s.db)

	err := store.Set(s.ctx, "alice", "item100")
	s.NoError(err)

	itemID, err := store.Get(s.ctx, "alice")
	s.NoError(err)
	s.Equal("item100", itemID)
}

func (s *PostgresIntegrationSuite) TestWatermarkStore_SetReplacesExisting() {
	store := NewWatermarkStore(s.db)

	s.NoError(store.Set(s.ctx, "alice", "item100"))
	s.NoError(store.Set(s.ctx, "alice", "item200"))

	itemID, err := store.Get(s.ctx, "alice")
	s.NoError(err)
	s.Equal("item200", itemID)

	var count int
	err = s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM watermarks WHERE account = $1", "alice")
	s.NoError(err)
	s.Equal(1, count)
}

func (s *PostgresIntegrationSuite) TestWatermarkStore_AccountsAreIndependent() {
	store := NewWatermarkStore(s.db)

	s.NoError(store.Set(s.ctx, "alice", "item100"))
	s.NoError(store.Set(s.ctx, "bob", "item900"))
	s.NoError(store.Set(s.ctx, "alice", "item101"))

	aliceID, err := store.Get(s.ctx, "alice")
	s.NoError(err)
	s.Equal("item101", aliceID)

	bobID, err := store.Get(s.ctx, "bob")
	s.NoError(err)
	s.Equal("item900", bobID)
}
