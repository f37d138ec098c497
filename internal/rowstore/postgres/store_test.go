package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"domore/internal/rowstore"
	"domore/internal/rowstore/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresTestSuite runs the store against a throwaway PostgreSQL container.
type PostgresTestSuite struct {
	suite.Suite
	container  testcontainers.Container
	storage    *postgres.Storage
	connString string
	ctx        context.Context
	profileID  int64
}

func (s *PostgresTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	s.connString = fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	require.NoError(s.T(), postgres.Migrate(s.connString))

	s.storage, err = postgres.New(s.ctx, s.connString, postgres.Options{})
	require.NoError(s.T(), err)
}

func (s *PostgresTestSuite) TearDownSuite() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.connString != "" {
		s.assertRollback()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

// assertRollback runs every down migration and checks the schema is gone.
func (s *PostgresTestSuite) assertRollback() {
	require.NoError(s.T(), postgres.Down(s.connString))

	conn, err := pgx.Connect(s.ctx, s.connString)
	require.NoError(s.T(), err)
	defer conn.Close(s.ctx)

	var tasks, profiles *string
	err = conn.QueryRow(s.ctx,
		"SELECT to_regclass('public.tasks')::text, to_regclass('public.user_profiles')::text").
		Scan(&tasks, &profiles)
	require.NoError(s.T(), err)
	assert.Nil(s.T(), tasks)
	assert.Nil(s.T(), profiles)
}

// SetupTest empties both tables and creates a fresh owner profile.
func (s *PostgresTestSuite) SetupTest() {
	conn, err := pgx.Connect(s.ctx, s.connString)
	require.NoError(s.T(), err)
	defer conn.Close(s.ctx)

	_, err = conn.Exec(s.ctx, "TRUNCATE tasks, user_profiles RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err)

	rows, err := s.storage.Insert(s.ctx, rowstore.TableProfiles, rowstore.Row{"email": "owner@example.com"})
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 1)
	s.profileID = rows[0]["id"].(int64)
}

func TestPostgresTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(PostgresTestSuite))
}

func (s *PostgresTestSuite) insertTask(title string) rowstore.Row {
	rows, err := s.storage.Insert(s.ctx, rowstore.TableTasks, rowstore.Row{
		"user_id":  s.profileID,
		"title":    title,
		"priority": 2,
	})
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 1)
	return rows[0]
}

func (s *PostgresTestSuite) TestInsert_ReturnsGeneratedColumns() {
	row := s.insertTask("Buy milk")

	assert.NotZero(s.T(), row["id"])
	assert.Equal(s.T(), "Buy milk", row["title"])
	assert.Equal(s.T(), false, row["is_complete"])
	assert.Equal(s.T(), int16(2), row["priority"])
	assert.Nil(s.T(), row["due_date"])
	assert.IsType(s.T(), time.Time{}, row["created_at"])
}

func (s *PostgresTestSuite) TestInsert_EmptyTitleRejected() {
	_, err := s.storage.Insert(s.ctx, rowstore.TableTasks, rowstore.Row{
		"user_id": s.profileID,
		"title":   "",
	})
	assert.Error(s.T(), err)
}

func (s *PostgresTestSuite) TestSelect_OrderAndScope() {
	first := s.insertTask("first")
	time.Sleep(10 * time.Millisecond)
	second := s.insertTask("second")

	rows, err := s.storage.Select(s.ctx, rowstore.TableTasks,
		rowstore.Where(rowstore.Eq("user_id", s.profileID)), rowstore.Desc("created_at"))
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 2)
	assert.Equal(s.T(), second["id"], rows[0]["id"])
	assert.Equal(s.T(), first["id"], rows[1]["id"])

	rows, err = s.storage.Select(s.ctx, rowstore.TableTasks,
		rowstore.Where(rowstore.Eq("user_id", s.profileID+100)), nil)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), rows)
}

func (s *PostgresTestSuite) TestUpdate_TouchesUpdatedAt() {
	row := s.insertTask("original")
	time.Sleep(10 * time.Millisecond)

	rows, err := s.storage.Update(s.ctx, rowstore.TableTasks,
		rowstore.Where(rowstore.Eq("id", row["id"]), rowstore.Eq("user_id", s.profileID)),
		rowstore.Row{"title": "renamed", "description": nil})
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 1)
	assert.Equal(s.T(), "renamed", rows[0]["title"])
	assert.True(s.T(), rows[0]["updated_at"].(time.Time).After(row["updated_at"].(time.Time)))
}

func (s *PostgresTestSuite) TestUpdate_WrongOwnerMatchesNothing() {
	row := s.insertTask("mine")

	rows, err := s.storage.Update(s.ctx, rowstore.TableTasks,
		rowstore.Where(rowstore.Eq("id", row["id"]), rowstore.Eq("user_id", s.profileID+1)),
		rowstore.Row{"title": "stolen"})
	require.NoError(s.T(), err)
	assert.Empty(s.T(), rows)
}

func (s *PostgresTestSuite) TestToggle_Twice() {
	row := s.insertTask("toggle me")
	filter := rowstore.Where(rowstore.Eq("id", row["id"]), rowstore.Eq("user_id", s.profileID))

	rows, err := s.storage.Toggle(s.ctx, rowstore.TableTasks, filter, "is_complete")
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 1)
	assert.Equal(s.T(), true, rows[0]["is_complete"])

	rows, err = s.storage.Toggle(s.ctx, rowstore.TableTasks, filter, "is_complete")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), false, rows[0]["is_complete"])
}

func (s *PostgresTestSuite) TestDelete_ReturnsDeletedRows() {
	row := s.insertTask("bye")
	filter := rowstore.Where(rowstore.Eq("id", row["id"]), rowstore.Eq("user_id", s.profileID))

	rows, err := s.storage.Delete(s.ctx, rowstore.TableTasks, filter)
	require.NoError(s.T(), err)
	assert.Len(s.T(), rows, 1)

	rows, err = s.storage.Delete(s.ctx, rowstore.TableTasks, filter)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), rows)
}

func (s *PostgresTestSuite) TestHealthCheck() {
	assert.NoError(s.T(), s.storage.HealthCheck(s.ctx))
}
