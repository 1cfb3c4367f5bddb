package user

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sterihub/pkg/sentinel"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresStore(db), mock
}

func userColumns() []string {
	return []string{"id", "email", "role", "password_hash", "active", "created_at"}
}

func TestPostgresStore_Create(t *testing.T) {
	ctx := context.Background()
	u := newTestUser("tech@facility.example")

	t.Run("inserts the row", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(u.ID, u.Email, u.Role, u.PasswordHash, u.Active, u.CreatedAt).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Create(ctx, u))
	})

	t.Run("unique violation maps to conflict", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(u.ID, u.Email, u.Role, u.PasswordHash, u.Active, u.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := store.Create(ctx, u)
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("other database errors pass through", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(u.ID, u.Email, u.Role, u.PasswordHash, u.Active, u.CreatedAt).
			WillReturnError(sql.ErrConnDone)

		err := store.Create(ctx, u)
		require.Error(t, err)
		assert.NotErrorIs(t, err, sentinel.ErrConflict)
	})
}

func TestPostgresStore_FindByEmail(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	createdAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	t.Run("scans the matching row", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT id, email, role, password_hash, active, created_at\s+FROM users`).
			WithArgs("tech@facility.example").
			WillReturnRows(sqlmock.NewRows(userColumns()).
				AddRow(id, "tech@facility.example", "technician", "$2a$10$hash", true, createdAt))

		u, err := store.FindByEmail(ctx, "tech@facility.example")
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
		assert.Equal(t, "technician", u.Role)
		assert.True(t, u.Active)
		assert.Equal(t, createdAt, u.CreatedAt)
	})

	t.Run("no rows maps to not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT id, email, role, password_hash, active, created_at\s+FROM users`).
			WithArgs("ghost@facility.example").
			WillReturnRows(sqlmock.NewRows(userColumns()))

		_, err := store.FindByEmail(ctx, "ghost@facility.example")
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestPostgresStore_FindByID(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()

	t.Run("no rows maps to not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT id, email, role, password_hash, active, created_at\s+FROM users`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(userColumns()))

		_, err := store.FindByID(ctx, id)
		require.Error(t, err)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
