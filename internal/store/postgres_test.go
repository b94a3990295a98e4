package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/stash/internal/models"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewPostgresStore(mock), mock
}

func TestPostgres_CreateUser(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "alice@x.com", "hash").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))

	u := &models.User{Username: "alice", Email: "alice@x.com", PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, now, u.CreatedAt)
}

func TestPostgres_CreateUser_Duplicate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "alice@x.com", "hash").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	err := s.CreateUser(context.Background(), &models.User{Username: "alice", Email: "alice@x.com", PasswordHash: "hash"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestPostgres_GetUserByUsername_NotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, username, email, password_hash, created_at FROM users WHERE username`).
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetUserByUsername(context.Background(), "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPostgres_GetItem_ScopedToOwner(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM stored_items WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(3), int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "title", "content", "created_at", "updated_at"}).
			AddRow(int64(3), int64(1), "Note A", "hello", now, now))
	mock.ExpectQuery(`FROM stored_items WHERE id = \$1 AND user_id = \$2`).
		WithArgs(int64(3), int64(2)).
		WillReturnError(pgx.ErrNoRows)

	it, err := s.GetItem(context.Background(), 1, 3)
	require.NoError(t, err)
	assert.Equal(t, "Note A", it.Title)

	_, err = s.GetItem(context.Background(), 2, 3)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPostgres_DeleteItem_NoRows(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM stored_items`).
		WithArgs(int64(9), int64(1)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeleteItem(context.Background(), 1, 9)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestPostgres_ListItems(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM stored_items WHERE user_id = \$1 ORDER BY id`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "title", "content", "created_at", "updated_at"}).
			AddRow(int64(1), int64(1), "a", "x", now, now).
			AddRow(int64(2), int64(1), "b", "y", now, now))

	items, err := s.ListItems(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[1].Title)
}

func TestPostgres_RecentActivities(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`FROM activity_history WHERE user_id = \$1`).
		WithArgs(int64(1), 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "activity_description", "timestamp"}).
			AddRow(int64(2), int64(1), "Created item: 'Note A'", now).
			AddRow(int64(1), int64(1), "User logged in", now.Add(-time.Minute)))

	acts, err := s.RecentActivities(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, acts, 2)
	assert.Equal(t, "Created item: 'Note A'", acts[0].Description)
}

func TestPostgres_WithTx_Commits(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO stored_items`).
		WithArgs(int64(1), "Note A", "hello").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(5), now, now))
	mock.ExpectQuery(`INSERT INTO activity_history`).
		WithArgs(int64(1), "Created item: 'Note A'").
		WillReturnRows(pgxmock.NewRows([]string{"id", "timestamp"}).AddRow(int64(8), now))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(tx Tx) error {
		if err := tx.InsertItem(context.Background(), &models.Item{UserID: 1, Title: "Note A", Content: "hello"}); err != nil {
			return err
		}
		return tx.InsertActivity(context.Background(), &models.Activity{UserID: 1, Description: "Created item: 'Note A'"})
	})
	require.NoError(t, err)
}

func TestPostgres_WithTx_RollsBackOnError(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO stored_items`).
		WithArgs(int64(1), "Note A", "hello").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(5), now, now))
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx Tx) error {
		if err := tx.InsertItem(context.Background(), &models.Item{UserID: 1, Title: "Note A", Content: "hello"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
