package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/ayush/stash/internal/models"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is the subset of *pgxpool.Pool the store needs.
type Pool interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore persists everything in PostgreSQL.
type PostgresStore struct {
	queries
	pool Pool
}

func NewPostgresStore(pool Pool) *PostgresStore {
	return &PostgresStore{queries: queries{db: pool}, pool: pool}
}

// WithTx runs fn in a transaction, committing only if fn succeeds. Panics
// roll back and are rethrown.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			logrus.WithError(rbErr).Warn("Rollback failed")
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

type queries struct {
	db querier
}

func (q queries) CreateUser(ctx context.Context, u *models.User) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		u.Username, u.Email, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", mapErr(err))
	}
	return nil
}

func (q queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return q.getUser(ctx, `WHERE id = $1`, id)
}

func (q queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return q.getUser(ctx, `WHERE username = $1`, username)
}

func (q queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return q.getUser(ctx, `WHERE email = $1`, email)
}

func (q queries) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := q.db.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", mapErr(err))
	}
	return &u, nil
}

func (q queries) InsertItem(ctx context.Context, it *models.Item) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO stored_items (user_id, title, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		it.UserID, it.Title, it.Content,
	).Scan(&it.ID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert item: %w", mapErr(err))
	}
	return nil
}

func (q queries) GetItem(ctx context.Context, ownerID, itemID int64) (*models.Item, error) {
	var it models.Item
	err := q.db.QueryRow(ctx,
		`SELECT id, user_id, title, content, created_at, updated_at
		 FROM stored_items WHERE id = $1 AND user_id = $2`,
		itemID, ownerID,
	).Scan(&it.ID, &it.UserID, &it.Title, &it.Content, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", itemID, mapErr(err))
	}
	return &it, nil
}

// UpdateItem writes title and content and refreshes updated_at. The owner
// column is never written.
func (q queries) UpdateItem(ctx context.Context, it *models.Item) error {
	err := q.db.QueryRow(ctx,
		`UPDATE stored_items SET title = $1, content = $2, updated_at = NOW()
		 WHERE id = $3 AND user_id = $4
		 RETURNING updated_at`,
		it.Title, it.Content, it.ID, it.UserID,
	).Scan(&it.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update item %d: %w", it.ID, mapErr(err))
	}
	return nil
}

func (q queries) DeleteItem(ctx context.Context, ownerID, itemID int64) error {
	tag, err := q.db.Exec(ctx,
		`DELETE FROM stored_items WHERE id = $1 AND user_id = $2`, itemID, ownerID)
	if err != nil {
		return fmt.Errorf("delete item %d: %w", itemID, mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete item %d: %w", itemID, ErrNotFound)
	}
	return nil
}

func (q queries) ListItems(ctx context.Context, ownerID int64) ([]models.Item, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, user_id, title, content, created_at, updated_at
		 FROM stored_items WHERE user_id = $1 ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Item, error) {
		var it models.Item
		err := row.Scan(&it.ID, &it.UserID, &it.Title, &it.Content, &it.CreatedAt, &it.UpdatedAt)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

func (q queries) InsertActivity(ctx context.Context, a *models.Activity) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO activity_history (user_id, activity_description)
		 VALUES ($1, $2)
		 RETURNING id, timestamp`,
		a.UserID, a.Description,
	).Scan(&a.ID, &a.Timestamp)
	if err != nil {
		return fmt.Errorf("insert activity: %w", mapErr(err))
	}
	return nil
}

func (q queries) RecentActivities(ctx context.Context, userID int64, limit int) ([]models.Activity, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, user_id, activity_description, timestamp
		 FROM activity_history WHERE user_id = $1
		 ORDER BY timestamp DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}
	acts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Activity, error) {
		var a models.Activity
		err := row.Scan(&a.ID, &a.UserID, &a.Description, &a.Timestamp)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}
	return acts, nil
}

// mapErr translates driver errors into store sentinels.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
