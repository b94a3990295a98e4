// Package store persists users, items and activity history.
package store

import (
	"context"
	"errors"

	"github.com/ayush/stash/internal/models"
)

var (
	// ErrNotFound is returned when no row matches, including rows owned by
	// someone else.
	ErrNotFound = errors.New("store: record not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("store: duplicate entry")
)

// Users is user persistence.
type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Items is item persistence. Every method is scoped to an owner.
type Items interface {
	InsertItem(ctx context.Context, it *models.Item) error
	GetItem(ctx context.Context, ownerID, itemID int64) (*models.Item, error)
	UpdateItem(ctx context.Context, it *models.Item) error
	DeleteItem(ctx context.Context, ownerID, itemID int64) error
	ListItems(ctx context.Context, ownerID int64) ([]models.Item, error)
}

// Activities is append-only activity persistence.
type Activities interface {
	InsertActivity(ctx context.Context, a *models.Activity) error
	RecentActivities(ctx context.Context, userID int64, limit int) ([]models.Activity, error)
}

// Tx is the set of repositories available inside a transaction.
type Tx interface {
	Users
	Items
	Activities
}

// Store reads outside a transaction and runs fn inside one. If fn returns an
// error nothing it wrote is kept.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close()
}
