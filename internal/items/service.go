// Package items manages stored items on behalf of their owner.
package items

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/ayush/stash/internal/activity"
	"github.com/ayush/stash/internal/auth"
	"github.com/ayush/stash/internal/models"
	"github.com/ayush/stash/internal/store"
)

var (
	// ErrNotFound covers both missing items and items owned by someone else.
	ErrNotFound = errors.New("item not found")
	// ErrInvalid is returned when title or content is blank.
	ErrInvalid = errors.New("title and content are required")
	// ErrTitleTooLong is returned when the title exceeds MaxTitleLen.
	ErrTitleTooLong = fmt.Errorf("title longer than %d characters", MaxTitleLen)
)

// MaxTitleLen matches the stored_items.title column.
const MaxTitleLen = 120

// Service is the item manager. Every operation takes the owner explicitly.
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

func normalize(req models.ItemRequest) (models.ItemRequest, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Title == "" || req.Content == "" {
		return req, ErrInvalid
	}
	if utf8.RuneCountInString(req.Title) > MaxTitleLen {
		return req, ErrTitleTooLong
	}
	return req, nil
}

// Create inserts a new item for owner and records it.
func (s *Service) Create(ctx context.Context, owner *models.User, req models.ItemRequest) (*models.Item, error) {
	if owner == nil {
		return nil, auth.ErrUnauthenticated
	}
	req, err := normalize(req)
	if err != nil {
		return nil, err
	}

	it := &models.Item{UserID: owner.ID, Title: req.Title, Content: req.Content}
	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertItem(ctx, it); err != nil {
			return err
		}
		return activity.Record(ctx, tx, owner, activity.Created(it.Title))
	})
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	logrus.WithFields(logrus.Fields{"user_id": owner.ID, "item_id": it.ID}).Info("Item created")
	return it, nil
}

// Get returns itemID if owner owns it.
func (s *Service) Get(ctx context.Context, owner *models.User, itemID int64) (*models.Item, error) {
	if owner == nil {
		return nil, auth.ErrUnauthenticated
	}
	return get(ctx, s.store, owner, itemID)
}

func get(ctx context.Context, items store.Items, owner *models.User, itemID int64) (*models.Item, error) {
	it, err := items.GetItem(ctx, owner.ID, itemID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// Update replaces title and content of an owned item and records the title
// change. Ownership is checked before the input is validated.
func (s *Service) Update(ctx context.Context, owner *models.User, itemID int64, req models.ItemRequest) (*models.Item, error) {
	if owner == nil {
		return nil, auth.ErrUnauthenticated
	}

	var it *models.Item
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if it, err = get(ctx, tx, owner, itemID); err != nil {
			return err
		}
		if req, err = normalize(req); err != nil {
			return err
		}
		oldTitle := it.Title
		it.Title, it.Content = req.Title, req.Content
		if err := tx.UpdateItem(ctx, it); err != nil {
			return err
		}
		return activity.Record(ctx, tx, owner, activity.Updated(oldTitle, it.Title))
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalid) || errors.Is(err, ErrTitleTooLong) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	logrus.WithFields(logrus.Fields{"user_id": owner.ID, "item_id": it.ID}).Info("Item updated")
	return it, nil
}

// Delete removes an owned item and records its title.
func (s *Service) Delete(ctx context.Context, owner *models.User, itemID int64) (*models.Item, error) {
	if owner == nil {
		return nil, auth.ErrUnauthenticated
	}

	var it *models.Item
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		if it, err = get(ctx, tx, owner, itemID); err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, owner.ID, it.ID); err != nil {
			return err
		}
		return activity.Record(ctx, tx, owner, activity.Deleted(it.Title))
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("delete item: %w", err)
	}
	logrus.WithFields(logrus.Fields{"user_id": owner.ID, "item_id": it.ID}).Info("Item deleted")
	return it, nil
}

// List returns all of owner's items in id order.
func (s *Service) List(ctx context.Context, owner *models.User) ([]models.Item, error) {
	if owner == nil {
		return nil, auth.ErrUnauthenticated
	}
	items, err := s.store.ListItems(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// Recent returns owner's newest activity entries.
func (s *Service) Recent(ctx context.Context, owner *models.User, limit int) ([]models.Activity, error) {
	if owner == nil {
		return nil, auth.ErrUnauthenticated
	}
	acts, err := activity.Recent(ctx, s.store, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	return acts, nil
}
