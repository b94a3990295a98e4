package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ayush/stash/internal/models"
)

// MemoryStore keeps everything in process. Transactions run one at a time
// against a copy of the data that replaces the original only on success.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
	now  func() time.Time
}

type memData struct {
	users      map[int64]models.User
	items      map[int64]models.Item
	activities []models.Activity
	lastID     int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: &memData{
			users: make(map[int64]models.User),
			items: make(map[int64]models.Item),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (d *memData) clone() *memData {
	c := &memData{
		users:      make(map[int64]models.User, len(d.users)),
		items:      make(map[int64]models.Item, len(d.items)),
		activities: append([]models.Activity(nil), d.activities...),
		lastID:     d.lastID,
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.items {
		c.items[k] = v
	}
	return c
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&memTx{d: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

func (s *MemoryStore) Close() {}

// view runs fn against the committed data.
func (s *MemoryStore) view(fn func(tx *memTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memTx{d: s.data, now: s.now})
}

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	return s.WithTx(ctx, func(tx Tx) error { return tx.CreateUser(ctx, u) })
}

func (s *MemoryStore) GetUserByID(ctx context.Context, id int64) (u *models.User, err error) {
	err = s.view(func(tx *memTx) error { u, err = tx.GetUserByID(ctx, id); return err })
	return u, err
}

func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (u *models.User, err error) {
	err = s.view(func(tx *memTx) error { u, err = tx.GetUserByUsername(ctx, username); return err })
	return u, err
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (u *models.User, err error) {
	err = s.view(func(tx *memTx) error { u, err = tx.GetUserByEmail(ctx, email); return err })
	return u, err
}

func (s *MemoryStore) InsertItem(ctx context.Context, it *models.Item) error {
	return s.WithTx(ctx, func(tx Tx) error { return tx.InsertItem(ctx, it) })
}

func (s *MemoryStore) GetItem(ctx context.Context, ownerID, itemID int64) (it *models.Item, err error) {
	err = s.view(func(tx *memTx) error { it, err = tx.GetItem(ctx, ownerID, itemID); return err })
	return it, err
}

func (s *MemoryStore) UpdateItem(ctx context.Context, it *models.Item) error {
	return s.WithTx(ctx, func(tx Tx) error { return tx.UpdateItem(ctx, it) })
}

func (s *MemoryStore) DeleteItem(ctx context.Context, ownerID, itemID int64) error {
	return s.WithTx(ctx, func(tx Tx) error { return tx.DeleteItem(ctx, ownerID, itemID) })
}

func (s *MemoryStore) ListItems(ctx context.Context, ownerID int64) (items []models.Item, err error) {
	err = s.view(func(tx *memTx) error { items, err = tx.ListItems(ctx, ownerID); return err })
	return items, err
}

func (s *MemoryStore) InsertActivity(ctx context.Context, a *models.Activity) error {
	return s.WithTx(ctx, func(tx Tx) error { return tx.InsertActivity(ctx, a) })
}

func (s *MemoryStore) RecentActivities(ctx context.Context, userID int64, limit int) (acts []models.Activity, err error) {
	err = s.view(func(tx *memTx) error { acts, err = tx.RecentActivities(ctx, userID, limit); return err })
	return acts, err
}

type memTx struct {
	d   *memData
	now func() time.Time
}

func (t *memTx) nextID() int64 {
	t.d.lastID++
	return t.d.lastID
}

func (t *memTx) CreateUser(_ context.Context, u *models.User) error {
	for _, existing := range t.d.users {
		if existing.Username == u.Username {
			return fmt.Errorf("create user: %w: username", ErrDuplicate)
		}
		if existing.Email == u.Email {
			return fmt.Errorf("create user: %w: email", ErrDuplicate)
		}
	}
	u.ID = t.nextID()
	u.CreatedAt = t.now()
	t.d.users[u.ID] = *u
	return nil
}

func (t *memTx) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := t.d.users[id]
	if !ok {
		return nil, fmt.Errorf("get user: %w", ErrNotFound)
	}
	return &u, nil
}

func (t *memTx) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range t.d.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", ErrNotFound)
}

func (t *memTx) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range t.d.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("get user: %w", ErrNotFound)
}

func (t *memTx) InsertItem(_ context.Context, it *models.Item) error {
	if _, ok := t.d.users[it.UserID]; !ok {
		return fmt.Errorf("insert item: unknown user %d", it.UserID)
	}
	it.ID = t.nextID()
	it.CreatedAt = t.now()
	it.UpdatedAt = it.CreatedAt
	t.d.items[it.ID] = *it
	return nil
}

func (t *memTx) GetItem(_ context.Context, ownerID, itemID int64) (*models.Item, error) {
	it, ok := t.d.items[itemID]
	if !ok || it.UserID != ownerID {
		return nil, fmt.Errorf("get item %d: %w", itemID, ErrNotFound)
	}
	return &it, nil
}

func (t *memTx) UpdateItem(_ context.Context, it *models.Item) error {
	cur, ok := t.d.items[it.ID]
	if !ok || cur.UserID != it.UserID {
		return fmt.Errorf("update item %d: %w", it.ID, ErrNotFound)
	}
	cur.Title = it.Title
	cur.Content = it.Content
	cur.UpdatedAt = t.now()
	t.d.items[it.ID] = cur
	it.UpdatedAt = cur.UpdatedAt
	return nil
}

func (t *memTx) DeleteItem(_ context.Context, ownerID, itemID int64) error {
	it, ok := t.d.items[itemID]
	if !ok || it.UserID != ownerID {
		return fmt.Errorf("delete item %d: %w", itemID, ErrNotFound)
	}
	delete(t.d.items, itemID)
	return nil
}

func (t *memTx) ListItems(_ context.Context, ownerID int64) ([]models.Item, error) {
	var items []models.Item
	for _, it := range t.d.items {
		if it.UserID == ownerID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (t *memTx) InsertActivity(_ context.Context, a *models.Activity) error {
	if _, ok := t.d.users[a.UserID]; !ok {
		return fmt.Errorf("insert activity: unknown user %d", a.UserID)
	}
	a.ID = t.nextID()
	a.Timestamp = t.now()
	t.d.activities = append(t.d.activities, *a)
	return nil
}

func (t *memTx) RecentActivities(_ context.Context, userID int64, limit int) ([]models.Activity, error) {
	var acts []models.Activity
	for _, a := range t.d.activities {
		if a.UserID == userID {
			acts = append(acts, a)
		}
	}
	sort.SliceStable(acts, func(i, j int) bool {
		if !acts[i].Timestamp.Equal(acts[j].Timestamp) {
			return acts[i].Timestamp.After(acts[j].Timestamp)
		}
		return acts[i].ID > acts[j].ID
	})
	if limit >= 0 && len(acts) > limit {
		acts = acts[:limit]
	}
	return acts, nil
}
