package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	SessionTTL    = 24 * time.Hour
	SessionCookie = "session"
)

// Session is the server-side state behind a session cookie.
type Session struct {
	ID      string   `json:"-"`
	UserID  int64    `json:"user_id,omitempty"`
	Flashes []string `json:"flashes,omitempty"`

	stored bool
	dirty  bool
}

// SetUser binds the session to a user id.
func (s *Session) SetUser(id int64) {
	s.UserID = id
	s.dirty = true
}

// AddFlash queues a one-time notice.
func (s *Session) AddFlash(msg string) {
	s.Flashes = append(s.Flashes, msg)
	s.dirty = true
}

// TakeFlashes returns and clears queued notices.
func (s *Session) TakeFlashes() []string {
	out := s.Flashes
	if len(out) > 0 {
		s.Flashes = nil
		s.dirty = true
	}
	return out
}

func (s *Session) empty() bool {
	return s.UserID == 0 && len(s.Flashes) == 0
}

// SessionStore wraps Redis for session management.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionStore(rdb *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &SessionStore{rdb: rdb, ttl: ttl}
}

// New returns an unsaved session with a fresh id.
func (s *SessionStore) New() *Session {
	return &Session{ID: uuid.New().String()}
}

// Get returns the session for id, or nil if not found / expired.
func (s *SessionStore) Get(ctx context.Context, id string) (*Session, error) {
	val, err := s.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	sess := &Session{ID: id, stored: true}
	if err := json.Unmarshal(val, sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

// Save writes the session and resets its expiry.
func (s *SessionStore) Save(ctx context.Context, sess *Session) error {
	val, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, key(sess.ID), val, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	sess.stored = true
	sess.dirty = false
	return nil
}

// Delete removes a session.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func key(id string) string {
	return "session:" + id
}
