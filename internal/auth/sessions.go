package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// Sessions moves sessions between the signed cookie and the SessionStore.
type Sessions struct {
	store  *SessionStore
	signer *TokenSigner
	ttl    time.Duration
	secure bool
}

func NewSessions(store *SessionStore, signer *TokenSigner, ttl time.Duration, secure bool) *Sessions {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &Sessions{store: store, signer: signer, ttl: ttl, secure: secure}
}

// Load returns the request's session. A missing, forged or expired cookie
// yields a fresh unsaved session.
func (m *Sessions) Load(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return m.store.New(), nil
	}
	id, err := m.signer.Verify(cookie.Value)
	if err != nil {
		logrus.WithError(err).Debug("Discarding session cookie")
		return m.store.New(), nil
	}
	sess, err := m.store.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return m.store.New(), nil
	}
	return sess, nil
}

// Save persists sess and refreshes the cookie. Sessions that were never
// stored and carry nothing are not written.
func (m *Sessions) Save(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if !sess.stored && sess.empty() {
		return nil
	}
	if !sess.dirty && sess.stored {
		return nil
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return err
	}
	token, err := m.signer.Sign(sess.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl / time.Second),
	})
	return nil
}

// Clear drops all state of old and returns an empty session with a new id.
func (m *Sessions) Clear(ctx context.Context, w http.ResponseWriter, old *Session) (*Session, error) {
	if old != nil && old.stored {
		if err := m.store.Delete(ctx, old.ID); err != nil {
			return nil, err
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		MaxAge:   -1,
	})
	return m.store.New(), nil
}

// Flash queues msg on the request's session and saves it.
func (m *Sessions) Flash(w http.ResponseWriter, r *http.Request, msg string) error {
	sess := SessionFrom(r.Context())
	if sess == nil {
		return errors.New("flash: no session in request context")
	}
	sess.AddFlash(msg)
	if err := m.Save(r.Context(), w, sess); err != nil {
		return fmt.Errorf("flash: %w", err)
	}
	return nil
}

// PopFlashes returns the request's queued notices and marks them shown.
func (m *Sessions) PopFlashes(w http.ResponseWriter, r *http.Request) []string {
	sess := SessionFrom(r.Context())
	if sess == nil {
		return nil
	}
	flashes := sess.TakeFlashes()
	if len(flashes) > 0 {
		if err := m.Save(r.Context(), w, sess); err != nil {
			logrus.WithError(err).Error("Failed to save session after reading flashes")
		}
	}
	return flashes
}
