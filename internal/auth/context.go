package auth

import (
	"context"
	"errors"

	"github.com/ayush/stash/internal/models"
)

// ErrUnauthenticated is returned when an operation needs a user and the
// request has none.
var ErrUnauthenticated = errors.New("unauthenticated")

type ctxKey int

const (
	sessionKey ctxKey = iota
	userKey
)

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFrom(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom returns the resolved identity, or nil.
func UserFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userKey).(*models.User)
	return u
}

// RequireUser returns the resolved identity or ErrUnauthenticated.
func RequireUser(ctx context.Context) (*models.User, error) {
	if u := UserFrom(ctx); u != nil {
		return u, nil
	}
	return nil, ErrUnauthenticated
}
