package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/ayush/stash/internal/activity"
	"github.com/ayush/stash/internal/models"
	"github.com/ayush/stash/internal/store"
)

var (
	ErrUnknownUser    = errors.New("unknown user")
	ErrBadCredentials = errors.New("bad credentials")
)

// ValidationError carries the single message shown on a rejected form.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// Service handles registration and credential checks.
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Column limits of the users table.
const (
	MaxUsernameLen = 80
	MaxEmailLen    = 120
)

// Register validates req and creates the user. Checks run in a fixed order
// and the first failure is returned as a *ValidationError.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Password = strings.TrimSpace(req.Password)
	req.Confirm = strings.TrimSpace(req.Confirm)
	logCtx := logrus.WithFields(logrus.Fields{"username": req.Username, "email": req.Email})

	switch {
	case req.Username == "":
		return nil, invalid("Username is required.")
	case utf8.RuneCountInString(req.Username) > MaxUsernameLen:
		return nil, invalid(fmt.Sprintf("Username must be at most %d characters.", MaxUsernameLen))
	case req.Email == "":
		return nil, invalid("Email is required.")
	case utf8.RuneCountInString(req.Email) > MaxEmailLen:
		return nil, invalid(fmt.Sprintf("Email must be at most %d characters.", MaxEmailLen))
	case req.Password == "":
		return nil, invalid("Password is required.")
	case req.Password != req.Confirm:
		return nil, invalid("Passwords do not match.")
	}

	user := &models.User{Username: req.Username, Email: req.Email}
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := checkFree(ctx, tx.GetUserByUsername, req.Username, "Username is already taken."); err != nil {
			return err
		}
		if err := checkFree(ctx, tx.GetUserByEmail, req.Email, "Email is already used."); err != nil {
			return err
		}
		if err := SetPassword(user, req.Password); err != nil {
			return err
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			logCtx.WithField("reason", verr.Message).Info("Registration rejected")
			return nil, err
		}
		if errors.Is(err, store.ErrDuplicate) {
			// Lost a race with a concurrent registration.
			logCtx.WithError(err).Warn("Registration hit unique constraint")
			if strings.Contains(err.Error(), "email") {
				return nil, invalid("Email is already used.")
			}
			return nil, invalid("Username is already taken.")
		}
		logCtx.WithError(err).Error("Database error during registration")
		return nil, fmt.Errorf("register: %w", err)
	}

	logCtx.WithField("user_id", user.ID).Info("User registered")
	return user, nil
}

func checkFree(ctx context.Context, lookup func(context.Context, string) (*models.User, error), value, msg string) error {
	_, err := lookup(ctx, value)
	switch {
	case err == nil:
		return invalid(msg)
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return err
	}
}

// Login checks credentials and records the login. The returned user is the
// identity the caller binds to a new session.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	password := strings.TrimSpace(req.Password)
	logCtx := logrus.WithField("username", username)

	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		logCtx.Warn("Login failed: unknown user")
		return nil, ErrUnknownUser
	}
	if err != nil {
		logCtx.WithError(err).Error("Login failed: user lookup")
		return nil, fmt.Errorf("login: %w", err)
	}
	if !CheckPassword(user, password) {
		logCtx.WithField("user_id", user.ID).Warn("Login failed: bad password")
		return nil, ErrBadCredentials
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		return activity.Record(ctx, tx, user, activity.LoggedIn())
	})
	if err != nil {
		logCtx.WithError(err).Error("Login failed: record activity")
		return nil, fmt.Errorf("login: %w", err)
	}

	logCtx.WithField("user_id", user.ID).Info("User logged in")
	return user, nil
}

// Resolve maps a session's user id to a user, or nil if the id is unset or
// no longer exists.
func (s *Service) Resolve(ctx context.Context, userID int64) (*models.User, error) {
	if userID == 0 {
		return nil, nil
	}
	u, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve user %d: %w", userID, err)
	}
	return u, nil
}
