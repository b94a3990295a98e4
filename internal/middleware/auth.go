package middleware

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/ayush/stash/internal/auth"
	"github.com/ayush/stash/internal/web"
)

// LoginPath is where unauthenticated requests are sent.
const LoginPath = "/login"

// LoadUser loads the session from the signed cookie and resolves its user.
// Requests without a valid session continue with no identity.
func LoadUser(sessions *auth.Sessions, users *auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessions.Load(r)
			if err != nil {
				logrus.WithError(err).Error("Failed to load session")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			ctx := auth.WithSession(r.Context(), sess)

			user, err := users.Resolve(ctx, sess.UserID)
			if err != nil {
				logrus.WithError(err).WithField("user_id", sess.UserID).Error("Failed to resolve session user")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if user != nil {
				ctx = auth.WithUser(ctx, user)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth redirects requests without an identity to the login page with
// a notice instead of running next.
func RequireAuth(sessions *auth.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := auth.RequireUser(r.Context()); errors.Is(err, auth.ErrUnauthenticated) {
				if err := sessions.Flash(w, r, "Please log in to see this page."); err != nil {
					logrus.WithError(err).Warn("Failed to store login notice")
				}
				web.Redirect(w, r, LoginPath)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
