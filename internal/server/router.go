// Package server wires handlers, middleware and routes.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ayush/stash/internal/auth"
	"github.com/ayush/stash/internal/items"
	"github.com/ayush/stash/internal/middleware"
	"github.com/ayush/stash/internal/store"
	"github.com/ayush/stash/internal/web"
)

// Options configures the router.
type Options struct {
	SecretKey      string
	SessionTTL     time.Duration
	CookieSecure   bool
	AllowedOrigins []string
}

// New builds the application router on top of a store and a Redis client.
func New(st store.Store, rdb *redis.Client, opts Options) (http.Handler, error) {
	sessions := auth.NewSessions(
		auth.NewSessionStore(rdb, opts.SessionTTL),
		auth.NewTokenSigner(opts.SecretKey, opts.SessionTTL),
		opts.SessionTTL,
		opts.CookieSecure,
	)
	render, err := web.NewRenderer(sessions, auth.UserFrom)
	if err != nil {
		return nil, err
	}

	authSvc := auth.NewService(st)
	authHandler := auth.NewHandler(authSvc, sessions, render)
	itemHandler := items.NewHandler(items.NewService(st), sessions, render)

	r := chi.NewRouter()
	r.Use(chimw.RequestLogger(&chimw.DefaultLogFormatter{Logger: logrus.StandardLogger(), NoColor: true}))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.LoadUser(sessions, authSvc))
		r.NotFound(render.NotFound)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			if auth.UserFrom(r.Context()) != nil {
				web.Redirect(w, r, "/dashboard")
				return
			}
			web.Redirect(w, r, middleware.LoginPath)
		})
		r.Get("/register", authHandler.RegisterForm)
		r.Post("/register", authHandler.Register)
		r.Get("/login", authHandler.LoginForm)
		r.Post("/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessions))
			r.Get("/logout", authHandler.Logout)
			r.Get("/dashboard", itemHandler.Dashboard)
			r.Route("/items", func(r chi.Router) {
				r.Get("/new", itemHandler.NewForm)
				r.Post("/new", itemHandler.Create)
				r.Get("/{id}", itemHandler.View)
				r.Get("/{id}/edit", itemHandler.EditForm)
				r.Post("/{id}/edit", itemHandler.Update)
				r.Post("/{id}/delete", itemHandler.Delete)
			})
		})
	})

	return r, nil
}
