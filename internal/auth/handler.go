package auth

import (
	"errors"
	"net/http"

	"github.com/ayush/stash/internal/models"
	"github.com/ayush/stash/internal/web"
)

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc      *Service
	sessions *Sessions
	render   *web.Renderer
}

func NewHandler(svc *Service, sessions *Sessions, render *web.Renderer) *Handler {
	return &Handler{svc: svc, sessions: sessions, render: render}
}

// RegisterForm shows the registration form.
func (h *Handler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "register", web.Page{Title: "Register"})
}

// Register creates a new user.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render.Render(w, r, http.StatusBadRequest, "register", web.Page{Title: "Register", Error: "Invalid form submission."})
		return
	}
	req := models.RegisterRequest{
		Username: r.PostForm.Get("username"),
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
		Confirm:  r.PostForm.Get("confirm"),
	}

	_, err := h.svc.Register(r.Context(), req)
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		req.Password, req.Confirm = "", ""
		h.render.Render(w, r, http.StatusUnprocessableEntity, "register", web.Page{Title: "Register", Error: verr.Message, Data: req})
		return
	case err != nil:
		h.render.ServerError(w, r, err)
		return
	}

	if err := h.sessions.Flash(w, r, "Registration successful. Please log in."); err != nil {
		h.render.ServerError(w, r, err)
		return
	}
	web.Redirect(w, r, "/login")
}

// LoginForm shows the login form.
func (h *Handler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "login", web.Page{Title: "Log in"})
}

// Login authenticates a user and binds a fresh session to it.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render.Render(w, r, http.StatusBadRequest, "login", web.Page{Title: "Log in", Error: "Invalid form submission."})
		return
	}
	req := models.LoginRequest{
		Username: r.PostForm.Get("username"),
		Password: r.PostForm.Get("password"),
	}

	user, err := h.svc.Login(r.Context(), req)
	switch {
	case errors.Is(err, ErrUnknownUser):
		h.render.Render(w, r, http.StatusUnauthorized, "login", web.Page{Title: "Log in", Error: "Incorrect username.", Data: models.LoginRequest{Username: req.Username}})
		return
	case errors.Is(err, ErrBadCredentials):
		h.render.Render(w, r, http.StatusUnauthorized, "login", web.Page{Title: "Log in", Error: "Incorrect password.", Data: models.LoginRequest{Username: req.Username}})
		return
	case err != nil:
		h.render.ServerError(w, r, err)
		return
	}

	sess, err := h.sessions.Clear(r.Context(), w, SessionFrom(r.Context()))
	if err != nil {
		h.render.ServerError(w, r, err)
		return
	}
	sess.SetUser(user.ID)
	sess.AddFlash("You are now logged in.")
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		h.render.ServerError(w, r, err)
		return
	}
	web.Redirect(w, r, "/dashboard")
}

// Logout destroys the current session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Clear(r.Context(), w, SessionFrom(r.Context()))
	if err != nil {
		h.render.ServerError(w, r, err)
		return
	}
	sess.AddFlash("You have been logged out.")
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		h.render.ServerError(w, r, err)
		return
	}
	web.Redirect(w, r, "/login")
}
