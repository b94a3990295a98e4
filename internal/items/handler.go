package items

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayush/stash/internal/activity"
	"github.com/ayush/stash/internal/auth"
	"github.com/ayush/stash/internal/models"
	"github.com/ayush/stash/internal/web"
)

const msgRequired = "Title and content are required."

// Handler holds item and dashboard HTTP handlers. Routes are expected to sit
// behind middleware.RequireAuth.
type Handler struct {
	svc      *Service
	sessions *auth.Sessions
	render   *web.Renderer
}

func NewHandler(svc *Service, sessions *auth.Sessions, render *web.Renderer) *Handler {
	return &Handler{svc: svc, sessions: sessions, render: render}
}

type dashboardData struct {
	Items      []models.Item
	Activities []models.Activity
}

type formData struct {
	Action     string
	FormAction string
	Title      string
	Content    string
}

// Dashboard lists the user's items and latest activity.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	items, err := h.svc.List(r.Context(), user)
	if err != nil {
		h.render.ServerError(w, r, err)
		return
	}
	acts, err := h.svc.Recent(r.Context(), user, activity.DashboardLimit)
	if err != nil {
		h.render.ServerError(w, r, err)
		return
	}
	h.render.Render(w, r, http.StatusOK, "dashboard", web.Page{
		Title: "Dashboard",
		User:  user,
		Data:  dashboardData{Items: items, Activities: acts},
	})
}

// NewForm shows an empty item form.
func (h *Handler) NewForm(w http.ResponseWriter, r *http.Request) {
	h.render.Render(w, r, http.StatusOK, "item_form", web.Page{
		Title: "New item",
		Data:  formData{Action: "Create", FormAction: "/items/new"},
	})
}

// Create stores a new item.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	req, ok := h.parseForm(w, r)
	if !ok {
		return
	}

	_, err := h.svc.Create(r.Context(), user, req)
	if msg, ok := formError(err); ok {
		h.render.Render(w, r, http.StatusUnprocessableEntity, "item_form", web.Page{
			Title: "New item",
			Error: msg,
			Data:  formData{Action: "Create", FormAction: "/items/new", Title: req.Title, Content: req.Content},
		})
		return
	}
	if err != nil {
		h.render.ServerError(w, r, err)
		return
	}

	h.flashAndRedirect(w, r, "Item created.", "/dashboard")
}

// View shows one owned item.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	it, ok := h.load(w, r, user)
	if !ok {
		return
	}
	h.render.Render(w, r, http.StatusOK, "item_detail", web.Page{Title: it.Title, Data: it})
}

// EditForm shows the form pre-filled with the item.
func (h *Handler) EditForm(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	it, ok := h.load(w, r, user)
	if !ok {
		return
	}
	h.render.Render(w, r, http.StatusOK, "item_form", web.Page{
		Title: "Edit item",
		Data:  editForm(it.ID, it.Title, it.Content),
	})
}

// Update saves changes to an owned item.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := itemID(r)
	if !ok {
		h.render.NotFound(w, r)
		return
	}
	req, ok := h.parseForm(w, r)
	if !ok {
		return
	}

	it, err := h.svc.Update(r.Context(), user, id, req)
	if msg, ok := formError(err); ok {
		h.render.Render(w, r, http.StatusUnprocessableEntity, "item_form", web.Page{
			Title: "Edit item",
			Error: msg,
			Data:  editForm(id, req.Title, req.Content),
		})
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		h.render.NotFound(w, r)
		return
	case err != nil:
		h.render.ServerError(w, r, err)
		return
	}

	h.flashAndRedirect(w, r, "Item updated.", fmt.Sprintf("/items/%d", it.ID))
}

// Delete removes an owned item.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	id, ok := itemID(r)
	if !ok {
		h.render.NotFound(w, r)
		return
	}

	_, err := h.svc.Delete(r.Context(), user, id)
	switch {
	case errors.Is(err, ErrNotFound):
		h.render.NotFound(w, r)
		return
	case err != nil:
		h.render.ServerError(w, r, err)
		return
	}

	h.flashAndRedirect(w, r, "Item deleted.", "/dashboard")
}

// user returns the request's identity. The auth middleware normally
// guarantees one; a missing identity is treated like the middleware would.
func (h *Handler) user(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		h.flashAndRedirect(w, r, "Please log in to see this page.", "/login")
		return nil, false
	}
	return user, true
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request, user *models.User) (*models.Item, bool) {
	id, ok := itemID(r)
	if !ok {
		h.render.NotFound(w, r)
		return nil, false
	}
	it, err := h.svc.Get(r.Context(), user, id)
	if errors.Is(err, ErrNotFound) {
		h.render.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		h.render.ServerError(w, r, err)
		return nil, false
	}
	return it, true
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) (models.ItemRequest, bool) {
	if err := r.ParseForm(); err != nil {
		h.render.Render(w, r, http.StatusBadRequest, "error", web.Page{Title: "Bad Request", Error: "Invalid form submission."})
		return models.ItemRequest{}, false
	}
	return models.ItemRequest{
		Title:   r.PostForm.Get("title"),
		Content: r.PostForm.Get("content"),
	}, true
}

func (h *Handler) flashAndRedirect(w http.ResponseWriter, r *http.Request, msg, url string) {
	if err := h.sessions.Flash(w, r, msg); err != nil {
		h.render.ServerError(w, r, err)
		return
	}
	web.Redirect(w, r, url)
}

// formError maps item validation failures to the message shown on the form.
func formError(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalid):
		return msgRequired, true
	case errors.Is(err, ErrTitleTooLong):
		return fmt.Sprintf("Title must be at most %d characters.", MaxTitleLen), true
	}
	return "", false
}

func editForm(id int64, title, content string) formData {
	return formData{
		Action:     "Update",
		FormAction: fmt.Sprintf("/items/%d/edit", id),
		Title:      title,
		Content:    content,
	}
}

func itemID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
