// Package web renders the HTML pages.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayush/stash/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"register", "login", "dashboard", "item_form", "item_detail", "error"}

// FlashSource hands out one-time notices for a request.
type FlashSource interface {
	PopFlashes(w http.ResponseWriter, r *http.Request) []string
}

// Page is the data every template receives.
type Page struct {
	Title   string
	User    *models.User
	Flashes []string
	Error   string
	Data    any
}

// Renderer executes page templates inside the shared layout.
type Renderer struct {
	pages   map[string]*template.Template
	flashes FlashSource
	user    func(context.Context) *models.User
}

func NewRenderer(flashes FlashSource, user func(context.Context) *models.User) (*Renderer, error) {
	funcs := template.FuncMap{
		"fmtTime": func(t time.Time) string { return t.Local().Format("2006-01-02 15:04") },
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).
			ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Renderer{pages: pages, flashes: flashes, user: user}, nil
}

// Render writes page name with status. Flashes are consumed here, so this
// must run before anything else is written to w.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, page Page) {
	t, ok := rd.pages[name]
	if !ok {
		rd.ServerError(w, r, fmt.Errorf("unknown template %q", name))
		return
	}
	if page.User == nil && rd.user != nil {
		page.User = rd.user(r.Context())
	}
	if rd.flashes != nil {
		page.Flashes = rd.flashes.PopFlashes(w, r)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", page); err != nil {
		logrus.WithError(err).WithField("template", name).Error("Template execution failed")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// NotFound renders the generic not-found page.
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.Render(w, r, http.StatusNotFound, "error", Page{Title: "Not Found", Error: "The requested page was not found."})
}

// ServerError logs err and renders the generic error page.
func (rd *Renderer) ServerError(w http.ResponseWriter, r *http.Request, err error) {
	logrus.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Error("Request failed")
	t, ok := rd.pages["error"]
	if !ok {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	page := Page{Title: "Error", Error: "Something went wrong."}
	if rd.user != nil {
		page.User = rd.user(r.Context())
	}
	if err := t.ExecuteTemplate(&buf, "layout", page); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	buf.WriteTo(w)
}

// Redirect sends the browser to url with a GET.
func Redirect(w http.ResponseWriter, r *http.Request, url string) {
	http.Redirect(w, r, url, http.StatusSeeOther)
}
