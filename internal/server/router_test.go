package server

import (
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/stash/internal/store"
)

var (
	itemLinkRe = regexp.MustCompile(`<li class="item"><a href="/items/(\d+)">`)
	activityRe = regexp.MustCompile(`<li class="activity">([^<]*) <small>`)
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	h, err := New(store.NewMemoryStore(), rdb, Options{SecretKey: "test-secret", SessionTTL: time.Hour})
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// browser is a cookie-keeping client that does not follow redirects.
type browser struct {
	t    *testing.T
	base string
	c    *http.Client
}

func newBrowser(t *testing.T, srv *httptest.Server) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: srv.URL,
		c: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type page struct {
	status   int
	location string
	body     string
}

func (b *browser) do(req *http.Request) page {
	b.t.Helper()
	resp, err := b.c.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return page{status: resp.StatusCode, location: resp.Header.Get("Location"), body: html.UnescapeString(string(raw))}
}

func (b *browser) get(path string) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodGet, b.base+path, nil)
	require.NoError(b.t, err)
	return b.do(req)
}

func (b *browser) post(path string, form url.Values) page {
	b.t.Helper()
	req, err := http.NewRequest(http.MethodPost, b.base+path, strings.NewReader(form.Encode()))
	require.NoError(b.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) register(username, email, password, confirm string) page {
	return b.post("/register", url.Values{
		"username": {username}, "email": {email}, "password": {password}, "confirm": {confirm},
	})
}

func (b *browser) login(username, password string) page {
	return b.post("/login", url.Values{"username": {username}, "password": {password}})
}

func (b *browser) signUpAndLogIn(username string) {
	b.t.Helper()
	require.Equal(b.t, http.StatusSeeOther, b.register(username, username+"@x.com", "pw1234", "pw1234").status)
	p := b.login(username, "pw1234")
	require.Equal(b.t, http.StatusSeeOther, p.status)
	require.Equal(b.t, "/dashboard", p.location)
}

func dashboardState(t *testing.T, p page) (itemIDs []string, activities []string) {
	t.Helper()
	require.Equal(t, http.StatusOK, p.status)
	for _, m := range itemLinkRe.FindAllStringSubmatch(p.body, -1) {
		itemIDs = append(itemIDs, m[1])
	}
	for _, m := range activityRe.FindAllStringSubmatch(p.body, -1) {
		activities = append(activities, m[1])
	}
	return itemIDs, activities
}

func TestAliceAndBob(t *testing.T) {
	srv := newTestServer(t)
	alice := newBrowser(t, srv)

	p := alice.register("alice", "alice@x.com", "pw1234", "pw1234")
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/login", p.location)
	assert.Contains(t, alice.get("/login").body, "Registration successful. Please log in.")

	p = alice.login("alice", "pw1234")
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/dashboard", p.location)

	p = alice.get("/dashboard")
	assert.Contains(t, p.body, "You are now logged in.")
	items, acts := dashboardState(t, p)
	assert.Empty(t, items)
	assert.Equal(t, []string{"User logged in"}, acts)

	p = alice.post("/items/new", url.Values{"title": {"Note A"}, "content": {"hello"}})
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/dashboard", p.location)

	items, acts = dashboardState(t, alice.get("/dashboard"))
	require.Len(t, items, 1)
	require.Len(t, acts, 2)
	assert.Equal(t, "Created item: 'Note A'", acts[0])
	itemPath := "/items/" + items[0]

	p = alice.get(itemPath)
	require.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "hello")

	p = alice.get(itemPath + "/edit")
	require.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, `value="Note A"`)

	p = alice.post(itemPath+"/edit", url.Values{"title": {"Note B"}, "content": {"hello again"}})
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, itemPath, p.location)
	assert.Contains(t, alice.get(itemPath).body, "Item updated.")

	_, acts = dashboardState(t, alice.get("/dashboard"))
	require.Len(t, acts, 3)
	assert.Equal(t, "Updated item: 'Note A' to 'Note B'", acts[0])

	bob := newBrowser(t, srv)
	bob.signUpAndLogIn("bob")
	assert.Equal(t, http.StatusNotFound, bob.get(itemPath).status)
	assert.Equal(t, http.StatusNotFound, bob.get(itemPath+"/edit").status)
	assert.Equal(t, http.StatusNotFound, bob.post(itemPath+"/edit", url.Values{"title": {"x"}, "content": {"y"}}).status)
	assert.Equal(t, http.StatusNotFound, bob.post(itemPath+"/delete", nil).status)

	items, acts = dashboardState(t, alice.get("/dashboard"))
	require.Len(t, items, 1)
	require.Len(t, acts, 3)
	assert.Contains(t, alice.get(itemPath).body, "Note B")

	p = alice.post(itemPath+"/delete", nil)
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/dashboard", p.location)
	items, acts = dashboardState(t, alice.get("/dashboard"))
	assert.Empty(t, items)
	assert.Equal(t, "Deleted item: 'Note B'", acts[0])
	assert.Equal(t, http.StatusNotFound, alice.get(itemPath).status)
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/dashboard", "/items/new", "/items/1", "/items/1/edit", "/logout"} {
		anon := newBrowser(t, srv)
		p := anon.get(path)
		assert.Equal(t, http.StatusSeeOther, p.status, path)
		assert.Equal(t, "/login", p.location, path)
		assert.Contains(t, anon.get("/login").body, "Please log in to see this page.", path)
	}

	anon := newBrowser(t, srv)
	p := anon.post("/items/1/delete", nil)
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/login", p.location)
}

func TestRootRedirect(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)

	assert.Equal(t, "/login", b.get("/").location)
	b.signUpAndLogIn("alice")
	assert.Equal(t, "/dashboard", b.get("/").location)
}

func TestLogout(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUpAndLogIn("alice")
	require.Equal(t, http.StatusOK, b.get("/dashboard").status)

	p := b.get("/logout")
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/login", p.location)
	assert.Contains(t, b.get("/login").body, "You have been logged out.")

	p = b.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/login", p.location)
}

func TestLoginFailures(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	require.Equal(t, http.StatusSeeOther, b.register("alice", "alice@x.com", "pw1234", "pw1234").status)

	p := b.login("mallory", "pw1234")
	assert.Equal(t, http.StatusUnauthorized, p.status)
	assert.Contains(t, p.body, "Incorrect username.")

	p = b.login("alice", "nope")
	assert.Equal(t, http.StatusUnauthorized, p.status)
	assert.Contains(t, p.body, "Incorrect password.")

	assert.Equal(t, "/login", b.get("/dashboard").location, "failed login must not authenticate")
}

func TestRegisterErrors(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	require.Equal(t, http.StatusSeeOther, b.register("alice", "alice@x.com", "pw1234", "pw1234").status)

	tests := []struct {
		username, email, password, confirm, want string
	}{
		{"", "a@x.com", "pw", "pw", "Username is required."},
		{"bob", "", "pw", "pw", "Email is required."},
		{"bob", "b@x.com", "", "", "Password is required."},
		{"bob", "b@x.com", "pw", "px", "Passwords do not match."},
		{"alice", "b@x.com", "pw", "pw", "Username is already taken."},
		{"bob", "alice@x.com", "pw", "pw", "Email is already used."},
	}
	for _, tc := range tests {
		p := b.register(tc.username, tc.email, tc.password, tc.confirm)
		assert.Equal(t, http.StatusUnprocessableEntity, p.status, tc.want)
		assert.Contains(t, p.body, tc.want)
	}

	p := b.login("bob", "pw")
	assert.Contains(t, p.body, "Incorrect username.", "rejected registrations create no user")
}

func TestItemFormValidation(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUpAndLogIn("alice")

	p := b.post("/items/new", url.Values{"title": {"  "}, "content": {"hello"}})
	assert.Equal(t, http.StatusUnprocessableEntity, p.status)
	assert.Contains(t, p.body, "Title and content are required.")
	assert.Contains(t, p.body, "hello")

	items, acts := dashboardState(t, b.get("/dashboard"))
	assert.Empty(t, items)
	assert.Len(t, acts, 1)
}

func TestBadItemIDs(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUpAndLogIn("alice")

	assert.Equal(t, http.StatusNotFound, b.get("/items/abc").status)
	assert.Equal(t, http.StatusNotFound, b.get("/items/999").status)
	assert.Equal(t, http.StatusNotFound, b.get("/no/such/page").status)
}

func TestForgedCookieIsAnonymous(t *testing.T) {
	srv := newTestServer(t)
	b := newBrowser(t, srv)
	b.signUpAndLogIn("alice")

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	for _, c := range b.c.Jar.Cookies(u) {
		c.Value = c.Value[:len(c.Value)-4] + "AAAA"
		b.c.Jar.SetCookies(u, []*http.Cookie{c})
	}
	assert.Equal(t, "/login", b.get("/dashboard").location)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	p := newBrowser(t, srv).get("/healthz")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Equal(t, "ok", p.body)
}
