package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ayush/task-tracker/internal/auth"
	"github.com/ayush/task-tracker/internal/models"
	"github.com/ayush/task-tracker/internal/tasks"
	"github.com/ayush/task-tracker/internal/web"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (m *memUsers) Register(_ context.Context, username, email, password string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = map[string]*models.User{}
	}
	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return nil, models.ErrDuplicateKey
		}
	}
	u := &models.User{ID: primitive.NewObjectID(), Username: username, Email: email, Password: password}
	m.users[u.ID.Hex()] = u
	return u, nil
}

func (m *memUsers) FindByLoginIdentifier(_ context.Context, identifier string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == identifier || u.Email == identifier {
			return u, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memUsers) VerifyPassword(u *models.User, password string) bool {
	return u != nil && u.Password == password
}

type memRevoker struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (m *memRevoker) Revoke(_ context.Context, id string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = map[string]bool{}
	}
	m.revoked[id] = true
	return nil
}

func (m *memRevoker) IsRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[id], nil
}

// stubTasks serves an empty task list for every owner.
type stubTasks struct{}

func (stubTasks) Create(_ context.Context, owner string, in models.TaskInput) (*models.Task, error) {
	return &models.Task{Title: in.Title, UserID: owner, Status: models.StatusPending}, nil
}

func (stubTasks) ListByOwner(context.Context, string) ([]models.Task, error) {
	return []models.Task{}, nil
}

func (stubTasks) FindByIDAndOwner(context.Context, string, string) (*models.Task, error) {
	return nil, models.ErrNotFound
}

func (stubTasks) Update(context.Context, string, string, models.TaskUpdate) (*models.Task, error) {
	return nil, models.ErrNotFound
}

func (stubTasks) Delete(context.Context, string, string) error { return nil }

func (stubTasks) ToggleStatus(context.Context, string, string) (*models.Task, error) {
	return nil, models.ErrNotFound
}

func (stubTasks) CountByOwner(context.Context, string, *models.TaskStatus) (int, error) {
	return 0, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	sessions, err := auth.NewManager(auth.ManagerConfig{
		Secret:      "0123456789abcdef0123456789abcdef",
		IdleTimeout: 30 * time.Minute,
		MaxLifetime: 12 * time.Hour,
		Revoker:     &memRevoker{},
	})
	require.NoError(t, err)

	views, err := web.NewRenderer()
	require.NoError(t, err)

	return New(Deps{
		Sessions: sessions,
		Auth:     auth.NewHandler(&memUsers{}, sessions, views),
		Tasks:    tasks.NewHandler(stubTasks{}, views),
		Views:    views,
	})
}

func get(h http.Handler, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func post(h http.Handler, target string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func TestProtectedRoutesRedirectAnonymous(t *testing.T) {
	h := newTestServer(t)

	for _, target := range []string{"/dashboard", "/tasks", "/tasks/add", "/tasks/edit/abc", "/logout"} {
		rec := get(h, target)
		assert.Equal(t, http.StatusFound, rec.Code, target)
		assert.Equal(t, "/login", rec.Header().Get("Location"), target)
	}

	rec := post(h, "/tasks/delete/abc", url.Values{})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestPublicPages(t *testing.T) {
	h := newTestServer(t)

	assert.Equal(t, http.StatusOK, get(h, "/login").Code)
	assert.Equal(t, http.StatusOK, get(h, "/register").Code)

	rec := get(h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = get(h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestUnmatchedPathsRenderNotFound(t *testing.T) {
	h := newTestServer(t)

	rec := get(h, "/no/such/page")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Page not found")

	// wrong method on a known path
	rec = post(h, "/healthz", url.Values{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHomeRedirectsAnonymousToLogin(t *testing.T) {
	h := newTestServer(t)
	rec := get(h, "/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestGarbageCookieIsClearedAndTreatedAsAnonymous(t *testing.T) {
	h := newTestServer(t)
	rec := get(h, "/dashboard", &http.Cookie{Name: auth.SessionCookie, Value: "garbage"})

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestRegisterLoginDashboardLogout(t *testing.T) {
	h := newTestServer(t)

	rec := post(h, "/register", url.Values{
		"username": {"alice"}, "email": {"alice@example.com"},
		"password": {"s3cret"}, "confirmPassword": {"s3cret"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = post(h, "/register", url.Values{
		"username": {"alice"}, "email": {"other@example.com"},
		"password": {"x"}, "confirmPassword": {"x"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "Username or email already exists.")

	rec = post(h, "/login", url.Values{"identifier": {"alice"}, "password": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials.")

	rec = post(h, "/login", url.Values{"identifier": {"alice@example.com"}, "password": {"s3cret"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
	cookie := sessionCookie(t, rec)

	rec = get(h, "/dashboard", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Signed in as alice")

	rec = get(h, "/", cookie)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	rec = get(h, "/tasks", cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No tasks yet.")

	rec = get(h, "/logout", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	// the old cookie is dead even if the browser keeps sending it
	rec = get(h, "/dashboard", cookie)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}
