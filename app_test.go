package fango

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Alp4ka/fango/auth"
	"github.com/Alp4ka/fango/config"
	"github.com/Alp4ka/fango/fangotest"
	"github.com/Alp4ka/fango/internal/testutil"
	"github.com/Alp4ka/fango/pagination"
	"github.com/Alp4ka/fango/permissions"
	"github.com/Alp4ka/fango/viewset"
)

type Note struct {
	ID    int64 `gorm:"primaryKey"`
	Title string
}

func (Note) TableName() string { return "notes_note" }

type NoteSchema struct {
	ID    int64  `json:"id"`
	Title string `json:"title" validate:"required"`
}

func testSettings() *config.Settings {
	return &config.Settings{
		Addr:               "127.0.0.1:0",
		SecretKey:          "secret",
		Algorithm:          "HS256",
		PasswordIterations: 1000,
		AppendSlash:        true,
		PageSize:           15,
		MountConcurrency:   2,
		LogLevel:           "error",
	}
}

type testApp struct {
	*App
	db     *gorm.DB
	client *fangotest.Client
}

func newTestApp(t *testing.T, mutate func(*config.Settings), opts ...Option) *testApp {
	t.Helper()

	settings := testSettings()
	if mutate != nil {
		mutate(settings)
	}
	db := testutil.NewSQLite(t, append(auth.Models(), &Note{})...)

	app, err := New(settings, db, opts...)
	require.NoError(t, err)

	notes := &viewset.ViewSet[Note, NoteSchema]{Basename: "notes"}
	require.NoError(t, notes.Register(app.Private(), app.ViewSetOptions()))

	return &testApp{App: app, db: db, client: fangotest.NewClient(app.Handler(), app.Issuer())}
}

func (a *testApp) user(t *testing.T, username string, superuser bool) *auth.User {
	t.Helper()
	u := &auth.User{Username: username, Email: username + "@example.com", IsActive: true, IsSuperuser: superuser}
	require.NoError(t, a.db.Create(u).Error)
	return u
}

func Test_New_Errors(t *testing.T) {
	db := testutil.NewSQLite(t)

	_, err := New(nil, db)
	assert.Error(t, err)

	_, err = New(testSettings(), nil)
	assert.Error(t, err)

	bad := testSettings()
	bad.Algorithm = "none"
	_, err = New(bad, db)
	assert.ErrorContains(t, err, "unsupported ALGORITHM")
}

func Test_App_Healthz(t *testing.T) {
	app := newTestApp(t, nil)

	resp := app.client.Get("/healthz")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}

func Test_App_RegisterLoginFlow(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.client

	resp := c.Post("/api/register/", auth.Credentials{Email: "ann@example.com", Password: "s3cret"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = c.Post("/api/login/", auth.Credentials{Email: "ann@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "Incorrect username or password", resp.Detail())

	resp = c.Post("/api/login/", auth.Credentials{Email: "ann@example.com", Password: "s3cret"})
	require.Equal(t, http.StatusOK, resp.Code)
	var token auth.Token
	require.NoError(t, resp.Decode(&token))
	require.NotEmpty(t, token.Access)

	c.SetHeader("Authorization", "Bearer "+token.Access)
	resp = c.Get("/api/notes/")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code, "model permissions apply by default")
	assert.Equal(t, "Method not allowed.", resp.Detail())
}

func Test_App_PrivateRouter(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.client

	resp := c.Get("/api/notes/")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.Equal(t, "Not authenticated", resp.Detail())
	assert.Equal(t, "Bearer", resp.Header().Get("WWW-Authenticate"))

	require.NoError(t, c.ForceAuthenticate(app.user(t, "root", true)))

	resp = c.Post("/api/notes/", NoteSchema{Title: "first"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = c.Get("/api/notes/")
	require.Equal(t, http.StatusOK, resp.Code)
	var page pagination.Page[NoteSchema]
	require.NoError(t, resp.Decode(&page))
	require.Len(t, page.Results, 1)
	assert.Equal(t, "first", page.Results[0].Title)
}

func Test_App_WithPermission(t *testing.T) {
	app := newTestApp(t, nil, WithPermission(permissions.AllowAny))
	require.NoError(t, app.client.ForceAuthenticate(app.user(t, "ann", false)))

	assert.Equal(t, http.StatusOK, app.client.Get("/api/notes/").Code)
}

func Test_App_Routing(t *testing.T) {
	app := newTestApp(t, nil)

	resp := app.client.Get("/api/notes?title=a")
	assert.Equal(t, http.StatusMovedPermanently, resp.Code)
	assert.Equal(t, "/api/notes/?title=a", resp.Header().Get("Location"))

	resp = app.client.Get("/nowhere/")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Not found.", resp.Detail())

	resp = app.client.Get("/api/nowhere/")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Not found.", resp.Detail())

	noSlash := newTestApp(t, func(s *config.Settings) { s.AppendSlash = false })
	assert.NotEqual(t, http.StatusMovedPermanently, noSlash.client.Get("/api/notes").Code)
}

func Test_App_Mount(t *testing.T) {
	app := newTestApp(t, nil)
	app.Mount("/legacy/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))

	resp := app.client.Get("/legacy/admin/users")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "/admin/users", resp.Body.String())
}

func Test_App_Static(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello"), 0o600))

	app := newTestApp(t, nil)
	app.Static("/static/", dir)

	resp := app.client.Get("/static/hello.txt")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "hello", resp.Body.String())
}

func Test_App_Metrics(t *testing.T) {
	disabled := newTestApp(t, nil)
	assert.Nil(t, disabled.MetricsRegistry())
	assert.Equal(t, http.StatusNotFound, disabled.client.Get("/metrics").Code)

	app := newTestApp(t, func(s *config.Settings) { s.MetricsEnabled = true })
	require.NotNil(t, app.MetricsRegistry())
	app.client.Get("/healthz")

	resp := app.client.Get("/metrics")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `fango_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func Test_App_Metrics_Panic(t *testing.T) {
	app := newTestApp(t, func(s *config.Settings) { s.MetricsEnabled = true })
	app.Public().Get("/boom/", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	assert.Equal(t, http.StatusInternalServerError, app.client.Get("/api/boom/").Code)

	resp := app.client.Get("/metrics")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `method="GET",route="/api/boom`)
	assert.Contains(t, resp.Body.String(), `status="500"} 1`)
	assert.NotContains(t, resp.Body.String(), `route="/api/boom/",status="200"`)
	assert.NotContains(t, resp.Body.String(), `route="/api/boom",status="200"`)
}

func Test_App_RateLimit(t *testing.T) {
	app := newTestApp(t, func(s *config.Settings) {
		s.RateLimitRPS = 0.01
		s.RateLimitBurst = 1
	})

	assert.Equal(t, http.StatusOK, app.client.Get("/healthz").Code)
	assert.Equal(t, http.StatusTooManyRequests, app.client.Get("/healthz").Code)
}

func Test_App_Run(t *testing.T) {
	app := newTestApp(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func Test_OpenDB(t *testing.T) {
	s := testSettings()
	s.DatabaseDriver = "sqlite"
	s.DatabaseDSN = filepath.Join(t.TempDir(), "fango.db")

	db, err := OpenDB(s)
	require.NoError(t, err)
	require.NoError(t, db.Exec("SELECT 1").Error)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	s.DatabaseDriver = "oracle"
	_, err = OpenDB(s)
	assert.ErrorContains(t, err, `unsupported DATABASE_DRIVER "oracle"`)
}
