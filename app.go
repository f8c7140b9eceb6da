package fango

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Alp4ka/fango/auth"
	"github.com/Alp4ka/fango/config"
	"github.com/Alp4ka/fango/httperr"
	"github.com/Alp4ka/fango/logging"
	"github.com/Alp4ka/fango/middleware"
	"github.com/Alp4ka/fango/permissions"
	"github.com/Alp4ka/fango/render"
	"github.com/Alp4ka/fango/viewset"
)

const (
	APIPrefix = "/api"

	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type App struct {
	settings *config.Settings
	db       *gorm.DB
	log      *logrus.Logger

	router  chi.Router
	public  chi.Router
	private chi.Router

	issuer     *auth.Issuer
	users      *auth.Repository
	permission permissions.Permission
	metrics    *middleware.Metrics

	extra []func(http.Handler) http.Handler
}

type Option func(*App)

// WithPermission replaces ModelPermissions as the default permission of
// viewsets registered with ViewSetOptions.
func WithPermission(p permissions.Permission) Option {
	return func(a *App) {
		a.permission = p
	}
}

// WithMiddleware appends middleware to the root chain, after
// authentication.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(a *App) {
		a.extra = append(a.extra, mw...)
	}
}

// New configures logging and builds the router. db is expected to carry
// the auth tables.
func New(settings *config.Settings, db *gorm.DB, opts ...Option) (*App, error) {
	if settings == nil {
		return nil, errors.New("fango: nil settings")
	}
	if db == nil {
		return nil, errors.New("fango: nil database")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	issuer, err := auth.NewIssuer(settings)
	if err != nil {
		return nil, fmt.Errorf("fango: %w", err)
	}

	a := &App{
		settings: settings,
		db:       db,
		log: logging.Setup(logging.Config{
			Level:   settings.LogLevel,
			JSON:    settings.LogJSON,
			CallLog: settings.EnableCallLog,
		}),
		issuer:     issuer,
		users:      auth.NewRepository(db, auth.Hasher{Iterations: settings.PasswordIterations}, settings.RequestUserFields...),
		permission: permissions.NewModelPermissions(db),
	}
	for _, opt := range opts {
		opt(a)
	}
	if settings.MetricsEnabled {
		a.metrics = middleware.NewMetrics()
	}

	a.routes()
	return a, nil
}

func (a *App) routes() {
	r := chi.NewRouter()

	r.Use(chimw.RequestID, chimw.RealIP, middleware.Logging)
	if a.metrics != nil {
		r.Use(a.metrics.Middleware)
	}
	r.Use(chimw.Recoverer)
	r.Use(auth.NewAuthenticator(a.issuer, a.users).Middleware)
	if a.settings.RateLimitRPS > 0 {
		r.Use(middleware.NewRateLimiter(a.settings.RateLimitRPS, a.settings.RateLimitBurst).Handler)
	}
	r.Use(a.extra...)

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	r.Get("/healthz", a.healthz)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	}

	r.Route(APIPrefix, func(r chi.Router) {
		if a.settings.AppendSlash {
			r.Use(middleware.AppendSlash())
		}
		r.NotFound(notFound)
		r.MethodNotAllowed(methodNotAllowed)
		a.public = r.Group(nil)
		a.private = r.With(auth.RequireUser)
	})

	auth.NewHandlers(a.issuer, a.users).Routes(a.public)

	a.router = r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	httperr.Write(w, r, httperr.NotFound("Not found."))
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httperr.Write(w, r, httperr.MethodNotAllowed("Method not allowed."))
}

func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		logging.FromContext(r.Context()).WithError(err).Error("database ping failed")
		render.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Public is the /api group that accepts anonymous requests.
func (a *App) Public() chi.Router {
	return a.public
}

// Private is the /api group that answers 401 without a valid bearer token.
func (a *App) Private() chi.Router {
	return a.private
}

// ViewSetOptions returns the router level viewset defaults.
func (a *App) ViewSetOptions() viewset.Options {
	return viewset.Options{
		DB:         a.db,
		Debug:      a.settings.Debug,
		PageSize:   a.settings.PageSize,
		Permission: a.permission,
	}
}

// Mount serves h under prefix with the prefix stripped from the request
// path. At most MountConcurrency requests run in h at once.
func (a *App) Mount(prefix string, h http.Handler) {
	prefix = "/" + strings.Trim(prefix, "/")
	a.router.With(chimw.Throttle(a.settings.MountConcurrency)).
		Mount(prefix, http.StripPrefix(prefix, h))
}

// Static serves the files of dir under prefix.
func (a *App) Static(prefix, dir string) {
	prefix = "/" + strings.Trim(prefix, "/") + "/"
	a.router.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(dir))))
}

// Issuer signs tokens with the application settings.
func (a *App) Issuer() *auth.Issuer {
	return a.issuer
}

func (a *App) Users() *auth.Repository {
	return a.users
}

// MetricsRegistry is nil unless METRICS_ENABLED is set.
func (a *App) MetricsRegistry() *prometheus.Registry {
	if a.metrics == nil {
		return nil
	}
	return a.metrics.Registry()
}

func (a *App) Handler() http.Handler {
	return a.router
}

// Run serves on Settings.Addr until ctx is cancelled, then shuts down
// gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.settings.Addr,
		Handler:           a.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.log.WithField("addr", srv.Addr).Info("fango: listening")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("fango: serve: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("fango: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("fango: shutdown: %w", err)
	}
	return nil
}
