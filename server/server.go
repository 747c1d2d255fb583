// Package server is the local portal gateway: it serves the login entry
// point, guards the student and admin pages through the auth gate, and
// renders page data fetched from the portal backend.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/internhub/go-portal-gate/gate"
	"github.com/internhub/go-portal-gate/guard"
	"github.com/internhub/go-portal-gate/internal/config"
	"github.com/internhub/go-portal-gate/internal/metrics"
	"github.com/internhub/go-portal-gate/portalapi"
	"github.com/internhub/go-portal-gate/session"
	"github.com/internhub/go-portal-gate/session/filestore"
)

type Server struct {
	env       string // Environment (e.g. "DEV", "PROD")
	config    config.Config
	logger    zerolog.Logger
	gate      *gate.Gate
	guard     *guard.Guard
	backend   *portalapi.Client
	authed    *portalapi.AuthedClient
	collector *metrics.Collector
	handler   http.Handler
	limiter   *loginLimiter
}

func New(cfg config.Config, logger zerolog.Logger) (*Server, error) {
	store, err := filestore.New(cfg.GetDataFolder(), filestore.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] filestore")
	}

	client, err := portalapi.New(cfg.GetBackendURL(), portalapi.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] portalapi")
	}

	collector := metrics.NewCollector()

	verifyTimeout, err := time.ParseDuration(cfg.GetVerifyTimeout())
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] invalid VERIFY_TIMEOUT")
	}

	authGate, err := gate.New(store, client,
		gate.WithLogger(logger),
		gate.WithMetrics(collector),
		gate.WithVerifyTimeout(verifyTimeout),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] gate")
	}

	routeGuard, err := guard.New(authGate,
		guard.WithLoginPath(RouteLogin),
		guard.WithStudentHome(RouteStudentHome),
		guard.WithLogger(logger),
		guard.WithMetrics(collector),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] guard")
	}

	s := &Server{
		env:       cfg.GetEnv(),
		config:    cfg,
		logger:    logger,
		gate:      authGate,
		guard:     routeGuard,
		backend:   client,
		authed:    client.Authed(authGate.TokenSource()),
		collector: collector,
		limiter:   newLoginLimiter(cfg.GetLoginRateLimitRPM()),
	}
	s.handler = s.routes()
	return s, nil
}

// Start restores the stored session and begins background verification.
func (s *Server) Start(ctx context.Context) {
	s.gate.Start(ctx)
}

// Close stops the gate's background work.
func (s *Server) Close() {
	s.gate.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoverMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: s.config.GetAllowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         3600,
	}).Handler)

	r.Get(RouteHealthz, s.HealthzHandler)
	r.Method(http.MethodGet, RouteMetrics, s.collector.Handler())

	r.Get(RouteIndex, s.IndexHandler)
	r.Get(RouteLogin, s.LoginPageHandler())
	r.With(s.limiter.Handler).Post(RouteLogin, s.LoginSubmitHandler)
	r.Post(RouteLogout, s.LogoutHandler)
	r.Get(RouteRegister, s.RegisterPageHandler())
	r.With(s.limiter.Handler).Post(RouteRegister, s.RegisterSubmitHandler())

	r.Group(func(pages chi.Router) {
		pages.Use(s.guard.Protect(false))
		pages.Get(RouteStudentHome, s.StudentHomeHandler())
		pages.Post(RouteStudentProgress, s.StudentProgressHandler)
	})

	r.Group(func(admin chi.Router) {
		admin.Use(s.guard.Protect(true))
		admin.Get(RouteAdminHome, s.AdminHomeHandler())
		admin.Get(RouteAdminInterns, s.AdminInternsHandler())
		admin.Get(RouteAdminInternDetail, s.AdminInternDetailHandler())
		admin.Get(RouteAdminPastInterns, s.AdminPastInternsHandler())
		admin.Get(RouteAdminProjects, s.AdminProjectsHandler())
		admin.Post(RouteAdminProjects, s.AdminCreateProjectHandler)
		admin.Post(RouteAdminAttendance, s.AdminAttendanceHandler)
	})

	return r
}

// currentUser returns the authenticated user for handlers running behind the
// guard. The guard guarantees authentication; a nil user here means the
// session was revoked between the guard check and the handler.
func (s *Server) currentUser() *session.User {
	return s.gate.Status().User
}
