// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects storage, the admission
// pipeline, services, handlers and routes, and decides:
// - Which backend stores the data (SQLite or PostgreSQL)
// - Which verifier checks bearer tokens (Firebase or a local HS256 secret)
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → openStore    → repository.Store (sqlite.DB | postgres.DB)
//	              → newVerifier  → auth.Verifier (Firebase | Local)
//	Store → IdentityService ─┐
//	Verifier ────────────────┴→ auth.Admission → protected routes
//	Store → UserService / SubjectService / StudyLogService → handlers
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/stardylog/backend/internal/auth"
	"github.com/stardylog/backend/internal/config"
	"github.com/stardylog/backend/internal/handler"
	"github.com/stardylog/backend/internal/metrics"
	"github.com/stardylog/backend/internal/middleware"
	"github.com/stardylog/backend/internal/repository"
	"github.com/stardylog/backend/internal/repository/postgres"
	sqliteRepo "github.com/stardylog/backend/internal/repository/sqlite"
	"github.com/stardylog/backend/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store and the rate limiter's cleanup goroutine. Both
// are released by Close, which Start calls on the way out.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	store    repository.Store
	verifier auth.Verifier
	limiter  *middleware.RateLimiter
	registry *prometheus.Registry
}

// New opens the configured store, picks a verifier and builds the router.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	verifier, err := newVerifier(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	return newServer(cfg, logger, store, verifier), nil
}

// newServer wires an already opened store and verifier. Tests call it
// directly with an in-memory store.
func newServer(cfg *config.Config, logger *slog.Logger, store repository.Store, verifier auth.Verifier) *Server {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		store:    store,
		verifier: verifier,
		limiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:   rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0),
			Burst:  cfg.RateLimitBurst,
			Logger: logger,
		}),
		registry: registry,
	}
	s.setupRoutes()
	return s
}

// openStore picks PostgreSQL when DATABASE_URL is set, SQLite otherwise.
// postgres.Open applies pending migrations; SQLite creates its schema itself.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, error) {
	if cfg.UsesPostgres() {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		logger.Info("using postgres store")
		return db, nil
	}

	// os.MkdirAll is `mkdir -p`: a fresh checkout has no data/ directory yet.
	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	logger.Info("using sqlite store", slog.String("path", cfg.DBPath))
	return db, nil
}

// newVerifier picks the Firebase verifier when a project is configured.
// The local HS256 verifier is a development fallback and says so loudly.
func newVerifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.Verifier, error) {
	if cfg.FirebaseProjectID != "" {
		logger.Info("verifying Firebase ID tokens", slog.String("project", cfg.FirebaseProjectID))
		return auth.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID), nil
	}

	v, err := auth.NewLocalVerifier(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("creating local verifier: %w", err)
	}
	logger.Warn("FIREBASE_PROJECT_ID not set, accepting locally signed tokens only (development mode)")
	return v, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /health                → liveness (public)
// GET    /ready                 → readiness: store ping (public)
// GET    /metrics               → Prometheus exposition (public)
// GET    /me                    → caller's profile
// POST   /me/display-name       → set nickname
// GET    /api/subjects          → list subjects
// POST   /api/subjects          → create subject
// PUT    /api/subjects/{id}     → update subject
// DELETE /api/subjects/{id}     → soft-delete subject
// GET    /api/logs/study        → list study logs
// POST   /api/logs/study        → record a study log
//
// MIDDLEWARE ORDER MATTERS:
// Global, in order:
// 1. RequestID: assigns a unique ID to each request (for tracing)
// 2. RealIP: extracts the real client IP from proxy headers
// 3. Logger: logs each request with timing info and counts statuses
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. Admission: verifies the bearer token and provisions the user
//
// Admission is global: a malformed or expired token is answered with 401 on
// every route, /health included. Requests without a token pass as anonymous.
//
// Protected group (and the 404/405 fallbacks), in order:
// 1. AnnotateSubject: adds the subject to the request log line
// 2. RequireAuth: 401 for anonymous requests
// 3. RateLimiter: 429 once the subject's bucket is empty
func (s *Server) setupRoutes() {
	collector := metrics.NewCollector(s.registry)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, collector))
	s.router.Use(chimiddleware.Recoverer)

	// === Admission pipeline ===
	identities := service.NewIdentityService(s.store, s.logger,
		service.WithProvisionRecorder(collector),
	)
	admission := auth.NewAdmission(s.verifier, identities,
		auth.WithVerifyTimeout(s.config.AuthVerifyTimeout),
		auth.WithLogger(s.logger),
		auth.WithRecorder(collector),
	)
	s.router.Use(admission.Middleware)

	protected := []func(http.Handler) http.Handler{
		middleware.AnnotateSubject,
		auth.RequireAuth,
		s.limiter.Middleware,
	}

	// === Public routes ===
	health := handler.NewHealthHandler(s.store, s.logger)
	s.router.Get("/health", health.HandleHealth)
	s.router.Get("/ready", health.HandleReady)
	s.router.Handle("/metrics", metrics.Handler(s.registry))

	// === Protected routes ===
	me := handler.NewMeHandler(service.NewUserService(s.store, s.logger), s.logger)
	subjects := handler.NewSubjectHandler(service.NewSubjectService(s.store, s.logger), s.logger)
	logs := handler.NewStudyLogHandler(service.NewStudyLogService(s.store, s.logger), s.logger)

	s.router.Group(func(r chi.Router) {
		r.Use(protected...)

		r.Get("/me", me.HandleMe)
		r.Post("/me/display-name", me.HandleSetDisplayName)

		r.Route("/api", func(r chi.Router) {
			r.Get("/subjects", subjects.HandleList)
			r.Post("/subjects", subjects.HandleCreate)
			r.Put("/subjects/{id}", subjects.HandleUpdate)
			r.Delete("/subjects/{id}", subjects.HandleDelete)

			r.Get("/logs/study", logs.HandleList)
			r.Post("/logs/study", logs.HandleCreate)
		})
	})

	// Unknown paths and unknown methods are not public either: anonymous
	// callers get 401 and only authenticated ones learn what does not exist.
	fallback := chi.Chain(protected...)
	s.router.NotFound(fallback.HandlerFunc(http.NotFound).ServeHTTP)
	s.router.MethodNotAllowed(fallback.HandlerFunc(methodNotAllowed).ServeHTTP)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store and stops background work.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.store.Close()
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (SHUTDOWN_TIMEOUT)
// 3. Close the store (flushes the SQLite WAL, releases Postgres connections)
//
// main cancels ctx on SIGINT/SIGTERM via signal.NotifyContext.
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
