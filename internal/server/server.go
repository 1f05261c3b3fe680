// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware, and
// routes, and owns the database connection for the lifetime of the process.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go: kong parses config.Server, builds the logger
//	Server.New(): sqlite.DB → services → handlers → routes
//
// This is the "composition root": all dependencies are wired here, rather
// than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/quran-notes/internal/auth"
	"github.com/sakif/quran-notes/internal/config"
	"github.com/sakif/quran-notes/internal/handler"
	"github.com/sakif/quran-notes/internal/middleware"
	sqliteRepo "github.com/sakif/quran-notes/internal/repository/sqlite"
	"github.com/sakif/quran-notes/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it during graceful
// shutdown; Close does it for callers (tests) that never call Start.
type Server struct {
	router *chi.Mux
	config config.Server
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database, bootstraps the admin account if configured and
// builds the router.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the router, for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET  /healthz
//	POST /auth/register                         public
//	POST /auth/login                            public
//	POST /auth/logout                           public
//	GET  /auth/github/login, /auth/github/callback   only with a GitHub client ID
//
//	GET  /api/verses/{surah}/{ayah}             anonymous or logged in
//	GET  /api/verses/{surah}/{ayah}/words
//	GET  /api/words/{wordID}
//	GET  /api/search
//	GET  /api/contributions                     ?reference= or ?author=
//	GET  /api/contributions/{id}
//
//	GET  /api/me                                logged in
//	PUT  /api/highlights/{surah}/{ayah}/{position}
//	GET  /api/highlights/{surah}/{ayah}/{position}
//	GET  /api/highlights/{surah}/{ayah}
//	POST /api/contributions
//	GET  /api/contributions/pending
//	POST /api/contributions/{id}/moderate
//	POST /api/admin/users/{id}/approve
//	PUT  /api/admin/users/{id}/role
//	GET  /api/admin/users/unapproved
//	POST /api/admin/imports/{table}
//	GET  /api/admin/imports
//
// RequireAuth only establishes identity (401). Role checks (403) happen in
// the services, so there is exactly one place that decides who may do what.
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns unique ID to each request (for tracing)
//  2. RealIP: extracts real client IP from proxy headers
//  3. Logger: logs each request with timing info
//  4. Recoverer: catches panics and returns 500 instead of crashing
//  5. CORS
func (s *Server) setupRoutes(ctx context.Context) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.config.CORSOrigins))

	// === Services ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)
	corpusService := service.NewCorpusService(s.db, s.config.MaxImportBytes, s.logger)
	highlightService := service.NewHighlightService(s.db, s.db, s.logger)
	contributionService := service.NewContributionService(s.db, s.logger)

	if s.config.AdminUsername != "" {
		if _, err := authService.EnsureAdmin(ctx, s.config.AdminUsername, s.config.AdminPassword); err != nil {
			return fmt.Errorf("bootstrapping admin: %w", err)
		}
	}

	// === Handlers ===
	github := auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.CallbackURL())
	authHandler := handler.NewAuthHandler(authService, github, tokens.TTL(), s.logger)
	adminHandler := handler.NewAdminHandler(authService, s.logger)
	corpusHandler := handler.NewCorpusHandler(corpusService, s.logger)
	highlightHandler := handler.NewHighlightHandler(highlightService, s.logger)
	contributionHandler := handler.NewContributionHandler(contributionService, s.logger)

	requireAuth := auth.RequireAuth(tokens, authService, s.logger)
	optionalAuth := auth.OptionalAuth(tokens, authService, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	// === Auth Routes ===
	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
		if github != nil {
			r.Get("/github/login", authHandler.HandleGitHubLogin)
			r.Get("/github/callback", authHandler.HandleGitHubCallback)
		}
	})
	if github == nil {
		s.logger.Info("GitHub sign-in disabled (no client ID configured)")
	}

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		// Public reads; a valid token upgrades the caller from anonymous.
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth, middleware.RecordActor)

			r.Get("/verses/{surah}/{ayah}", corpusHandler.HandleVerse)
			r.Get("/verses/{surah}/{ayah}/words", corpusHandler.HandleVerseWords)
			r.Get("/words/{wordID}", corpusHandler.HandleWord)
			r.Get("/search", corpusHandler.HandleSearch)
			r.Get("/contributions", contributionHandler.HandleList)
			r.Get("/contributions/{id}", contributionHandler.HandleGet)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth, middleware.RecordActor)

			r.Get("/me", authHandler.HandleMe)

			r.Put("/highlights/{surah}/{ayah}/{position}", highlightHandler.HandleSet)
			r.Get("/highlights/{surah}/{ayah}/{position}", highlightHandler.HandleGet)
			r.Get("/highlights/{surah}/{ayah}", highlightHandler.HandleListVerse)

			r.Post("/contributions", contributionHandler.HandleSubmit)
			r.Get("/contributions/pending", contributionHandler.HandleListPending)
			r.Post("/contributions/{id}/moderate", contributionHandler.HandleModerate)

			r.Route("/admin", func(r chi.Router) {
				r.Post("/users/{id}/approve", adminHandler.HandleApprove)
				r.Put("/users/{id}/role", adminHandler.HandleSetRole)
				r.Get("/users/unapproved", adminHandler.HandleListUnapproved)
				r.Post("/imports/{table}", corpusHandler.HandleImport)
				r.Get("/imports", corpusHandler.HandleListImports)
			})
		})
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		// Long enough for a full corpus upload and its import transaction.
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
