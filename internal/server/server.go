// Package server wires the router, middleware and handlers together and owns
// the HTTP server lifecycle. It is the composition root: every dependency is
// constructed in New, nothing is wired anywhere else.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/auth-backend/internal/auth"
	"github.com/sakif/auth-backend/internal/config"
	"github.com/sakif/auth-backend/internal/handler"
	"github.com/sakif/auth-backend/internal/middleware"
	sqliteRepo "github.com/sakif/auth-backend/internal/repository/sqlite"
	"github.com/sakif/auth-backend/internal/service"
	"github.com/sakif/auth-backend/internal/upload"
)

// Server holds the router and the resources it owns. The database connection
// is closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain:
//
//	sqlite.DB → UserDB / RefreshTokenDB
//	TokenService, PasswordService, upload.Store
//	→ AuthService → AuthHandler → routes
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
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

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures middleware, handlers and routes.
//
//	POST /auth/register       create account (multipart)
//	POST /auth/login          issue token pair
//	POST /auth/refresh        rotate refresh token
//	POST /auth/logout         revoke sessions        (auth required)
//	GET  /api/me              current user's profile (auth required)
//	GET  /profile-images/*    uploaded images
//	GET  /healthz             liveness probe
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(
		s.config.AccessSecret,
		s.config.RefreshSecret,
		s.config.AccessTTL,
		s.config.RefreshTTL,
	)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	uploads, err := upload.NewStore(s.config.UploadDir)
	if err != nil {
		return fmt.Errorf("creating upload store: %w", err)
	}

	passwords := auth.NewPasswordService()
	authService := service.NewAuthService(s.db.Users(), s.db.RefreshTokens(), tokens, passwords, s.logger)
	authHandler := handler.NewAuthHandler(authService, tokens, uploads, s.config.PublicBaseURL, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/refresh", authHandler.HandleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Post("/logout", authHandler.HandleLogout)
		})
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/me", authHandler.HandleMe)
	})

	// Uploaded profile images are public, read-only static assets. Requests
	// for a directory (trailing slash) 404 instead of listing every upload.
	fileServer := http.StripPrefix("/profile-images/", http.FileServer(http.Dir(uploads.Dir())))
	s.router.Get("/profile-images/*", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return nil
}

// Router exposes the configured router, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close releases resources owned by the server. Start calls it on shutdown;
// tests that never call Start use it directly.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down gracefully:
// stop accepting connections, give in-flight requests 30 seconds, close the
// database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.String("uploads", s.config.UploadDir),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
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
