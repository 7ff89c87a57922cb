// Package main is the entry point for the auth server. It reads configuration,
// builds the logger, and hands off to internal/server; all real logic lives in
// the internal packages.
package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/auth-backend/internal/config"
	"github.com/sakif/auth-backend/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Misconfiguration is fatal on purpose: a mis-scaled token TTL or a
		// missing secret must never limp into serving traffic.
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", filepath.Dir(cfg.DBPath)),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until the server is shut down via SIGINT/SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
