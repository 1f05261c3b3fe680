// Package main is the entry point for the quran-notes HTTP server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
//  1. Read configuration (flags and environment, via kong)
//  2. Create dependencies (logger, data directory)
//  3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/service, ...).
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/sakif/quran-notes/internal/config"
	"github.com/sakif/quran-notes/internal/server"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// kong fills config.Server from flags, then environment variables, then
	// the defaults in its struct tags, and calls Validate before returning.
	var cfg config.Server
	kctx := kong.Parse(&cfg,
		kong.Name("quran-notes"),
		kong.Description("Word-addressable Quran annotation and moderation server"),
		kong.UsageOnError(),
	)

	// === 2. SET UP LOGGING ===
	logger, err := cfg.NewLogger(os.Stdout)
	kctx.FatalIfErrorf(err)

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	dbDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		logger.Error("failed to create database directory",
			slog.String("dir", dbDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
