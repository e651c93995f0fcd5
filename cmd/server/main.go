package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/blindtasting/internal/config"
	"github.com/playperu/blindtasting/internal/database"
	"github.com/playperu/blindtasting/internal/handler/health"
	"github.com/playperu/blindtasting/internal/migrations"
	"github.com/playperu/blindtasting/internal/server"
	"github.com/playperu/blindtasting/internal/session"
	"github.com/playperu/blindtasting/internal/store"
	"github.com/playperu/blindtasting/internal/tasting"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	version, err := migrations.Run(ctx, db)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath, "schema_version", version)

	// --- Sessions ---
	sessions := session.NewManager(
		store.NewDocStore(db),
		session.NewBroker(),
		logger,
		tasting.Options{AllowRestart: cfg.AllowRestart},
	)

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, cfg.ShutdownTimeout, logger, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, map[string]health.Checker{
			"sqlite": dbChecker{db},
		}).Routes())
		server.AddRoutes(r, logger, sessions, sessions.Broker(), cfg.SPADir)
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

// dbChecker adapts *sql.DB to health.Checker.
type dbChecker struct{ db *sql.DB }

func (d dbChecker) Check(ctx context.Context) error { return d.db.PingContext(ctx) }
