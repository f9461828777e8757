package main

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

	"github.com/p-n-ai/pai-curriculum/internal/curriculum"
	"github.com/p-n-ai/pai-curriculum/internal/httpapi"
	"github.com/p-n-ai/pai-curriculum/internal/platform/cache"
	"github.com/p-n-ai/pai-curriculum/internal/platform/config"
	"github.com/p-n-ai/pai-curriculum/internal/platform/database"
	"github.com/p-n-ai/pai-curriculum/internal/realtime"
	"github.com/p-n-ai/pai-curriculum/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(cfg.NewLogger())

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      app.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store.Backend, "mode", cfg.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	// Websocket connections are hijacked and not tracked by Shutdown.
	app.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// app holds the wired dependencies behind the HTTP handler.
type app struct {
	handler http.Handler
	hub     *realtime.Hub
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects the configured backends and builds the routed handler.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{hub: realtime.NewHub()}
	var (
		store  curriculum.Store
		events = curriculum.FanOut{a.hub}
		checks []httpapi.Check
	)

	switch cfg.Store.Backend {
	case "postgres":
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)

		if err := db.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		pg, err := curriculum.NewPostgresStore(db.Pool)
		if err != nil {
			a.Close()
			return nil, err
		}
		store = pg
		events = append(events, curriculum.NewPostgresEventLog(db.Pool))
		checks = append(checks, httpapi.Check{Name: "database", Fn: db.HealthCheck})
	default:
		store = curriculum.NewMemoryStore()
	}

	var sessions session.Store
	if cfg.Session.Enabled {
		rdb, err := cache.NewRedis(ctx, cfg.Cache.URL, "learn:")
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := rdb.Close(); err != nil {
				slog.Warn("failed to close cache", "error", err)
			}
		})
		sessions = session.NewRedisStore(rdb)
		checks = append(checks, httpapi.Check{Name: "cache", Fn: rdb.HealthCheck})
	}

	svc := curriculum.NewService(curriculum.ServiceConfig{
		Store:  store,
		Cache:  cache.NewTTL(cfg.Cache.TTL),
		Events: events,
	})

	if cfg.Seed.OnStart {
		loader, err := curriculum.NewLoader(cfg.Seed.Path)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load seed curricula: %w", err)
		}
		n, err := loader.Seed(ctx, svc)
		if err != nil {
			a.Close()
			return nil, err
		}
		slog.Info("curricula seeded", "submissions", n, "path", cfg.Seed.Path)
	}

	a.handler = httpapi.New(httpapi.Config{
		Service:     svc,
		Sessions:    sessions,
		Events:      a.hub,
		Checks:      checks,
		Development: cfg.IsDevelopment(),
	}).Handler()
	return a, nil
}
