// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/flowcrm/internal/api"
	"github.com/starford/flowcrm/internal/mcpserver"
	"github.com/starford/flowcrm/internal/records"
	"github.com/starford/flowcrm/internal/sse"
	"github.com/starford/flowcrm/internal/storage"
	"github.com/starford/flowcrm/internal/viewservice"
	"github.com/starford/flowcrm/internal/viewstore"
)

// components are the parts shared by the HTTP and MCP entry points.
type components struct {
	logger  *slog.Logger
	store   *viewstore.Store
	records *records.Repository
	closers []io.Closer
}

func (c *components) Close() {
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			c.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

func setup(ctx context.Context, opts []Option) (*application, *components, error) {
	app := &application{version: "dev", logOutput: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("views_backend", cfg.Views.Backend),
		slog.String("views_path", cfg.Views.Path),
		slog.String("seed_path", cfg.Records.SeedPath),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c := &components{logger: logger}

	slot, closer, err := openSlot(ctx, cfg.Views)
	if err != nil {
		return nil, nil, fmt.Errorf("init view storage: %w", err)
	}
	if closer != nil {
		c.closers = append(c.closers, closer)
	}
	c.store = viewstore.New(ctx, slot, logger)

	repo, err := records.Load(cfg.Records.SeedPath, logger)
	if err != nil {
		c.Close()
		return nil, nil, fmt.Errorf("init records: %w", err)
	}
	c.records = repo

	return app, c, nil
}

// openSlot builds the storage slot for the configured backend. The
// returned closer is nil for backends without a connection.
func openSlot(ctx context.Context, cfg ViewsConfig) (storage.Slot, io.Closer, error) {
	switch cfg.Backend {
	case BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create db dir: %w", err)
		}
		s, err := storage.OpenSQLite(cfg.Path, cfg.Key)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case BackendRedis:
		s, err := storage.NewRedisSlot(ctx, storage.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Key,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		s, err := storage.NewFileSlot(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, c, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg := app.config
	logger := c.logger

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc := viewservice.New(c.store, c.records, viewservice.WithNotifier(broker))
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, `{"status":"ok","views":%d}`, c.store.Len())
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload records when the seed file changes.
	if cfg.Records.Watch && cfg.Records.SeedPath != "" {
		g.Go(func() error {
			if err := records.Watch(gCtx, c.records, logger, broker.PublishRecordsEvent); err != nil {
				logger.Warn("seed watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup context so the watcher stops with the
// server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, c, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	svc := viewservice.New(c.store, c.records)
	c.logger.Info("MCP server starting on stdio", slog.String("version", app.version))
	return mcpserver.New(svc, app.version).ServeStdio()
}
