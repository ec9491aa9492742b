// Package internal provides the main application initialization and runtime logic.
package internal

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
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/agora/internal/api"
	"github.com/starford/agora/internal/artifacts"
	"github.com/starford/agora/internal/auth"
	"github.com/starford/agora/internal/blob"
	"github.com/starford/agora/internal/communities"
	"github.com/starford/agora/internal/events"
	"github.com/starford/agora/internal/follow"
	"github.com/starford/agora/internal/ledger"
	"github.com/starford/agora/internal/mcpserver"
	"github.com/starford/agora/internal/sse"
	"github.com/starford/agora/internal/store"
	"github.com/starford/agora/internal/workflow"
)

// services is the wired domain layer shared by the HTTP and MCP entry points.
type services struct {
	db          *store.DB
	blobs       *blob.FS
	workflow    *workflow.Workflow
	ledger      *ledger.Ledger
	artifacts   *artifacts.Service
	communities *communities.Service
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger initializes the structured JSON logger and installs it as default.
func (a *application) newLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openServices opens the database and blob store and wires the domain
// services. cb receives every committed lifecycle event.
func openServices(cfg *Config, logger *slog.Logger, cb events.Callback) (*services, error) {
	blobs, err := blob.NewFS(cfg.Blobs.Path, cfg.Blobs.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("init blobs: %w", err)
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	wf := workflow.New(db, workflow.WithEvents(cb), workflow.WithLogger(logger))
	l := ledger.New(db, ledger.WithEvents(cb), ledger.WithLogger(logger))
	graph := follow.New(db, nil)

	return &services{
		db:          db,
		blobs:       blobs,
		workflow:    wf,
		ledger:      l,
		artifacts:   artifacts.NewService(db, wf, l, artifacts.WithEvents(cb), artifacts.WithLogger(logger)),
		communities: communities.NewService(db, graph, communities.WithEvents(cb), communities.WithLogger(logger)),
	}, nil
}

// newAuthProvider builds the token provider. For file mode the returned
// *auth.File must be watched to pick up changes.
func newAuthProvider(cfg AuthConfig, logger *slog.Logger) (auth.Provider, *auth.File, error) {
	switch cfg.Mode {
	case AuthModeFile:
		f, err := auth.NewFile(cfg.TokensFile, logger)
		if err != nil {
			return nil, nil, err
		}
		return f, f, nil
	default:
		s, err := auth.NewStatic(cfg.Tokens)
		if err != nil {
			return nil, nil, err
		}
		if s.Len() == 0 {
			logger.Warn("no auth tokens configured; every request is anonymous")
		}
		return s, nil, nil
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.newLogger()

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("blobs_path", cfg.Blobs.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(cfg.Events.Throttle)
	defer broker.Close()

	svc, err := openServices(cfg, logger, broker.Notify)
	if err != nil {
		return err
	}
	defer svc.db.Close()

	provider, tokensFile, err := newAuthProvider(cfg.Auth, logger)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	apiRouter := api.NewRouter(api.Deps{
		Artifacts:   svc.artifacts,
		Workflow:    svc.workflow,
		Ledger:      svc.ledger,
		Communities: svc.communities,
		Blobs:       svc.blobs,
		Auth:        provider,
		Events:      broker,
	})

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
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := svc.db.Ping(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api and downloads under the blob base URL.
	r.Mount("/api", apiRouter)
	r.Mount(cfg.Blobs.BaseURL, api.FileRoutes(svc.blobs))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload the tokens file on change.
	if tokensFile != nil {
		g.Go(func() error {
			return tokensFile.Watch(gCtx)
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

		// SSE streams end when the broker closes their channels.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the read-only MCP tools on stdin/stdout.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := app.newLogger()

	svc, err := openServices(app.config, logger, nil)
	if err != nil {
		return err
	}
	defer svc.db.Close()

	logger.Info("MCP server starting on stdio", slog.String("sqlite_path", app.config.SQLite.Path))
	return mcpserver.New(svc.artifacts, svc.communities).ServeStdio()
}
