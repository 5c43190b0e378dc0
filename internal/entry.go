// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/fileviewer/internal/api"
	"github.com/starford/fileviewer/internal/mcpserver"
	"github.com/starford/fileviewer/internal/metrics"
	"github.com/starford/fileviewer/internal/project"
	"github.com/starford/fileviewer/internal/render"
	"github.com/starford/fileviewer/internal/sse"
	"github.com/starford/fileviewer/internal/viewer"
)

// runtime is the set of components shared by the HTTP and MCP entry points.
type runtime struct {
	logger      *slog.Logger
	registry    *project.Store
	broadcaster *sse.Broadcaster
	svc         *viewer.Service
}

func (rt *runtime) close() {
	rt.svc.Shutdown()
	rt.broadcaster.Close()
	if err := rt.registry.Close(); err != nil {
		rt.logger.Warn("registry close failed", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// setup opens the registry, imports any legacy project list and builds the
// service. The caller owns the returned runtime and must close it.
func setup(app *application) (*runtime, error) {
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(app.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("registry_path", cfg.Registry.Path),
		slog.String("legacy_file", cfg.Registry.LegacyFile),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(filepath.Dir(cfg.Registry.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}
	registry, err := project.Open(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("init registry: %w", err)
	}

	if cfg.Registry.LegacyFile != "" {
		n, err := project.ImportLegacy(registry, cfg.Registry.LegacyFile)
		if err != nil {
			logger.Warn("legacy import failed",
				slog.String("file", cfg.Registry.LegacyFile),
				slog.String("error", err.Error()))
		} else if n > 0 {
			logger.Info("legacy projects imported", slog.Int("count", n))
		}
	}

	broadcaster := sse.NewBroadcaster(cfg.Events.QueueSize, cfg.Events.Heartbeat)
	svc := viewer.NewService(registry, broadcaster, render.NewGoldmark(), logger)

	return &runtime{
		logger:      logger,
		registry:    registry,
		broadcaster: broadcaster,
		svc:         svc,
	}, nil
}

// listen binds the configured port, or searches upward from SearchStart
// when the port is 0.
func listen(cfg HTTPConfig) (net.Listener, error) {
	if cfg.Port != 0 {
		return net.Listen("tcp", cfg.Address(cfg.Port))
	}
	var lastErr error
	for port := cfg.SearchStart; port < cfg.SearchStart+cfg.SearchAttempts && port <= 65535; port++ {
		ln, err := net.Listen("tcp", cfg.Address(port))
		if err == nil {
			return ln, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no free port in %d-%d: %w", cfg.SearchStart, cfg.SearchStart+cfg.SearchAttempts-1, lastErr)
}

func healthOK(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// newHTTPHandler builds the root router: health checks, metrics and the API.
func newHTTPHandler(rt *runtime, auth AuthConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", healthOK)
	r.Get("/health/ready", healthOK)
	r.Handle("/metrics", metrics.Handler())

	r.Mount("/api", api.NewRouter(rt.svc, auth.AuthEnabled(), auth.Token, rt.broadcaster))
	return r
}

// Run starts the HTTP server and project watchers and blocks until ctx is
// cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	rt, err := setup(app)
	if err != nil {
		return err
	}
	defer rt.close()
	logger := rt.logger

	if err := rt.svc.StartAll(ctx); err != nil {
		return fmt.Errorf("start watchers: %w", err)
	}

	ln, err := listen(cfg.App.HTTP)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	httpServer := &http.Server{
		Handler:           newHTTPHandler(rt, cfg.Auth),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", ln.Addr().String()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

		// Streams never end on their own; close them before draining.
		rt.broadcaster.Close()

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

// RunMCP serves the MCP tools on stdin/stdout. Logs go to the writer set by
// WithLogOutput, stderr by default.
func RunMCP(_ context.Context, opts ...Option) error {
	opts = append([]Option{WithLogOutput(os.Stderr)}, opts...)
	app, err := newApplication(opts)
	if err != nil {
		return err
	}

	rt, err := setup(app)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.logger.Info("Starting MCP server on stdio")
	return mcpserver.New(rt.svc, app.version).ServeStdio()
}
