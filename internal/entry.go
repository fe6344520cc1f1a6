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
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/jotter/internal/api"
	"github.com/starford/jotter/internal/codec"
	"github.com/starford/jotter/internal/index"
	"github.com/starford/jotter/internal/mcpserver"
	"github.com/starford/jotter/internal/notebook"
	"github.com/starford/jotter/internal/noteservice"
	"github.com/starford/jotter/internal/sse"
	"github.com/starford/jotter/internal/storage"
)

const tagsThrottle = 2 * time.Second

// Run starts the HTTP server with the given options. Dirty notes are saved
// on shutdown.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("notebook_path", cfg.Notebook.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()),
		slog.Duration("autosave_interval", cfg.App.AutosaveInterval))

	broker := sse.NewBroker(tagsThrottle)
	defer broker.Close()

	rt, err := app.open(ctx, logger, noteservice.WithPublisher(broker))
	if err != nil {
		return err
	}
	defer rt.close()
	svc := rt.svc

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
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Mount("/api", api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker))

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		g.Go(func() error {
			if err := index.Watch(gCtx, rt.db, rt.store, svc.Layout(), svc.Dir(), logger, svc.PartitionChanged); err != nil {
				logger.Warn("watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if every := cfg.App.AutosaveInterval; every > 0 {
		g.Go(func() error {
			autosave(gCtx, svc, every, logger)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		var stopErr error
		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			// Stop the watcher and autosave loops.
			stopErr = errShutdown
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return stopErr
	})

	err = g.Wait()
	if errors.Is(err, errShutdown) {
		err = nil
	}

	if _, saveErr := svc.Save(context.Background()); saveErr != nil {
		logger.Error("Final save failed", slog.String("error", saveErr.Error()))
		err = errors.Join(err, saveErr)
	}

	if err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr so they do
// not corrupt the protocol stream. Dirty notes are saved on exit.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	logger := app.logger()
	slog.SetDefault(logger)

	rt, err := app.open(ctx, logger)
	if err != nil {
		return err
	}
	defer rt.close()

	logger.Info("MCP server starting", slog.String("notebook", rt.svc.Dir()))
	serveErr := mcpserver.New(rt.svc).ServeStdio()

	if _, err := rt.svc.Save(context.Background()); err != nil {
		logger.Error("Final save failed", slog.String("error", err.Error()))
		return errors.Join(serveErr, err)
	}
	return serveErr
}

// OpenNotebook opens the configured notebook without loading any partition.
// The CLI's one-shot commands use it directly.
func OpenNotebook(cfg *Config, opts ...Option) (*notebook.Notebook, *storage.FS, error) {
	app, err := newApplication(append([]Option{WithConfig(cfg)}, opts...), io.Discard)
	if err != nil {
		return nil, nil, err
	}
	return app.openNotebook()
}

var errShutdown = errors.New("shutdown requested")

func newApplication(opts []Option, logOut io.Writer) (*application, error) {
	app := &application{logOut: logOut}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// logger builds a text handler for terminals and JSON otherwise.
func (a *application) logger() *slog.Logger {
	hopts := &slog.HandlerOptions{Level: a.config.App.LogLevel}
	if f, ok := a.logOut.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(f, hopts))
	}
	return slog.New(slog.NewJSONHandler(a.logOut, hopts))
}

func (a *application) openNotebook() (*notebook.Notebook, *storage.FS, error) {
	cfg := a.config.Notebook
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create notebook dir: %w", err)
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve notebook dir: %w", err)
	}
	store, err := storage.NewFS(abs, codec.Default)
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}
	nb, err := notebook.Open(abs,
		notebook.WithTitle(cfg.Title),
		notebook.WithExtension(cfg.Extension),
		notebook.WithCodec(codec.Default),
		notebook.WithClock(a.now),
		notebook.WithProvider(store),
	)
	if err != nil {
		return nil, nil, err
	}

	// Record an explicit title so other tools opening the directory agree.
	if cfg.Title != "" {
		s, err := nb.LoadSettings()
		if err != nil {
			return nil, nil, err
		}
		if s.Title != cfg.Title {
			if err := nb.SaveSettings(); err != nil {
				return nil, nil, err
			}
		}
	}
	return nb, store, nil
}

type services struct {
	svc   *noteservice.Service
	db    *index.DB
	store *storage.FS
}

func (rt *services) close() {
	if err := rt.db.Close(); err != nil {
		slog.Error("close index", slog.String("error", err.Error()))
	}
}

// open builds the notebook service, loads today's partition and brings the
// search index up to date.
func (a *application) open(ctx context.Context, logger *slog.Logger, extra ...noteservice.Option) (*services, error) {
	nb, store, err := a.openNotebook()
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(a.config.SQLite.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}
	db, err := index.Open(a.config.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	opts := append([]noteservice.Option{
		noteservice.WithIndex(db, store),
		noteservice.WithLogger(logger),
	}, extra...)
	svc := noteservice.New(nb, opts...)

	// A corrupt partition for today is reported but does not stop the
	// server; Save refuses to overwrite it.
	if err := svc.Load(ctx); err != nil {
		logger.Warn("initial load failed", slog.String("error", err.Error()))
	}

	logger.Info("Notebook opened",
		slog.String("title", nb.Title()),
		slog.String("dir", nb.Dir()),
		slog.Int("notes", svc.Info(ctx).Notes))

	return &services{svc: svc, db: db, store: store}, nil
}

func autosave(ctx context.Context, svc *noteservice.Service, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !svc.Dirty() {
				continue
			}
			if _, err := svc.Save(ctx); err != nil {
				logger.Error("Autosave failed", slog.String("error", err.Error()))
			}
		}
	}
}
