package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/vk/beancharts/internal/ctxlog"
	"github.com/vk/beancharts/internal/refresh"
	"github.com/vk/beancharts/internal/registry"
	"github.com/vk/beancharts/internal/store"
	"github.com/vk/beancharts/internal/subgraph"
)

// storeTimeout bounds a single bucket round trip. Artifact payloads are small
// JSON documents; anything slower than this is a broken backend.
const storeTimeout = 30 * time.Second

// logLevels maps the accepted -log-level values. cli validates the flag, so
// an unknown value here is a programming error; info is the safe floor.
var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newLogger builds the App's isolated logger. The global slog default is left
// alone so tests and the bootstrap logger in cmd/cli stay unaffected. JSON is
// the service default; "text" is for reading logs off a terminal.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	level, ok := logLevels[levelStr]
	if !ok {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "text" {
		return slog.New(slog.NewTextHandler(outW, opts))
	}
	return slog.New(slog.NewJSONHandler(outW, opts))
}

// App encapsulates the service's dependencies, configuration, and lifecycle.
type App struct {
	logger       *slog.Logger
	config       *Config
	registry     *registry.Registry
	store        *store.Client
	subgraph     *subgraph.Client
	orchestrator *refresh.Orchestrator
}

// NewApp is the constructor for the service. It returns a fully initialized
// App with its own isolated logger and registry. A configuration that cannot
// produce a working service is a fatal startup error, so it panics; cmd/cli
// recovers and reports it.
func NewApp(outW io.Writer, cfg *Config, mods ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	handlers := registry.NewHandlers()
	if len(mods) == 0 {
		mods = coreModules
	}
	for _, mod := range mods {
		mod.Register(handlers)
	}
	logger.Debug("All chart modules registered.", "count", len(mods))

	subgraphClient := subgraph.New(subgraph.Config{URL: cfg.SubgraphURL})

	reg, err := registry.Load(ctx, cfg.ChartsPath, handlers, &registry.Deps{Subgraph: subgraphClient})
	if err != nil {
		panic(fmt.Errorf("failed to load chart registry: %w", err))
	}
	logger.Info("Chart registry ready.", "charts", reg.Names())

	storeClient := store.New(store.Config{
		BucketURL: cfg.BucketURL,
		Token:     cfg.StorageToken,
		Timeout:   storeTimeout,
	})

	orchestrator := refresh.New(reg, storeClient, refresh.Options{
		MaxAge:      cfg.MaxAge,
		Concurrency: cfg.Concurrency,
	})

	return &App{
		logger:       logger,
		config:       cfg,
		registry:     reg,
		store:        storeClient,
		subgraph:     subgraphClient,
		orchestrator: orchestrator,
	}
}

// Registry returns the application's chart registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Close releases the App's long-lived clients. Both are always closed; their
// errors are joined.
func (a *App) Close() error {
	return closeAll(a.store, a.subgraph)
}

func closeAll(closers ...io.Closer) error {
	errs := make([]error, 0, len(closers))
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
