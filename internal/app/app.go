package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/registry"
	"github.com/vk/wheelgrid/internal/runner"
	"github.com/vk/wheelgrid/internal/shell"
	"github.com/vk/wheelgrid/internal/upload"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	ctx      context.Context
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry
	model    *config.Model

	shell       shell.Runner
	newUploader registry.UploaderFactory

	httpServer *http.Server
	mu         sync.RWMutex
	runner     *runner.Runner
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// A pipeline that cannot be loaded or references unknown actions is a fatal
// startup error and panics.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, cfg.PipelinePath)
	if err != nil {
		panic(fmt.Errorf("failed to load pipeline: %w", err))
	}
	logger.Debug("Pipeline loaded and translated into unified model.", "jobs", len(model.Jobs))

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules), "actions", reg.Names())

	if err := reg.ValidateModel(ctx, model); err != nil {
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		ctx:      ctx,
		logger:   logger,
		config:   cfg,
		registry: reg,
		model:    model,
		shell:    shell.ExecRunner{},
		newUploader: func(reg *config.Registry, token string) upload.Uploader {
			return upload.NewClient(reg.URL, reg.Username, token)
		},
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded pipeline.
func (a *App) Model() *config.Model {
	return a.model
}

func (a *App) envMap() map[string]string {
	return a.config.EnvMap()
}

func (a *App) setRunner(r *runner.Runner) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runner = r
}

func (a *App) currentRunner() *runner.Runner {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runner
}
