package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vk/wheelgrid/internal/artifact"
	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/dag"
	"github.com/vk/wheelgrid/internal/notify"
	"github.com/vk/wheelgrid/internal/plan"
	"github.com/vk/wheelgrid/internal/report"
	"github.com/vk/wheelgrid/internal/runner"
)

// ErrRunFailed is returned by Run when a job failed or the run was canceled.
var ErrRunFailed = errors.New("run failed")

// Run plans the pipeline for the configured event, executes the plan and
// reports the outcome.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.NewString()
	ctx = ctxlog.WithLogger(ctx, a.logger.With("run_id", runID))
	logger := ctxlog.FromContext(ctx)
	a.ctx = ctx
	logger.Debug("App.Run method started.")
	started := time.Now()

	if err := a.healthCheckServer(); err != nil {
		return err
	}
	defer a.closeHealthCheckServer()

	p, err := plan.Build(ctx, plan.Request{
		Model:   a.model,
		Event:   a.config.Event,
		Actions: a.registry,
		Env:     a.envMap(),
	})
	if err != nil {
		return fmt.Errorf("failed to build plan: %w", err)
	}
	if err := report.RenderPlan(a.outW, p); err != nil {
		return err
	}

	execute := p.Triggered && !a.config.PlanOnly
	var store artifact.Store
	if execute {
		local, err := artifact.NewLocalStore(filepath.Join(a.config.WorkDir, runID, "artifacts"))
		if err != nil {
			return err
		}
		store = local
	}

	notifier := a.notifier(ctx)
	defer func() {
		if err := notifier.Close(); err != nil {
			logger.Warn("Failed to close notifier.", "error", err)
		}
	}()

	env := a.envMap()
	r := runner.New(p, runner.Options{
		RunID:       runID,
		WorkDir:     a.config.WorkDir,
		Source:      a.config.Source,
		Store:       store,
		Shell:       a.shell,
		NewUploader: a.newUploader,
		Getenv:      func(key string) string { return env[key] },
		Notifier:    notifier,
	})
	a.setRunner(r)

	var res *dag.Result
	switch {
	case !p.Triggered:
		logger.Warn("Pipeline not triggered, execution not required.")
	case a.config.PlanOnly:
		logger.Info("Plan only, execution skipped.")
	default:
		logger.Info("🚀 Starting concurrent execution...", "workers", a.config.WorkerCount)
		res, err = r.Execute(ctx, a.config.WorkerCount)
		if err != nil {
			return fmt.Errorf("execution failed: %w", err)
		}
		logger.Info("🏁 Execution finished.")
	}

	var manifests []*artifact.Manifest
	if store != nil {
		if manifests, err = store.List(ctx); err != nil {
			logger.Warn("Failed to list artifacts.", "error", err)
		}
	}
	rep := report.Build(report.Input{
		RunID:     runID,
		Plan:      p,
		Result:    res,
		Jobs:      r.Snapshot(),
		Artifacts: manifests,
		Started:   started,
		Finished:  time.Now(),
	})
	if a.config.ReportPath != "" {
		if err := rep.WriteFile(a.config.ReportPath); err != nil {
			return err
		}
		logger.Info("Report written.", "path", a.config.ReportPath)
	}
	if err := report.RenderSummary(a.outW, rep); err != nil {
		return err
	}

	logger.Debug("App.Run method finished.", "outcome", rep.Outcome)
	if rep.Failed() {
		return fmt.Errorf("%w: %w", ErrRunFailed, res.Err())
	}
	return nil
}

// notifier returns the log notifier, plus a socket.io one when configured. An
// unreachable notification server does not stop the run.
func (a *App) notifier(ctx context.Context) notify.Notifier {
	logger := ctxlog.FromContext(ctx)
	if a.config.NotifyURL == "" {
		return notify.Log{}
	}
	sio, err := notify.DialSocketIO(ctx, notify.SocketIOOptions{URL: a.config.NotifyURL, Namespace: a.config.NotifyNamespace})
	if err != nil {
		logger.Warn("Run notifications disabled.", "url", a.config.NotifyURL, "error", err)
		return notify.Log{}
	}
	return notify.Multi{notify.Log{}, sio}
}
