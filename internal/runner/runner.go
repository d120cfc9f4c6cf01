// Package runner executes the job instances of a plan. It supplies the
// dag.RunFunc the executor calls for every graph node, keeps a live status of
// every job and step, and forwards progress to a notifier.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vk/wheelgrid/internal/artifact"
	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/dag"
	"github.com/vk/wheelgrid/internal/notify"
	"github.com/vk/wheelgrid/internal/plan"
	"github.com/vk/wheelgrid/internal/publish"
	"github.com/vk/wheelgrid/internal/registry"
	"github.com/vk/wheelgrid/internal/shell"
)

// ErrPreviousStep is the skip reason of steps after a failed one.
var ErrPreviousStep = errors.New("a previous step failed")

// Options holds what the runner needs besides the plan.
type Options struct {
	RunID string
	// WorkDir is the root of all run workspaces.
	WorkDir     string
	Source      string
	Store       artifact.Store
	Shell       shell.Runner
	NewUploader registry.UploaderFactory
	Getenv      func(string) string
	Notifier    notify.Notifier
}

// Runner runs the instances of one plan.
type Runner struct {
	plan *plan.Plan
	opts Options
	now  func() time.Time

	mu       sync.RWMutex
	jobs     map[string]*JobStatus
	machines map[string]*publish.Machine
}

// New creates a runner. Every instance starts out pending.
func New(p *plan.Plan, opts Options) *Runner {
	if opts.Shell == nil {
		opts.Shell = shell.ExecRunner{}
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{}
	}
	r := &Runner{
		plan:     p,
		opts:     opts,
		now:      time.Now,
		jobs:     make(map[string]*JobStatus, len(p.Instances)),
		machines: make(map[string]*publish.Machine),
	}
	for _, inst := range p.Instances {
		js := &JobStatus{ID: inst.ID, Job: inst.Job.ID(), Kind: string(inst.Job.Kind), State: dag.Pending.String()}
		for _, s := range inst.Steps {
			js.Steps = append(js.Steps, StepStatus{ID: s.ID(), State: dag.Pending.String()})
		}
		r.jobs[inst.ID] = js
	}
	return r
}

// Execute runs the plan's graph with the given number of workers.
func (r *Runner) Execute(ctx context.Context, workers int) (*dag.Result, error) {
	r.opts.Notifier.Notify(ctx, notify.Event{Kind: notify.RunStarted, RunID: r.opts.RunID, Time: r.now()})
	exec := dag.NewExecutor(workers, dag.WithObserver(&observer{r: r, ctx: ctx}))
	res, err := exec.Run(ctx, r.plan.Graph, r.RunNode)

	ev := notify.Event{Kind: notify.RunFinished, RunID: r.opts.RunID, State: "succeeded", Time: r.now()}
	switch {
	case err != nil:
		ev.State, ev.Error = "failed", err.Error()
	case res.Err() != nil:
		ev.State, ev.Error = "failed", res.Err().Error()
	}
	r.opts.Notifier.Notify(ctx, ev)
	return res, err
}

// RunID returns the ID of the run.
func (r *Runner) RunID() string {
	return r.opts.RunID
}

// Workspace returns the private directory of an instance.
func (r *Runner) Workspace(id string) string {
	return filepath.Join(r.opts.WorkDir, r.opts.RunID, sanitize(id))
}

// RunNode runs one graph node. Join nodes only synchronise and always succeed.
func (r *Runner) RunNode(ctx context.Context, id string) (err error) {
	if plan.IsJoin(id) {
		return nil
	}
	inst, ok := r.plan.Instance(id)
	if !ok {
		return fmt.Errorf("graph node %q has no job instance", id)
	}
	if !inst.Enabled {
		r.skipSteps(id, 0, dag.ErrGateFalse)
		return dag.ErrGateFalse
	}

	ctx = ctxlog.With(ctx, "job", id)
	logger := ctxlog.FromContext(ctx)

	ws := r.Workspace(id)
	if err := os.MkdirAll(ws, 0o755); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	env := &registry.StepEnv{
		RunID:       r.opts.RunID,
		JobID:       inst.Job.ID(),
		InstanceID:  id,
		Platform:    inst.Job.Platform,
		Workspace:   ws,
		Source:      r.opts.Source,
		Gate:        r.plan.Gate,
		Registries:  r.plan.Registries,
		Store:       r.opts.Store,
		Shell:       r.opts.Shell,
		NewUploader: r.opts.NewUploader,
		Getenv:      r.opts.Getenv,
	}
	if inst.Job.Kind == config.KindPublish {
		env.Publish = publish.NewMachine()
		r.mu.Lock()
		r.machines[id] = env.Publish
		r.mu.Unlock()
		// Collected-only is the outcome of a closed gate. A failed job keeps
		// the phase it stopped in.
		defer func() {
			if err != nil {
				logger.Warn("Publish job failed.", "phase", env.Publish.Phase())
				return
			}
			phase := env.Publish.Finish()
			logger.Info("🏁 Publish finished.", "phase", phase)
		}()
	}

	logger.Info("Running job.", "workspace", ws, "steps", len(inst.Steps))
	for i, step := range inst.Steps {
		if !step.Enabled {
			logger.Info("Step skipped, condition is false.", "step", step.ID())
			r.setStep(id, i, dag.Skipped, dag.ErrGateFalse, time.Time{}, time.Time{})
			continue
		}
		if err := r.runStep(ctx, env, id, i, step); err != nil {
			r.skipSteps(id, i+1, ErrPreviousStep)
			return fmt.Errorf("step %s: %w", step.ID(), err)
		}
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, env *registry.StepEnv, id string, i int, step *plan.Step) error {
	ctx = ctxlog.With(ctx, "step", step.ID())
	logger := ctxlog.FromContext(ctx)

	started := r.now()
	r.setStep(id, i, dag.Running, nil, started, time.Time{})
	r.opts.Notifier.Notify(ctx, notify.Event{Kind: notify.StepStarted, RunID: r.opts.RunID, Node: id, Step: step.ID(), Time: started})
	logger.Info("▶️ Step started.")

	err := step.Action.Fn(ctx, env, step.Input)
	finished := r.now()

	ev := notify.Event{Kind: notify.StepFinished, RunID: r.opts.RunID, Node: id, Step: step.ID(), State: dag.Succeeded.String(), Time: finished}
	if err != nil {
		r.setStep(id, i, dag.Failed, err, started, finished)
		ev.State, ev.Error = dag.Failed.String(), err.Error()
		logger.Error("Step failed.", "error", err, "duration", finished.Sub(started))
	} else {
		r.setStep(id, i, dag.Succeeded, nil, started, finished)
		logger.Info("Step finished.", "duration", finished.Sub(started))
	}
	r.opts.Notifier.Notify(ctx, ev)
	return err
}

// PublishPhase returns the phase of a publish instance's machine.
func (r *Runner) PublishPhase(id string) (publish.Phase, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.machines[id]
	if !ok {
		return "", false
	}
	return m.Phase(), true
}

// sanitize turns an instance ID into a directory name.
func sanitize(id string) string {
	replacer := strings.NewReplacer("[", "_", "]", "", "=", "-", ",", "_")
	s := replacer.Replace(id)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
