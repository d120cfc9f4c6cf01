package plan

import (
	"context"
	"fmt"

	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/dag"
	"github.com/vk/wheelgrid/internal/event"
	"github.com/vk/wheelgrid/internal/gate"
	hclload "github.com/vk/wheelgrid/internal/hcl"
	"github.com/vk/wheelgrid/internal/matrix"
	"github.com/vk/wheelgrid/internal/registry"
)

// Request is the input of Build.
type Request struct {
	Model   *config.Model
	Event   event.Event
	Actions *registry.Registry
	// Env is exposed to expressions as `env`.
	Env map[string]string
}

// Build computes the execution plan for one event. It has no side effects
// besides logging.
func Build(ctx context.Context, req Request) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)
	if req.Model == nil || req.Model.Pipeline == nil {
		return nil, fmt.Errorf("plan requires a model with a pipeline")
	}
	if req.Actions == nil {
		return nil, fmt.Errorf("plan requires an action registry")
	}
	model := req.Model

	p := &Plan{
		Pipeline:   model.Pipeline.Name,
		Event:      req.Event,
		Graph:      dag.New(),
		Artifacts:  make(map[string]string),
		Registries: model.Registries,
		byID:       make(map[string]*Instance),
	}
	if !model.Pipeline.Triggers.Accepts(req.Event) {
		logger.Info("Pipeline is not triggered by this event.", "pipeline", p.Pipeline, "event", req.Event.String())
		return p, nil
	}
	p.Triggered = true

	marker := model.Pipeline.ExclusionMarker
	p.Gate = gate.Evaluate(req.Event, marker)
	if msg, ok := gate.Asymmetry(req.Event, marker); ok {
		logger.Warn("Exclusion marker checks disagree.", "detail", msg)
		p.Warnings = append(p.Warnings, msg)
	}
	logger.Debug("Gates evaluated.", "staging", p.Gate.Staging, "production", p.Gate.Production)

	if err := req.Actions.ValidateModel(ctx, model); err != nil {
		return nil, err
	}

	for _, job := range model.Jobs {
		instances, err := expandJob(job, req, p.Gate)
		if err != nil {
			return nil, err
		}
		for _, inst := range instances {
			p.Instances = append(p.Instances, inst)
			p.byID[inst.ID] = inst
		}
	}

	if err := p.buildGraph(model); err != nil {
		return nil, err
	}
	if err := p.checkArtifacts(ctx); err != nil {
		return nil, err
	}
	if err := p.checkPublish(model); err != nil {
		return nil, err
	}

	logger.Info("📋 Plan built.",
		"pipeline", p.Pipeline,
		"event", req.Event.String(),
		"target", p.Gate.Target(),
		"instances", len(p.Instances),
		"artifacts", len(p.Artifacts),
	)
	return p, nil
}

func expandJob(job *config.Job, req Request, decision gate.Decision) ([]*Instance, error) {
	cells, err := matrix.Expand(job.Matrix)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", job.ID(), err)
	}

	instances := make([]*Instance, 0, len(cells))
	for _, cell := range cells {
		id := InstanceID(job, cell)
		evalCtx := hclload.EvalContext(instanceVariables(req.Event, decision, job, cell, id, req.Env))

		enabled, err := hclload.EvalCondition(job.When, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("job %s: when: %w", id, err)
		}
		inst := &Instance{ID: id, Job: job, Cell: cell, Enabled: enabled, EvalCtx: evalCtx}

		for _, s := range job.Steps {
			stepEnabled, err := hclload.EvalCondition(s.When, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("job %s, step %s.%s: when: %w", id, s.Action, s.Name, err)
			}
			action, ok := req.Actions.Lookup(s.Action)
			if !ok {
				return nil, fmt.Errorf("job %s, step %s.%s: unknown action %q", id, s.Action, s.Name, s.Action)
			}
			input, err := req.Actions.Decode(s.Action, s.Arguments, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("job %s, step %s.%s: %w", id, s.Action, s.Name, err)
			}
			inst.Steps = append(inst.Steps, &Step{
				Config:  s,
				Enabled: enabled && stepEnabled,
				Action:  action,
				Input:   input,
			})
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

// buildGraph adds one node per instance and one join node per job.
func (p *Plan) buildGraph(model *config.Model) error {
	g := p.Graph
	for _, inst := range p.Instances {
		g.AddNode(inst.ID)
	}
	for _, job := range model.Jobs {
		join := JoinID(job.ID())
		g.AddNode(join)
		for _, inst := range p.InstancesOf(job.ID()) {
			if err := g.AddEdge(inst.ID, join); err != nil {
				return err
			}
		}
	}
	for _, inst := range p.Instances {
		for _, need := range inst.Job.Needs {
			if !g.HasNode(JoinID(need)) {
				return fmt.Errorf("job %s needs unknown job %q", inst.Job.ID(), need)
			}
			if err := g.AddEdge(JoinID(need), inst.ID); err != nil {
				return err
			}
		}
	}
	if err := g.DetectCycles(); err != nil {
		return fmt.Errorf("job dependencies: %w", err)
	}
	return nil
}

// Counts returns the number of instances and how many of them are enabled.
func (p *Plan) Counts() (total, enabled int) {
	for _, inst := range p.Instances {
		total++
		if inst.Enabled {
			enabled++
		}
	}
	return total, enabled
}
