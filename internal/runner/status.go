package runner

import (
	"context"
	"time"

	"github.com/vk/wheelgrid/internal/dag"
	"github.com/vk/wheelgrid/internal/notify"
	"github.com/vk/wheelgrid/internal/plan"
)

// StepStatus is the live state of one step.
type StepStatus struct {
	ID       string    `json:"id" yaml:"id"`
	State    string    `json:"state" yaml:"state"`
	Reason   string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Started  time.Time `json:"started,omitempty" yaml:"started,omitempty"`
	Finished time.Time `json:"finished,omitempty" yaml:"finished,omitempty"`
}

// JobStatus is the live state of one job instance.
type JobStatus struct {
	ID        string       `json:"id" yaml:"id"`
	Job       string       `json:"job" yaml:"job"`
	Kind      string       `json:"kind" yaml:"kind"`
	State     string       `json:"state" yaml:"state"`
	Reason    string       `json:"reason,omitempty" yaml:"reason,omitempty"`
	SkippedBy string       `json:"skipped_by,omitempty" yaml:"skipped_by,omitempty"`
	Started   time.Time    `json:"started,omitempty" yaml:"started,omitempty"`
	Finished  time.Time    `json:"finished,omitempty" yaml:"finished,omitempty"`
	Steps     []StepStatus `json:"steps" yaml:"steps"`
	// PublishPhase is set for publish jobs that started.
	PublishPhase string `json:"publish_phase,omitempty" yaml:"publish_phase,omitempty"`
}

// Duration is the wall time the job ran.
func (j JobStatus) Duration() time.Duration {
	if j.Started.IsZero() || j.Finished.IsZero() {
		return 0
	}
	return j.Finished.Sub(j.Started)
}

// Snapshot returns a copy of every job's status in plan order.
func (r *Runner) Snapshot() []JobStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]JobStatus, 0, len(r.plan.Instances))
	for _, inst := range r.plan.Instances {
		js := *r.jobs[inst.ID]
		js.Steps = append([]StepStatus(nil), js.Steps...)
		if m, ok := r.machines[inst.ID]; ok {
			js.PublishPhase = string(m.Phase())
		}
		out = append(out, js)
	}
	return out
}

func (r *Runner) setStep(id string, i int, state dag.State, reason error, started, finished time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	js, ok := r.jobs[id]
	if !ok || i >= len(js.Steps) {
		return
	}
	s := &js.Steps[i]
	s.State = state.String()
	s.Reason = ""
	if reason != nil {
		s.Reason = reason.Error()
	}
	if !started.IsZero() {
		s.Started = started
	}
	s.Finished = finished
}

// skipSteps marks every step from index `from` on that has not run.
func (r *Runner) skipSteps(id string, from int, reason error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	js, ok := r.jobs[id]
	if !ok {
		return
	}
	for i := from; i < len(js.Steps); i++ {
		if js.Steps[i].State == dag.Pending.String() {
			js.Steps[i].State = dag.Skipped.String()
			js.Steps[i].Reason = reason.Error()
		}
	}
}

// observer adapts the runner to dag.Observer. It records job states and emits
// job events; join nodes are not reported.
type observer struct {
	r   *Runner
	ctx context.Context
}

func (o *observer) NodeStarted(id string) {
	if plan.IsJoin(id) {
		return
	}
	now := o.r.now()
	o.r.mu.Lock()
	if js, ok := o.r.jobs[id]; ok {
		js.State = dag.Running.String()
		js.Started = now
	}
	o.r.mu.Unlock()
	o.r.opts.Notifier.Notify(o.ctx, notify.Event{Kind: notify.JobStarted, RunID: o.r.opts.RunID, Node: id, Time: now})
}

func (o *observer) NodeFinished(res dag.NodeResult) {
	if plan.IsJoin(res.ID) {
		return
	}
	ev := notify.Event{Kind: notify.JobFinished, RunID: o.r.opts.RunID, Node: res.ID, State: res.State.String(), Time: o.r.now()}

	o.r.mu.Lock()
	js, ok := o.r.jobs[res.ID]
	if ok {
		js.State = res.State.String()
		js.Started = res.Started
		js.Finished = res.Finished
		js.SkippedBy = upstreamJob(res.SkippedBy)
		if res.Err != nil {
			js.Reason = res.Err.Error()
		}
	}
	o.r.mu.Unlock()

	if res.State == dag.Skipped && ok {
		reason := res.Err
		if reason == nil {
			reason = dag.ErrUpstream
		}
		o.r.skipSteps(res.ID, 0, reason)
	}
	if res.State == dag.Failed && res.Err != nil {
		ev.Error = res.Err.Error()
	}
	o.r.opts.Notifier.Notify(o.ctx, ev)
}

// upstreamJob reports a join node as the job it stands for.
func upstreamJob(id string) string {
	if plan.IsJoin(id) {
		return id[:len(id)-len(plan.JoinID(""))]
	}
	return id
}
