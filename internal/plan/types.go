package plan

import (
	"errors"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/dag"
	"github.com/vk/wheelgrid/internal/event"
	"github.com/vk/wheelgrid/internal/gate"
	"github.com/vk/wheelgrid/internal/matrix"
	"github.com/vk/wheelgrid/internal/registry"
)

var (
	// ErrArtifactContract wraps every producer/consumer mismatch.
	ErrArtifactContract = errors.New("artifact contract violated")
	// ErrPublishContract wraps publish steps and jobs that could upload
	// without the guarantees a publish needs.
	ErrPublishContract = errors.New("publish contract violated")
)

// Producer is implemented by action inputs that upload artifacts.
type Producer interface {
	ProducedArtifacts() []string
}

// Consumer is implemented by action inputs that download named artifacts.
type Consumer interface {
	ConsumedArtifacts() []string
}

// Collector is implemented by action inputs that gather every artifact.
type Collector interface {
	CollectsAllArtifacts() bool
}

// Publisher is implemented by action inputs that upload to a package registry.
type Publisher interface {
	PublishRegistry() string
}

// Plan is the execution plan of one run.
type Plan struct {
	Pipeline string
	Event    event.Event
	// Triggered is false when the pipeline does not run for the event. The
	// plan is then empty.
	Triggered bool
	Gate      gate.Decision
	// Warnings are definition issues that do not stop the run.
	Warnings []string
	// Instances are in job declaration order, cells in matrix order.
	Instances []*Instance
	Graph     *dag.Graph
	// Artifacts maps every artifact name to the instance that produces it.
	Artifacts map[string]string
	// Registries are the package registries declared by the pipeline.
	Registries map[string]*config.Registry

	byID map[string]*Instance
}

// Instance is one job expanded for one matrix cell.
type Instance struct {
	ID   string
	Job  *config.Job
	Cell matrix.Cell
	// Enabled is the job's `when` for this instance.
	Enabled bool
	Steps   []*Step
	EvalCtx *hcl.EvalContext
}

// Step is a step with its condition evaluated and arguments decoded.
type Step struct {
	Config  *config.Step
	Enabled bool
	Action  *registry.RegisteredAction
	Input   any
}

// ID returns action.name, unique within a job.
func (s *Step) ID() string {
	return s.Config.Action + "." + s.Config.Name
}

// Instance looks up an instance by ID.
func (p *Plan) Instance(id string) (*Instance, bool) {
	inst, ok := p.byID[id]
	return inst, ok
}

// InstancesOf returns the instances of one job.
func (p *Plan) InstancesOf(jobID string) []*Instance {
	var out []*Instance
	for _, inst := range p.Instances {
		if inst.Job.ID() == jobID {
			out = append(out, inst)
		}
	}
	return out
}

const joinSuffix = "[*]"

// JoinID returns the ID of the node that waits for every cell of a job.
func JoinID(jobID string) string {
	return jobID + joinSuffix
}

// IsJoin reports whether a graph node ID is a join node.
func IsJoin(id string) bool {
	return strings.HasSuffix(id, joinSuffix)
}

// InstanceID returns the ID of one job instance.
func InstanceID(job *config.Job, cell matrix.Cell) string {
	if len(cell) == 0 {
		return job.ID()
	}
	return job.ID() + "[" + cell.Key() + "]"
}
