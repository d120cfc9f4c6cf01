package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/gate"
)

// stepRef points at one step of one instance.
type stepRef struct {
	inst  *Instance
	index int
}

func (r stepRef) String() string {
	return fmt.Sprintf("%s step %s", r.inst.ID, r.inst.Steps[r.index].ID())
}

func (r stepRef) step() *Step {
	return r.inst.Steps[r.index]
}

// before reports whether a is guaranteed to finish before b starts.
func (p *Plan) before(a, b stepRef) bool {
	if a.inst == b.inst {
		return a.index < b.index
	}
	return p.Graph.Reachable(a.inst.ID, b.inst.ID)
}

// checkArtifacts enforces the hand-off contract: every artifact name has
// exactly one producer, and every consumer is ordered after its producer.
func (p *Plan) checkArtifacts(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var problems []string

	producers := make(map[string]stepRef)
	for _, inst := range p.Instances {
		for i, step := range inst.Steps {
			prod, ok := step.Input.(Producer)
			if !ok {
				continue
			}
			ref := stepRef{inst, i}
			for _, name := range prod.ProducedArtifacts() {
				if existing, dup := producers[name]; dup {
					problems = append(problems, fmt.Sprintf("artifact %q is uploaded by both %s and %s", name, existing, ref))
					continue
				}
				producers[name] = ref
				p.Artifacts[name] = inst.ID
			}
		}
	}

	names := make([]string, 0, len(producers))
	for name := range producers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, inst := range p.Instances {
		for i, step := range inst.Steps {
			ref := stepRef{inst, i}
			if cons, ok := step.Input.(Consumer); ok {
				for _, name := range cons.ConsumedArtifacts() {
					prod, found := producers[name]
					switch {
					case !found:
						problems = append(problems, fmt.Sprintf("%s downloads %q, which no step uploads", ref, name))
					case !p.before(prod, ref):
						problems = append(problems, fmt.Sprintf("%s downloads %q but does not run after %s; add a needs path", ref, name, prod))
					case step.Enabled && !prod.step().Enabled:
						msg := fmt.Sprintf("%s downloads %q but the uploading step %s is disabled for this event", ref, name, prod)
						logger.Warn("Artifact consumer will not find its input.", "detail", msg)
						p.Warnings = append(p.Warnings, msg)
					}
				}
			}
			if coll, ok := step.Input.(Collector); ok && coll.CollectsAllArtifacts() {
				for _, name := range names {
					if prod := producers[name]; !p.before(prod, ref) {
						problems = append(problems, fmt.Sprintf("%s collects all artifacts but does not run after %s, which uploads %q", ref, prod, name))
					}
				}
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n- %s", ErrArtifactContract, strings.Join(problems, "\n- "))
	}
	return nil
}

// checkPublish makes sure registry uploads only happen from publish jobs that
// wait for every test job, and only to the registry the gates select.
func (p *Plan) checkPublish(model *config.Model) error {
	var problems []string

	var testJobs []string
	for _, job := range model.Jobs {
		if job.Kind == config.KindTest {
			testJobs = append(testJobs, job.ID())
		}
	}

	for _, inst := range p.Instances {
		if inst.Job.Kind == config.KindPublish {
			for _, test := range testJobs {
				if !p.Graph.Reachable(JoinID(test), inst.ID) {
					problems = append(problems, fmt.Sprintf("publish job %s does not wait for test job %s", inst.ID, test))
				}
			}
		}

		for i, step := range inst.Steps {
			pub, ok := step.Input.(Publisher)
			if !ok {
				continue
			}
			ref := stepRef{inst, i}
			if inst.Job.Kind != config.KindPublish {
				problems = append(problems, fmt.Sprintf("%s uploads to a package registry but job kind is %s", ref, inst.Job.Kind))
				continue
			}
			reg, ok := model.Registries[pub.PublishRegistry()]
			if !ok {
				problems = append(problems, fmt.Sprintf("%s uploads to unknown registry %q", ref, pub.PublishRegistry()))
				continue
			}
			if step.Enabled && !p.gateOpen(reg.Role) {
				problems = append(problems, fmt.Sprintf("%s would upload to %s registry %q but the %s gate is closed for %s; guard it with `when = gate.%s`",
					ref, reg.Role, reg.Name, reg.Role, p.Event, reg.Role))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n- %s", ErrPublishContract, strings.Join(problems, "\n- "))
	}

	if target := p.Gate.Target(); target != gate.TargetNone && p.hasPublishJob() {
		if len(model.RegistriesForRole(config.RegistryRole(target))) == 0 {
			p.Warnings = append(p.Warnings, fmt.Sprintf("the %s gate is open but no %s registry is declared; nothing will be uploaded", target, target))
		}
	}
	return nil
}

func (p *Plan) hasPublishJob() bool {
	for _, inst := range p.Instances {
		if inst.Job.Kind == config.KindPublish {
			return true
		}
	}
	return false
}

func (p *Plan) gateOpen(role config.RegistryRole) bool {
	switch role {
	case config.RoleStaging:
		return p.Gate.Staging
	case config.RoleProduction:
		return p.Gate.Production
	default:
		return false
	}
}
