package config

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/wheelgrid/internal/event"
	"github.com/vk/wheelgrid/internal/matrix"
)

// Loader is the interface for a format-specific pipeline loader.
type Loader interface {
	// Load reads the pipeline definition from the given paths and translates
	// it into the format-agnostic model.
	Load(ctx context.Context, paths ...string) (*Model, error)
}

// JobKind classifies a job by its role in the pipeline.
type JobKind string

const (
	KindBuild   JobKind = "build"
	KindTest    JobKind = "test"
	KindPublish JobKind = "publish"
)

// Valid reports whether k is one of the known job kinds.
func (k JobKind) Valid() bool {
	switch k {
	case KindBuild, KindTest, KindPublish:
		return true
	}
	return false
}

// RegistryRole says which publish gate a registry belongs to.
type RegistryRole string

const (
	RoleStaging    RegistryRole = "staging"
	RoleProduction RegistryRole = "production"
)

// Model is the unified representation of one pipeline definition.
type Model struct {
	Pipeline   *Pipeline
	Registries map[string]*Registry
	// Jobs are kept in declaration order.
	Jobs []*Job
}

// Pipeline holds the run-wide settings.
type Pipeline struct {
	Name     string
	Triggers event.Triggers
	// ExclusionMarker suppresses publishing for refs carrying it. Empty
	// disables the exclusion.
	ExclusionMarker string
}

// Registry is a package index the publish job may upload to.
type Registry struct {
	Name     string
	Role     RegistryRole
	URL      string
	TokenEnv string
	Username string
}

// Job is the format-agnostic representation of a `job` block.
type Job struct {
	Kind     JobKind
	Name     string
	RunsOn   string
	Platform string
	Matrix   []matrix.Axis
	Needs    []string
	// When is nil when the job runs unconditionally.
	When  hcl.Expression
	Steps []*Step
}

// ID returns the job identity used by `needs` references.
func (j *Job) ID() string {
	return fmt.Sprintf("%s.%s", j.Kind, j.Name)
}

// Step is the format-agnostic representation of a `step` block.
type Step struct {
	Action string
	Name   string
	// When is nil when the step runs unconditionally.
	When hcl.Expression
	// Arguments is decoded per job instance against the action's input type.
	Arguments hcl.Body
}

// Job looks a job up by its identity.
func (m *Model) Job(id string) (*Job, bool) {
	for _, j := range m.Jobs {
		if j.ID() == id {
			return j, true
		}
	}
	return nil, false
}

// RegistriesForRole returns the registries with the given role, sorted by
// name.
func (m *Model) RegistriesForRole(role RegistryRole) []*Registry {
	var out []*Registry
	for _, r := range m.Registries {
		if r.Role == role {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
