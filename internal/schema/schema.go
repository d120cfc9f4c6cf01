// Package schema holds the gohcl decoding targets of the pipeline language.
package schema

import (
	"github.com/hashicorp/hcl/v2"
)

// File represents the top-level structure of one pipeline file.
type File struct {
	Pipelines  []*Pipeline `hcl:"pipeline,block"`
	Registries []*Registry `hcl:"registry,block"`
	Jobs       []*Job      `hcl:"job,block"`
}

// Pipeline represents the `pipeline` block.
type Pipeline struct {
	Name            string    `hcl:"name,label"`
	ExclusionMarker string    `hcl:"exclusion_marker,optional"`
	On              *Triggers `hcl:"on,block"`
}

// Triggers represents the `on` block of a pipeline.
type Triggers struct {
	Branches []string `hcl:"branches,optional"`
	Tags     bool     `hcl:"tags,optional"`
	Releases []string `hcl:"releases,optional"`
}

// Registry represents a `registry` block.
type Registry struct {
	Name     string `hcl:"name,label"`
	Role     string `hcl:"role"`
	URL      string `hcl:"url"`
	TokenEnv string `hcl:"token_env"`
	Username string `hcl:"username,optional"`
}

// Body captures a block whose attributes are interpreted later.
type Body struct {
	Body hcl.Body `hcl:",remain"`
}

// Job represents a `job` block.
type Job struct {
	Kind     string         `hcl:"kind,label"`
	Name     string         `hcl:"name,label"`
	RunsOn   string         `hcl:"runs_on,optional"`
	Platform string         `hcl:"platform,optional"`
	Needs    []string       `hcl:"needs,optional"`
	When     hcl.Expression `hcl:"when,optional"`
	Matrix   *Body          `hcl:"matrix,block"`
	Steps    []*Step        `hcl:"step,block"`
}

// Step represents a `step` block inside a job.
type Step struct {
	Action    string         `hcl:"action,label"`
	Name      string         `hcl:"name,label"`
	When      hcl.Expression `hcl:"when,optional"`
	Arguments *Body          `hcl:"arguments,block"`
}
