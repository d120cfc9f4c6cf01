package hcl

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/event"
	"github.com/vk/wheelgrid/internal/matrix"
	"github.com/vk/wheelgrid/internal/schema"
)

func translatePipeline(p *schema.Pipeline) *config.Pipeline {
	out := &config.Pipeline{Name: p.Name, ExclusionMarker: p.ExclusionMarker}
	if p.On != nil {
		out.Triggers = event.Triggers{
			Branches:     p.On.Branches,
			Tags:         p.On.Tags,
			ReleaseTypes: p.On.Releases,
		}
	}
	return out
}

func translateRegistry(r *schema.Registry) (*config.Registry, error) {
	role := config.RegistryRole(r.Role)
	if role != config.RoleStaging && role != config.RoleProduction {
		return nil, fmt.Errorf("registry %q: role must be %q or %q, got %q", r.Name, config.RoleStaging, config.RoleProduction, r.Role)
	}
	if r.URL == "" {
		return nil, fmt.Errorf("registry %q: url must not be empty", r.Name)
	}
	username := r.Username
	if username == "" {
		username = "__token__"
	}
	return &config.Registry{
		Name:     r.Name,
		Role:     role,
		URL:      r.URL,
		TokenEnv: r.TokenEnv,
		Username: username,
	}, nil
}

func translateJob(j *schema.Job, evalCtx *hcl.EvalContext) (*config.Job, error) {
	job := &config.Job{
		Kind:     config.JobKind(j.Kind),
		Name:     j.Name,
		RunsOn:   j.RunsOn,
		Platform: j.Platform,
		Needs:    j.Needs,
		When:     definedExpr(j.When),
	}
	if !job.Kind.Valid() {
		return nil, fmt.Errorf("job %q: unknown kind %q, must be one of build, test, publish", j.Name, j.Kind)
	}
	if j.Matrix != nil {
		axes, err := translateMatrix(j.Matrix.Body, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", job.ID(), err)
		}
		job.Matrix = axes
	}

	seen := make(map[string]struct{})
	for _, s := range j.Steps {
		key := s.Action + "." + s.Name
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("job %q: duplicate step %q", job.ID(), key)
		}
		seen[key] = struct{}{}
		job.Steps = append(job.Steps, translateStep(s))
	}
	if len(job.Steps) == 0 {
		return nil, fmt.Errorf("job %q: has no steps", job.ID())
	}
	return job, nil
}

func translateStep(s *schema.Step) *config.Step {
	body := hcl.EmptyBody()
	if s.Arguments != nil && s.Arguments.Body != nil {
		body = s.Arguments.Body
	}
	return &config.Step{
		Action:    s.Action,
		Name:      s.Name,
		When:      definedExpr(s.When),
		Arguments: body,
	}
}

// translateMatrix turns the attributes of a matrix block into axes, in the
// order they appear in the source.
func translateMatrix(body hcl.Body, evalCtx *hcl.EvalContext) ([]matrix.Axis, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid matrix block: %w", diags)
	}

	ordered := make([]*hcl.Attribute, 0, len(attrs))
	for _, attr := range attrs {
		ordered = append(ordered, attr)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Range.Start.Byte < ordered[j].Range.Start.Byte
	})

	axes := make([]matrix.Axis, 0, len(ordered))
	for _, attr := range ordered {
		val, diags := attr.Expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("matrix axis %q: %w", attr.Name, diags)
		}
		values, err := axisValues(val)
		if err != nil {
			return nil, fmt.Errorf("matrix axis %q: %w", attr.Name, err)
		}
		axes = append(axes, matrix.Axis{Name: attr.Name, Values: values})
	}
	if err := matrix.Validate(axes); err != nil {
		return nil, err
	}
	return axes, nil
}

func axisValues(val cty.Value) ([]string, error) {
	ty := val.Type()
	if !ty.IsTupleType() && !ty.IsListType() {
		return nil, fmt.Errorf("must be a list, got %s", ty.FriendlyName())
	}
	if !val.IsWhollyKnown() || val.IsNull() {
		return nil, fmt.Errorf("must be a static list")
	}

	var out []string
	for it := val.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.IsNull() {
			return nil, fmt.Errorf("values must not be null")
		}
		if t := elem.Type(); !t.Equals(cty.String) && !t.Equals(cty.Number) {
			return nil, fmt.Errorf("values must be strings or numbers, got %s", t.FriendlyName())
		}
		if elem.Type().Equals(cty.String) {
			out = append(out, elem.AsString())
			continue
		}
		// 3.10 parses to the same number as 3.1, so only whole numbers are
		// safe to turn back into text.
		bf := elem.AsBigFloat()
		if !bf.IsInt() {
			return nil, fmt.Errorf("number %s is not a whole number and loses its formatting; quote it, e.g. \"3.10\"", bf.Text('g', -1))
		}
		i, _ := bf.Int(nil)
		out = append(out, i.String())
	}
	return out, nil
}

// definedExpr returns nil for an optional attribute that was left out. gohcl
// fills those in with a zero-width static null.
func definedExpr(expr hcl.Expression) hcl.Expression {
	if expr == nil {
		return nil
	}
	rng := expr.Range()
	if rng.End.Byte <= rng.Start.Byte {
		return nil
	}
	return expr
}
