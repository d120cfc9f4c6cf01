package hcl

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/fsutil"
	"github.com/vk/wheelgrid/internal/schema"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	env map[string]string
}

// NewLoader creates a loader. env is exposed to pipeline files as `env`.
func NewLoader(env map[string]string) *Loader {
	return &Loader{env: env}
}

// Load parses every .hcl file under the given paths and merges them into one
// model. Exactly one pipeline block must exist across all files.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := l.findAllHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	model := &config.Model{Registries: make(map[string]*config.Registry)}
	evalCtx := EvalContext(StaticVariables(l.env))
	parser := hclparse.NewParser()

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root schema.File
		if diags := gohcl.DecodeBody(hclFile.Body, evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, p := range root.Pipelines {
			if model.Pipeline != nil {
				return nil, fmt.Errorf("%s: duplicate pipeline block %q, %q is already defined", file, p.Name, model.Pipeline.Name)
			}
			model.Pipeline = translatePipeline(p)
		}
		for _, r := range root.Registries {
			if _, exists := model.Registries[r.Name]; exists {
				return nil, fmt.Errorf("%s: duplicate registry %q", file, r.Name)
			}
			reg, err := translateRegistry(r)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			model.Registries[reg.Name] = reg
		}
		for _, j := range root.Jobs {
			job, err := translateJob(j, evalCtx)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			if _, exists := model.Job(job.ID()); exists {
				return nil, fmt.Errorf("%s: duplicate job %q", file, job.ID())
			}
			model.Jobs = append(model.Jobs, job)
		}
	}

	if model.Pipeline == nil {
		return nil, fmt.Errorf("no pipeline block found")
	}
	if err := validateNeeds(model); err != nil {
		return nil, err
	}

	logger.Debug("HCL loading complete.", "pipeline", model.Pipeline.Name, "jobs", len(model.Jobs), "registries", len(model.Registries))
	return model, nil
}

// findAllHCLFiles expands directories into the .hcl files beneath them.
func (l *Loader) findAllHCLFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("error accessing pipeline path %s: %w", path, err)
		}
		found := []string{path}
		if info.IsDir() {
			found, err = fsutil.FindFilesByExtension(path, ".hcl")
			if err != nil {
				return nil, err
			}
		}
		for _, f := range found {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			all = append(all, f)
		}
	}
	return all, nil
}

func validateNeeds(model *config.Model) error {
	var diags hcl.Diagnostics
	for _, job := range model.Jobs {
		for _, need := range job.Needs {
			if need == job.ID() {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Job needs itself",
					Detail:   fmt.Sprintf("Job %q lists itself in needs.", job.ID()),
				})
				continue
			}
			if _, ok := model.Job(need); !ok {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Unknown job in needs",
					Detail:   fmt.Sprintf("Job %q needs %q, which is not defined.", job.ID(), need),
				})
			}
		}
	}
	if diags.HasErrors() {
		return diags
	}
	return nil
}
