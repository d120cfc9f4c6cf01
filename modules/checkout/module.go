// Package checkout clones the run's source repository into a job's workspace.
package checkout

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/registry"
	"github.com/vk/wheelgrid/internal/shell"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of the checkout action.
type Input struct {
	// Ref is checked out after cloning. Empty keeps the default branch.
	Ref        string `hcl:"ref,optional"`
	Path       string `hcl:"path,optional"`
	Depth      int    `hcl:"depth,optional"`
	Submodules bool   `hcl:"submodules,optional"`
}

// Validate checks the input after decoding.
func (in *Input) Validate() error {
	if in.Depth < 0 {
		return fmt.Errorf("depth must not be negative, got %d", in.Depth)
	}
	return nil
}

// OnRunCheckout clones StepEnv.Source into the workspace.
func OnRunCheckout(ctx context.Context, env *registry.StepEnv, input *Input) error {
	if env.Source == "" {
		return fmt.Errorf("no source repository configured for checkout")
	}
	dest := env.Path(input.Path)
	logger := ctxlog.FromContext(ctx)
	logger.Info("Checking out sources.", "source", env.Source, "dest", dest, "ref", input.Ref)

	args := []string{"clone", "--quiet"}
	if input.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(input.Depth))
	}
	args = append(args, env.Source, dest)
	if err := env.Shell.Run(ctx, shell.Command{Name: "git", Args: args, Dir: env.Workspace}); err != nil {
		return fmt.Errorf("failed to clone %s: %w", env.Source, err)
	}

	if input.Ref != "" {
		cmd := shell.Command{Name: "git", Args: []string{"checkout", "--quiet", input.Ref}, Dir: dest}
		if err := env.Shell.Run(ctx, cmd); err != nil {
			return fmt.Errorf("failed to check out %s: %w", input.Ref, err)
		}
	}
	if input.Submodules {
		cmd := shell.Command{Name: "git", Args: []string{"submodule", "update", "--init", "--recursive"}, Dir: dest}
		if err := env.Shell.Run(ctx, cmd); err != nil {
			return fmt.Errorf("failed to update submodules: %w", err)
		}
	}
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("checkout", registry.Action("Clone the source repository into the workspace.", OnRunCheckout))
}
