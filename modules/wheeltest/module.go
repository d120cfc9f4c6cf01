// Package wheeltest provides the smoke-test actions of the test jobs:
// install_local installs a package from downloaded distributions only, and
// smoke_import checks that the installed package imports.
package wheeltest

import (
	"context"
	"fmt"
	"regexp"

	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/registry"
	"github.com/vk/wheelgrid/internal/shell"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

var (
	packagePattern = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)
	modulePattern  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)
)

// InstallInput defines the arguments of install_local.
type InstallInput struct {
	Package string `hcl:"package"`
	// Dir holds the distributions to install from.
	Dir    string `hcl:"dir,optional"`
	Python string `hcl:"python,optional"`
}

// Validate checks the input and fills defaults.
func (in *InstallInput) Validate() error {
	if in.Dir == "" {
		in.Dir = "dist"
	}
	if in.Python == "" {
		in.Python = "python"
	}
	if !packagePattern.MatchString(in.Package) {
		return fmt.Errorf("invalid package name %q", in.Package)
	}
	return nil
}

// ImportInput defines the arguments of smoke_import.
type ImportInput struct {
	Module string `hcl:"module"`
	Python string `hcl:"python,optional"`
	// Dir is the working directory. It should not contain the package's
	// source tree, or the import would not exercise the installed wheel.
	Dir string `hcl:"dir,optional"`
}

// Validate checks the input and fills defaults.
func (in *ImportInput) Validate() error {
	if in.Python == "" {
		in.Python = "python"
	}
	if !modulePattern.MatchString(in.Module) {
		return fmt.Errorf("invalid module name %q", in.Module)
	}
	return nil
}

// OnRunInstall installs the package from the local directory. pip is told not
// to consult any index, so a missing distribution fails the step.
func OnRunInstall(ctx context.Context, env *registry.StepEnv, input *InstallInput) error {
	dir := env.Path(input.Dir)
	ctxlog.FromContext(ctx).Info("Installing package from local distributions.", "package", input.Package, "dir", dir)
	cmd := shell.Command{
		Name: input.Python,
		Args: []string{"-m", "pip", "install", "--no-index", "--find-links", dir, input.Package},
		Dir:  env.Workspace,
	}
	if err := env.Shell.Run(ctx, cmd); err != nil {
		return fmt.Errorf("failed to install %s from %s: %w", input.Package, dir, err)
	}
	return nil
}

// OnRunImport imports the module in a fresh interpreter.
func OnRunImport(ctx context.Context, env *registry.StepEnv, input *ImportInput) error {
	cmd := shell.Command{
		Name: input.Python,
		Args: []string{"-c", "import " + input.Module},
		Dir:  env.Path(input.Dir),
	}
	if err := env.Shell.Run(ctx, cmd); err != nil {
		return fmt.Errorf("import of %s failed: %w", input.Module, err)
	}
	ctxlog.FromContext(ctx).Info("✅ Import succeeded.", "module", input.Module, "platform", env.Platform)
	return nil
}

// Register registers the handlers with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("install_local", registry.Action("Install a package from local distributions only.", OnRunInstall))
	r.RegisterAction("smoke_import", registry.Action("Import an installed module.", OnRunImport))
}
