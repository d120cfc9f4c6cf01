// Package publish uploads the collected distributions of a run to a package
// registry.
package publish

import (
	"context"
	"fmt"

	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/ctxlog"
	pubstate "github.com/vk/wheelgrid/internal/publish"
	"github.com/vk/wheelgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of the publish action.
type Input struct {
	Registry string `hcl:"registry"`
	Dir      string `hcl:"dir,optional"`
}

// Validate checks the input and fills defaults.
func (in *Input) Validate() error {
	if in.Registry == "" {
		return fmt.Errorf("publish needs a registry")
	}
	if in.Dir == "" {
		in.Dir = "dist"
	}
	return nil
}

// PublishRegistry implements plan.Publisher.
func (in *Input) PublishRegistry() string { return in.Registry }

func gateAllows(env *registry.StepEnv, role config.RegistryRole) bool {
	switch role {
	case config.RoleStaging:
		return env.Gate.Staging
	case config.RoleProduction:
		return env.Gate.Production
	default:
		return false
	}
}

// OnRunPublish uploads every distribution in the collected directory. The
// publish machine must be in the Collected phase; a failed upload leaves it
// there.
func OnRunPublish(ctx context.Context, env *registry.StepEnv, input *Input) error {
	machine, err := env.RequirePublish()
	if err != nil {
		return err
	}
	reg, ok := env.Registries[input.Registry]
	if !ok {
		return fmt.Errorf("unknown registry %q", input.Registry)
	}
	target, err := pubstate.UploadedPhase(reg.Role)
	if err != nil {
		return err
	}
	if !gateAllows(env, reg.Role) {
		return fmt.Errorf("refusing to publish to %s registry %q: its gate is closed", reg.Role, reg.Name)
	}
	if phase := machine.Phase(); phase != pubstate.Collected {
		return fmt.Errorf("cannot publish to %q in phase %s", reg.Name, phase)
	}

	token := env.Getenv(reg.TokenEnv)
	if token == "" {
		return fmt.Errorf("registry %q: environment variable %s is empty", reg.Name, reg.TokenEnv)
	}

	logger := ctxlog.FromContext(ctx).With("registry", reg.Name, "role", reg.Role)
	client := env.NewUploader(reg, token)
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close registry client.", "error", err)
		}
	}()

	dir := env.Path(input.Dir)
	logger.Info("🚚 Publishing distributions.", "dir", dir, "url", reg.URL)
	uploaded, err := client.UploadDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("publish to %q failed after %d file(s): %w", reg.Name, len(uploaded), err)
	}
	if err := machine.Transition(target); err != nil {
		return err
	}
	logger.Info("Published.", "files", uploaded)
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("publish", registry.Action("Upload collected distributions to a package registry.", OnRunPublish))
}
