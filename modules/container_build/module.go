// Package container_build builds artifacts inside a pinned container image and
// uploads what the build leaves in its output directory.
package container_build

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/wheelgrid/internal/artifact"
	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/fsutil"
	"github.com/vk/wheelgrid/internal/registry"
	"github.com/vk/wheelgrid/internal/shell"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of the container_build action.
type Input struct {
	Image string `hcl:"image"`
	// Script is run with bash from the mount point.
	Script string `hcl:"script"`
	// Output is relative to Repo and holds the files to upload.
	Output   string            `hcl:"output"`
	Artifact string            `hcl:"artifact,optional"`
	Patterns []string          `hcl:"patterns,optional"`
	Repo     string            `hcl:"repo,optional"`
	Mount    string            `hcl:"mount,optional"`
	Engine   string            `hcl:"engine,optional"`
	Env      map[string]string `hcl:"env,optional"`
}

// Validate checks the input and fills defaults.
func (in *Input) Validate() error {
	if in.Artifact == "" {
		in.Artifact = artifact.LinuxWheelsName
	}
	if len(in.Patterns) == 0 {
		in.Patterns = []string{"*.whl"}
	}
	if in.Mount == "" {
		in.Mount = "/project"
	}
	if in.Engine == "" {
		in.Engine = "docker"
	}
	switch {
	case in.Image == "":
		return fmt.Errorf("container_build needs an image")
	case in.Script == "":
		return fmt.Errorf("container_build needs a script")
	case in.Output == "" || filepath.IsAbs(in.Output):
		return fmt.Errorf("container_build output must be a path relative to the repository, got %q", in.Output)
	case !strings.HasPrefix(in.Mount, "/"):
		return fmt.Errorf("container_build mount must be absolute, got %q", in.Mount)
	}
	return artifact.ValidateName(in.Artifact)
}

// ProducedArtifacts implements plan.Producer.
func (in *Input) ProducedArtifacts() []string { return []string{in.Artifact} }

func (in *Input) command(repo string) shell.Command {
	args := []string{"run", "--rm", "-v", repo + ":" + in.Mount, "-w", in.Mount}
	keys := make([]string, 0, len(in.Env))
	for k := range in.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+in.Env[k])
	}
	args = append(args, in.Image, "bash", in.Script)
	return shell.Command{Name: in.Engine, Args: args, Dir: repo}
}

// OnRunContainerBuild runs the build container and uploads its output.
func OnRunContainerBuild(ctx context.Context, env *registry.StepEnv, input *Input) error {
	logger := ctxlog.FromContext(ctx).With("image", input.Image)
	repo, err := filepath.Abs(env.Path(input.Repo))
	if err != nil {
		return err
	}

	logger.Info("🐳 Starting container build.", "script", input.Script)
	if err := env.Shell.Run(ctx, input.command(repo)); err != nil {
		return fmt.Errorf("container build in %s failed: %w", input.Image, err)
	}

	out := filepath.Join(repo, input.Output)
	files, err := fsutil.GlobFiles(out, input.Patterns...)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("container build left no files matching %v in %s", input.Patterns, out)
	}
	logger.Info("Container build finished.", "files", len(files))
	_, err = env.Store.Upload(ctx, input.Artifact, env.InstanceID, out, files)
	return err
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("container_build", registry.Action("Build inside a container and upload the output.", OnRunContainerBuild))
}
