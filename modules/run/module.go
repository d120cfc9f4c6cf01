// Package run executes an arbitrary command or shell script as a step.
package run

import (
	"context"
	"fmt"

	"github.com/vk/wheelgrid/internal/registry"
	"github.com/vk/wheelgrid/internal/shell"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of the run action. Exactly one of Command and
// Script is set.
type Input struct {
	Command []string          `hcl:"command,optional"`
	Script  string            `hcl:"script,optional"`
	Shell   string            `hcl:"shell,optional"`
	Dir     string            `hcl:"dir,optional"`
	Env     map[string]string `hcl:"env,optional"`
}

// Validate checks the input after decoding.
func (in *Input) Validate() error {
	switch {
	case len(in.Command) > 0 && in.Script != "":
		return fmt.Errorf("run takes either command or script, not both")
	case len(in.Command) == 0 && in.Script == "":
		return fmt.Errorf("run needs a command or a script")
	}
	if in.Shell == "" {
		in.Shell = "bash"
	}
	return nil
}

func (in *Input) command(dir string) shell.Command {
	if in.Script != "" {
		return shell.Command{Name: in.Shell, Args: []string{"-e", "-c", in.Script}, Dir: dir, Env: in.Env}
	}
	return shell.Command{Name: in.Command[0], Args: in.Command[1:], Dir: dir, Env: in.Env}
}

// OnRunCommand runs the command in the step's working directory.
func OnRunCommand(ctx context.Context, env *registry.StepEnv, input *Input) error {
	return env.Shell.Run(ctx, input.command(env.Path(input.Dir)))
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("run", registry.Action("Run a command or a shell script.", OnRunCommand))
}
