package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives the printed values. Nil means stdout.
	Out io.Writer
}

// Input defines the arguments for the print action.
type Input struct {
	Message string            `hcl:"message,optional"`
	Values  map[string]string `hcl:"values,optional"`
}

func (m *Module) onRunPrint(ctx context.Context, env *registry.StepEnv, input *Input) error {
	ctxlog.FromContext(ctx).Info("Printing input", "message", input.Message)

	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	if input.Message != "" {
		fmt.Fprintf(out, "      [%s] %s\n", env.InstanceID, input.Message)
	}
	if input.Values == nil {
		return nil
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(input.Values))
	for k := range input.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(out, "      %s = %q\n", k, input.Values[k])
	}
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("print", registry.Action("Print a message and values.", m.onRunPrint))
}
