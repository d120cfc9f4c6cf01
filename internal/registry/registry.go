package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
)

// Module is the interface that all action modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// ActionFunc runs one step.
type ActionFunc func(ctx context.Context, env *StepEnv, input any) error

// RegisteredAction holds the compiled Go parts of a step action.
type RegisteredAction struct {
	Description string
	NewInput    func() any
	Fn          ActionFunc
}

// Action builds a RegisteredAction around a typed handler.
func Action[T any](description string, fn func(ctx context.Context, env *StepEnv, input *T) error) *RegisteredAction {
	return &RegisteredAction{
		Description: description,
		NewInput:    func() any { return new(T) },
		Fn: func(ctx context.Context, env *StepEnv, input any) error {
			in, ok := input.(*T)
			if !ok {
				return fmt.Errorf("action input has type %T, want %T", input, new(T))
			}
			return fn(ctx, env, in)
		},
	}
}

// Registry holds the registered actions for a single application instance.
type Registry struct {
	actions map[string]*RegisteredAction
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{actions: make(map[string]*RegisteredAction)}
}

// RegisterAction registers a step action. Registering a name twice panics.
func (r *Registry) RegisterAction(name string, action *RegisteredAction) {
	if _, exists := r.actions[name]; exists {
		panic(fmt.Sprintf("action with name '%s' already registered", name))
	}
	slog.Debug("Registering action.", "name", name)
	r.actions[name] = action
}

// Lookup returns the action registered under name.
func (r *Registry) Lookup(name string) (*RegisteredAction, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode evaluates a step's arguments body into a fresh input value of the
// named action.
func (r *Registry) Decode(name string, body hcl.Body, evalCtx *hcl.EvalContext) (any, error) {
	action, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", name)
	}
	if body == nil {
		body = hcl.EmptyBody()
	}
	input := action.NewInput()
	if diags := gohcl.DecodeBody(body, evalCtx, input); diags.HasErrors() {
		return nil, diags
	}
	if v, ok := input.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return input, nil
}
