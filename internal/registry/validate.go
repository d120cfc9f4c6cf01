package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/ctxlog"
)

// ValidateModel checks that every step in the model names a registered action.
func (r *Registry) ValidateModel(ctx context.Context, model *config.Model) error {
	logger := ctxlog.FromContext(ctx)
	var errs []string
	for _, job := range model.Jobs {
		for _, step := range job.Steps {
			if _, ok := r.actions[step.Action]; !ok {
				errs = append(errs, fmt.Sprintf("job '%s', step '%s': unknown action '%s'", job.ID(), step.Name, step.Action))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s\navailable actions: %s", strings.Join(errs, "\n- "), strings.Join(r.Names(), ", "))
	}
	logger.Debug("All pipeline steps map to registered actions.", "actions", len(r.actions))
	return nil
}
