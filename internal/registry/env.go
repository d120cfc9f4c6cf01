package registry

import (
	"fmt"

	"github.com/vk/wheelgrid/internal/artifact"
	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/gate"
	"github.com/vk/wheelgrid/internal/publish"
	"github.com/vk/wheelgrid/internal/shell"
	"github.com/vk/wheelgrid/internal/upload"
)

// UploaderFactory creates a client for one package registry.
type UploaderFactory func(reg *config.Registry, token string) upload.Uploader

// StepEnv is what an action sees of the job instance it runs in.
type StepEnv struct {
	RunID      string
	JobID      string
	InstanceID string
	Platform   string
	// Workspace is the instance's private working directory.
	Workspace string
	// Source is the repository the checkout action clones.
	Source string

	Gate       gate.Decision
	Registries map[string]*config.Registry
	Store      artifact.Store
	Shell      shell.Runner
	// Publish is set for publish jobs only.
	Publish     *publish.Machine
	NewUploader UploaderFactory
	Getenv      func(string) string
}

// Path resolves a workspace-relative path. Absolute paths are kept.
func (e *StepEnv) Path(rel string) string {
	return resolve(e.Workspace, rel)
}

// RequirePublish returns the publish machine or an error for non-publish jobs.
func (e *StepEnv) RequirePublish() (*publish.Machine, error) {
	if e.Publish == nil {
		return nil, fmt.Errorf("job %s is not a publish job", e.JobID)
	}
	return e.Publish, nil
}
