// Package artifacts provides the actions that move files between jobs through
// the run's artifact store: upload_artifact, download_artifact and
// collect_artifacts.
package artifacts

import (
	"context"
	"fmt"
	"os"

	"github.com/vk/wheelgrid/internal/artifact"
	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/fsutil"
	"github.com/vk/wheelgrid/internal/publish"
	"github.com/vk/wheelgrid/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// UploadInput defines the arguments of upload_artifact.
type UploadInput struct {
	Name string `hcl:"name"`
	// Dir is the directory the patterns are relative to.
	Dir   string   `hcl:"dir,optional"`
	Paths []string `hcl:"paths"`
}

// Validate checks the input after decoding.
func (in *UploadInput) Validate() error {
	if err := artifact.ValidateName(in.Name); err != nil {
		return err
	}
	if len(in.Paths) == 0 {
		return fmt.Errorf("upload_artifact %q needs at least one path pattern", in.Name)
	}
	return nil
}

// ProducedArtifacts implements plan.Producer.
func (in *UploadInput) ProducedArtifacts() []string { return []string{in.Name} }

// DownloadInput defines the arguments of download_artifact.
type DownloadInput struct {
	Name string `hcl:"name"`
	Dir  string `hcl:"dir,optional"`
}

// Validate checks the input after decoding.
func (in *DownloadInput) Validate() error {
	if in.Dir == "" {
		in.Dir = "dist"
	}
	return artifact.ValidateName(in.Name)
}

// ConsumedArtifacts implements plan.Consumer.
func (in *DownloadInput) ConsumedArtifacts() []string { return []string{in.Name} }

// CollectInput defines the arguments of collect_artifacts.
type CollectInput struct {
	Dir string `hcl:"dir,optional"`
}

// Validate fills defaults.
func (in *CollectInput) Validate() error {
	if in.Dir == "" {
		in.Dir = "dist"
	}
	return nil
}

// CollectsAllArtifacts implements plan.Collector.
func (in *CollectInput) CollectsAllArtifacts() bool { return true }

// OnRunUpload globs the files and stores them as one immutable bundle.
func OnRunUpload(ctx context.Context, env *registry.StepEnv, input *UploadInput) error {
	base := env.Path(input.Dir)
	files, err := fsutil.GlobFiles(base, input.Paths...)
	if err != nil {
		return fmt.Errorf("failed to match files for artifact %q: %w", input.Name, err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no files in %s match %v for artifact %q", base, input.Paths, input.Name)
	}
	ctxlog.FromContext(ctx).Debug("Files matched.", "artifact", input.Name, "files", files)
	_, err = env.Store.Upload(ctx, input.Name, env.InstanceID, base, files)
	return err
}

// OnRunDownload extracts exactly one bundle.
func OnRunDownload(ctx context.Context, env *registry.StepEnv, input *DownloadInput) error {
	dest := env.Path(input.Dir)
	m, err := env.Store.Download(ctx, input.Name, dest)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Artifact downloaded.", "artifact", m.Name, "origin", m.Origin, "dir", dest)
	return nil
}

// OnRunCollect extracts every bundle of the run into one directory and moves
// the publish machine to Collected.
func OnRunCollect(ctx context.Context, env *registry.StepEnv, input *CollectInput) error {
	machine, err := env.RequirePublish()
	if err != nil {
		return err
	}
	dest := env.Path(input.Dir)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	manifests, err := env.Store.DownloadAll(ctx, dest)
	if err != nil {
		return err
	}
	names := make([]string, len(manifests))
	for i, m := range manifests {
		names[i] = m.Name
	}
	if err := machine.Transition(publish.Collected); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("Artifacts collected.", "artifacts", names, "dir", dest)
	return nil
}

// Register registers the actions with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("upload_artifact", registry.Action("Upload files as a named artifact.", OnRunUpload))
	r.RegisterAction("download_artifact", registry.Action("Download one named artifact.", OnRunDownload))
	r.RegisterAction("collect_artifacts", registry.Action("Download every artifact of the run.", OnRunCollect))
}
