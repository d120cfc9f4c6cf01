// Package sync_sources reconciles a checkout whose symbolic links were not
// materialised: it discards local modifications and rebuilds a staging
// directory from real copies of the native sources.
package sync_sources

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/fsutil"
	"github.com/vk/wheelgrid/internal/registry"
	"github.com/vk/wheelgrid/internal/shell"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments of the sync_sources action. Paths are relative
// to From and are copied to the same relative location under Staging.
type Input struct {
	Repo    string   `hcl:"repo,optional"`
	Staging string   `hcl:"staging"`
	From    string   `hcl:"from"`
	Paths   []string `hcl:"paths"`
}

// Validate checks the input after decoding.
func (in *Input) Validate() error {
	for _, p := range append([]string{in.Staging, in.From}, in.Paths...) {
		if p == "" || filepath.IsAbs(p) || escapes(p) {
			return fmt.Errorf("sync_sources paths must be relative to the repository, got %q", p)
		}
	}
	if len(in.Paths) == 0 {
		return fmt.Errorf("sync_sources needs at least one path to copy")
	}
	if filepath.Clean(in.Staging) == "." {
		return fmt.Errorf("sync_sources staging must be a subdirectory of the repository")
	}
	if within(in.Staging, in.From) || within(in.From, in.Staging) {
		return fmt.Errorf("sync_sources staging %q and from %q must not overlap", in.Staging, in.From)
	}
	for _, p := range in.Paths {
		if filepath.Clean(p) == "." {
			return fmt.Errorf("sync_sources paths must name a file or directory under %q", in.From)
		}
	}
	return nil
}

// within reports whether path p is dir or lies below it.
func within(p, dir string) bool {
	p, dir = filepath.ToSlash(filepath.Clean(p)), filepath.ToSlash(filepath.Clean(dir))
	return dir == "." || p == dir || strings.HasPrefix(p, dir+"/")
}

func escapes(p string) bool {
	clean := filepath.ToSlash(filepath.Clean(p))
	return clean == ".." || strings.HasPrefix(clean, "../")
}

// OnRunSyncSources resets the repository and replaces each listed path under
// the staging directory. Anything else in staging is left alone.
func OnRunSyncSources(ctx context.Context, env *registry.StepEnv, input *Input) error {
	logger := ctxlog.FromContext(ctx)
	repo := env.Path(input.Repo)

	reset := shell.Command{Name: "git", Args: []string{"reset", "--hard", "--quiet"}, Dir: repo}
	if err := env.Shell.Run(ctx, reset); err != nil {
		return fmt.Errorf("failed to reset %s: %w", repo, err)
	}

	staging := filepath.Join(repo, input.Staging)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return err
	}

	from := filepath.Join(repo, input.From)
	for _, p := range input.Paths {
		src := filepath.Join(from, p)
		dst := filepath.Join(staging, p)
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dst, err)
		}
		if err := fsutil.CopyTree(src, dst); err != nil {
			return fmt.Errorf("failed to copy %s: %w", src, err)
		}
	}
	logger.Info("Sources synchronised.", "staging", staging, "paths", input.Paths)
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterAction("sync_sources", registry.Action("Reset the checkout and copy native sources into a staging dir.", OnRunSyncSources))
}
