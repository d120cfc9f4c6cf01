package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vk/wheelgrid/internal/ctxlog"
)

var (
	// ErrExists is returned when uploading under a name that is already taken.
	ErrExists = errors.New("artifact already exists")
	// ErrNotFound is returned when downloading a name nobody uploaded.
	ErrNotFound = errors.New("artifact not found")
)

const (
	manifestFile = "manifest.yaml"
	bundleFile   = "bundle.tar.zst"
)

// Store is the artifact namespace shared by the jobs of one run.
type Store interface {
	// Upload stores files (relative to baseDir) under name.
	Upload(ctx context.Context, name, origin, baseDir string, files []string) (*Manifest, error)
	// Download extracts the named bundle into destDir.
	Download(ctx context.Context, name, destDir string) (*Manifest, error)
	// DownloadAll extracts every bundle into destDir, flattening paths.
	DownloadAll(ctx context.Context, destDir string) ([]*Manifest, error)
	// List returns the manifests of all stored bundles sorted by name.
	List(ctx context.Context) ([]*Manifest, error)
}

// LocalStore keeps bundles in a directory on the local filesystem.
type LocalStore struct {
	root string
	// mu serialises the publish step of uploads so that the existence check
	// and the rename are atomic with respect to each other.
	mu  sync.Mutex
	now func() time.Time
}

// NewLocalStore creates the store directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact store at %s: %w", root, err)
	}
	return &LocalStore{root: root, now: time.Now}, nil
}

// Root returns the store directory.
func (s *LocalStore) Root() string {
	return s.root
}

// Upload packs the files into a new bundle. Nothing becomes visible under the
// name unless every file was written successfully.
func (s *LocalStore) Upload(ctx context.Context, name, origin, baseDir string, files []string) (*Manifest, error) {
	logger := ctxlog.FromContext(ctx).With("artifact", name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("artifact %q: no files to upload", name)
	}
	if s.exists(name) {
		return nil, fmt.Errorf("artifact %q: %w", name, ErrExists)
	}

	tmp, err := os.MkdirTemp(s.root, ".upload-"+name+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to stage artifact %q: %w", name, err)
	}
	defer os.RemoveAll(tmp)

	logger.Debug("Packing artifact bundle.", "files", len(files), "base_dir", baseDir)
	entries, err := writeBundle(ctx, filepath.Join(tmp, bundleFile), baseDir, files)
	if err != nil {
		return nil, fmt.Errorf("artifact %q: %w", name, err)
	}

	manifest := &Manifest{Name: name, Origin: origin, Uploaded: s.now().UTC(), Files: entries}
	if err := writeManifest(filepath.Join(tmp, manifestFile), manifest); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exists(name) {
		return nil, fmt.Errorf("artifact %q: %w", name, ErrExists)
	}
	if err := os.Rename(tmp, s.dir(name)); err != nil {
		return nil, fmt.Errorf("failed to publish artifact %q: %w", name, err)
	}
	logger.Info("📦 Artifact uploaded.", "origin", origin, "files", len(entries), "bytes", manifest.TotalSize())
	return manifest, nil
}

// Download extracts one bundle into destDir, verifying every digest.
func (s *LocalStore) Download(ctx context.Context, name, destDir string) (*Manifest, error) {
	logger := ctxlog.FromContext(ctx).With("artifact", name)
	manifest, err := s.manifest(name)
	if err != nil {
		return nil, err
	}
	if err := readBundle(ctx, filepath.Join(s.dir(name), bundleFile), manifest, destDir, false); err != nil {
		return nil, fmt.Errorf("artifact %q: %w", name, err)
	}
	logger.Info("Artifact downloaded.", "dest", destDir, "files", len(manifest.Files))
	return manifest, nil
}

// DownloadAll gathers every bundle into one flat directory. Two bundles
// carrying a file with the same base name is an error.
func (s *LocalStore) DownloadAll(ctx context.Context, destDir string) ([]*Manifest, error) {
	logger := ctxlog.FromContext(ctx)
	manifests, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	owners := make(map[string]string)
	for _, m := range manifests {
		for _, f := range m.Files {
			base := filepath.Base(filepath.FromSlash(f.Path))
			if owner, ok := owners[base]; ok {
				return nil, fmt.Errorf("file %q is provided by both %q and %q", base, owner, m.Name)
			}
			owners[base] = m.Name
		}
	}

	for _, m := range manifests {
		if err := readBundle(ctx, filepath.Join(s.dir(m.Name), bundleFile), m, destDir, true); err != nil {
			return nil, fmt.Errorf("artifact %q: %w", m.Name, err)
		}
	}
	logger.Info("All artifacts collected.", "dest", destDir, "artifacts", len(manifests), "files", len(owners))
	return manifests, nil
}

// List returns the manifests of all stored bundles.
func (s *LocalStore) List(_ context.Context) ([]*Manifest, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact store: %w", err)
	}
	var manifests []*Manifest
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		m, err := s.manifest(entry.Name())
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}
	sort.Slice(manifests, func(i, j int) bool { return manifests[i].Name < manifests[j].Name })
	return manifests, nil
}

func (s *LocalStore) dir(name string) string {
	return filepath.Join(s.root, name)
}

func (s *LocalStore) exists(name string) bool {
	_, err := os.Stat(s.dir(name))
	return err == nil
}

func (s *LocalStore) manifest(name string) (*Manifest, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	m, err := readManifest(filepath.Join(s.dir(name), manifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("artifact %q: %w", name, ErrNotFound)
	}
	return m, err
}
