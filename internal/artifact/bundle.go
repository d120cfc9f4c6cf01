package artifact

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// writeBundle writes files (relative to baseDir) into a zstd-compressed tar
// archive and returns the per-file manifest entries.
func writeBundle(ctx context.Context, bundlePath, baseDir string, files []string) ([]File, error) {
	out, err := os.Create(bundlePath)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	tw := tar.NewWriter(zw)

	entries := make([]File, 0, len(files))
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return nil, err
		}
		entry, err := addFile(tw, baseDir, rel)
		if err != nil {
			zw.Close()
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := tw.Close(); err != nil {
		zw.Close()
		return nil, fmt.Errorf("tar close: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zstd close: %w", err)
	}
	return entries, out.Close()
}

func addFile(tw *tar.Writer, baseDir, rel string) (File, error) {
	name := filepath.ToSlash(filepath.Clean(rel))
	if !safeEntryName(name) {
		return File{}, fmt.Errorf("file %q escapes the artifact base directory", rel)
	}
	f, err := os.Open(filepath.Join(baseDir, rel))
	if err != nil {
		return File{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return File{}, err
	}
	if !info.Mode().IsRegular() {
		return File{}, fmt.Errorf("%q is not a regular file", rel)
	}

	hdr := &tar.Header{
		Name:     name,
		Mode:     int64(info.Mode().Perm()),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return File{}, err
	}

	digest := newDigestWriter()
	if _, err := io.Copy(io.MultiWriter(tw, digest), f); err != nil {
		return File{}, fmt.Errorf("failed to pack %q: %w", rel, err)
	}
	return File{Path: name, Size: digest.size, Digest: digest.Digest()}, nil
}

// readBundle extracts a bundle into destDir. With flatten set, every file is
// written directly into destDir under its base name.
func readBundle(ctx context.Context, bundlePath string, m *Manifest, destDir string, flatten bool) error {
	expected := make(map[string]File, len(m.Files))
	for _, f := range m.Files {
		expected[f.Path] = f
	}

	in, err := os.Open(bundlePath)
	if err != nil {
		return err
	}
	defer in.Close()

	zr, err := zstd.NewReader(in)
	if err != nil {
		return fmt.Errorf("zstd decoder: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	seen := 0
	tr := tar.NewReader(zr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("corrupt bundle: %w", err)
		}
		want, ok := expected[hdr.Name]
		if !ok || !safeEntryName(hdr.Name) {
			return fmt.Errorf("bundle entry %q is not in the manifest", hdr.Name)
		}

		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if flatten {
			target = filepath.Join(destDir, path.Base(hdr.Name))
		}
		if err := extractFile(tr, target, os.FileMode(hdr.Mode).Perm(), want); err != nil {
			return err
		}
		seen++
	}
	if seen != len(expected) {
		return fmt.Errorf("bundle holds %d files, manifest lists %d", seen, len(expected))
	}
	return nil
}

func extractFile(r io.Reader, target string, perm os.FileMode, want File) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return err
	}
	digest := newDigestWriter()
	if _, err := io.Copy(io.MultiWriter(out, digest), r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if got := digest.Digest(); got != want.Digest {
		os.Remove(target)
		return fmt.Errorf("digest mismatch for %q: manifest %s, bundle %s", want.Path, want.Digest, got)
	}
	return nil
}

func safeEntryName(name string) bool {
	if name == "" || name == "." || path.IsAbs(name) {
		return false
	}
	return name != ".." && !strings.HasPrefix(name, "../")
}
