package artifact

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File describes one file inside a bundle.
type File struct {
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	Digest string `yaml:"digest"`
}

// Manifest describes a stored bundle.
type Manifest struct {
	Name     string    `yaml:"name"`
	Origin   string    `yaml:"origin"`
	Uploaded time.Time `yaml:"uploaded"`
	Files    []File    `yaml:"files"`
}

// TotalSize is the sum of the uncompressed file sizes.
func (m *Manifest) TotalSize() int64 {
	var total int64
	for _, f := range m.Files {
		total += f.Size
	}
	return total
}

func writeManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest for %q: %w", m.Name, err)
	}
	return os.WriteFile(path, data, 0o644)
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return &m, nil
}
