package upload

import (
	"fmt"
	"strings"
)

// Dist describes a distribution file by what its name encodes.
type Dist struct {
	Filename string
	Name     string
	Version  string
	// FileType is "bdist_wheel" or "sdist".
	FileType string
	// PyVersion is the wheel's python tag, or "source" for an sdist.
	PyVersion string
}

// ParseDistFilename parses a wheel (name-version[-build]-py-abi-plat.whl) or
// an sdist (name-version.tar.gz) file name.
func ParseDistFilename(filename string) (Dist, error) {
	switch {
	case strings.HasSuffix(filename, ".whl"):
		parts := strings.Split(strings.TrimSuffix(filename, ".whl"), "-")
		if len(parts) != 5 && len(parts) != 6 {
			return Dist{}, fmt.Errorf("malformed wheel file name %q", filename)
		}
		return Dist{
			Filename:  filename,
			Name:      parts[0],
			Version:   parts[1],
			FileType:  "bdist_wheel",
			PyVersion: parts[len(parts)-3],
		}, nil
	case strings.HasSuffix(filename, ".tar.gz"):
		stem := strings.TrimSuffix(filename, ".tar.gz")
		i := strings.LastIndex(stem, "-")
		if i <= 0 || i == len(stem)-1 {
			return Dist{}, fmt.Errorf("malformed sdist file name %q", filename)
		}
		return Dist{
			Filename:  filename,
			Name:      stem[:i],
			Version:   stem[i+1:],
			FileType:  "sdist",
			PyVersion: "source",
		}, nil
	default:
		return Dist{}, fmt.Errorf("%q is not a wheel or sdist", filename)
	}
}
