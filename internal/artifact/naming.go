package artifact

import (
	"fmt"
	"regexp"
)

const (
	// SdistName is the artifact holding the source distribution.
	SdistName = "sdist"
	// LinuxWheelsName is the artifact holding the containerised linux wheels.
	LinuxWheelsName = "linux-wheels"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// WheelName returns the artifact name of the wheel built for one matrix cell.
// wordSize is only set for platforms that build several word sizes.
func WheelName(platform, interpreter, wordSize string) string {
	if wordSize == "" {
		return fmt.Sprintf("%s-wheel-%s", platform, interpreter)
	}
	return fmt.Sprintf("%s-wheel-%s-%s", platform, interpreter, wordSize)
}

// ValidateName rejects names that cannot be used as a store key.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid artifact name %q: must match %s", name, namePattern)
	}
	return nil
}
