// Package gate holds the publish gate predicates. Each gate is a pure
// function of the trigger event, evaluated once per run, so the decision can
// be tested without executing anything.
package gate

import (
	"fmt"
	"strings"

	"github.com/vk/wheelgrid/internal/event"
)

// Target names the registry role a run publishes to.
type Target string

const (
	TargetNone       Target = "none"
	TargetStaging    Target = "staging"
	TargetProduction Target = "production"
)

// Staging is true for a push of a tag whose ref does not contain the
// exclusion marker. An empty marker excludes nothing.
func Staging(ev event.Event, marker string) bool {
	if ev.Kind != event.KindPush || !ev.IsTagRef() {
		return false
	}
	return marker == "" || !strings.Contains(ev.Ref, marker)
}

// Production is true for a published release whose tag does not start with
// the exclusion marker. Note the prefix check here versus the substring check
// in Staging; see Asymmetry.
func Production(ev event.Event, marker string) bool {
	if ev.Type() != event.TypeReleasePublished {
		return false
	}
	return marker == "" || !strings.HasPrefix(ev.ReleaseTag, marker)
}

// Decision is the evaluated pair of gates for one run.
type Decision struct {
	Staging    bool
	Production bool
}

// Evaluate computes both gates.
func Evaluate(ev event.Event, marker string) Decision {
	return Decision{
		Staging:    Staging(ev, marker),
		Production: Production(ev, marker),
	}
}

// Target returns where the run publishes. The gates are disjoint because they
// require different event kinds, so at most one can be true.
func (d Decision) Target() Target {
	switch {
	case d.Staging:
		return TargetStaging
	case d.Production:
		return TargetProduction
	default:
		return TargetNone
	}
}

// Asymmetry reports whether the staging (substring of the ref) and production
// (prefix of the tag) exclusion checks would disagree about this event's tag.
// When they do, the same tag would be excluded from one registry but not the
// other.
func Asymmetry(ev event.Event, marker string) (string, bool) {
	tag := ev.Tag()
	if marker == "" || tag == "" {
		return "", false
	}
	contains := strings.Contains(ev.Ref, marker)
	prefixed := strings.HasPrefix(tag, marker)
	if contains == prefixed {
		return "", false
	}
	if contains {
		return fmt.Sprintf(
			"ref %q contains exclusion marker %q but tag %q does not start with it: staging would exclude it, production would not",
			ev.Ref, marker, tag,
		), true
	}
	return fmt.Sprintf(
		"tag %q starts with exclusion marker %q but ref %q does not contain it: production would exclude it, staging would not",
		tag, marker, ev.Ref,
	), true
}
