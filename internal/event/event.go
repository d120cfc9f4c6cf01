// Package event models the events that trigger a pipeline run and the
// filters a pipeline declares for them.
package event

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is the raw event name delivered by the source control host.
type Kind string

const (
	KindPush    Kind = "push"
	KindRelease Kind = "release"
)

// Type is the classified trigger: what actually happened.
type Type string

const (
	TypePushBranch       Type = "push-branch"
	TypePushTag          Type = "push-tag"
	TypeReleasePublished Type = "release-published"
	TypeUnknown          Type = "unknown"
)

const (
	branchPrefix = "refs/heads/"
	tagPrefix    = "refs/tags/"

	// ActionPublished is the release action the pipeline reacts to by default.
	ActionPublished = "published"
)

// Event is the payload of one trigger.
type Event struct {
	Kind Kind
	// Ref is the full git ref of a push, e.g. refs/heads/main or refs/tags/v1.2.3.
	Ref string
	// ReleaseTag is the tag name of a release event.
	ReleaseTag string
	// ReleaseAction is the release activity type, e.g. "published".
	ReleaseAction string
}

// Parse validates raw trigger input and normalises it. A push ref without a
// refs/ prefix is taken to be a branch name.
func Parse(kind, ref, releaseTag, releaseAction string) (Event, error) {
	switch Kind(kind) {
	case KindPush:
		if ref == "" {
			return Event{}, fmt.Errorf("push event requires a ref")
		}
		if !strings.HasPrefix(ref, "refs/") {
			ref = branchPrefix + ref
		}
		return Event{Kind: KindPush, Ref: ref}, nil
	case KindRelease:
		if releaseTag == "" {
			return Event{}, fmt.Errorf("release event requires a tag name")
		}
		if releaseAction == "" {
			releaseAction = ActionPublished
		}
		return Event{
			Kind:          KindRelease,
			Ref:           tagPrefix + releaseTag,
			ReleaseTag:    releaseTag,
			ReleaseAction: releaseAction,
		}, nil
	default:
		return Event{}, fmt.Errorf("unknown event kind %q: must be 'push' or 'release'", kind)
	}
}

// IsTagRef reports whether the event's ref points at a tag.
func (e Event) IsTagRef() bool {
	return strings.HasPrefix(e.Ref, tagPrefix)
}

// Branch returns the short branch name of a branch push, or "".
func (e Event) Branch() string {
	if e.Kind != KindPush {
		return ""
	}
	name, ok := strings.CutPrefix(e.Ref, branchPrefix)
	if !ok {
		return ""
	}
	return name
}

// Tag returns the short tag name of a tag push or a release, or "".
func (e Event) Tag() string {
	if e.Kind == KindRelease {
		return e.ReleaseTag
	}
	name, ok := strings.CutPrefix(e.Ref, tagPrefix)
	if !ok {
		return ""
	}
	return name
}

// Type classifies the event.
func (e Event) Type() Type {
	switch e.Kind {
	case KindPush:
		switch {
		case e.IsTagRef():
			return TypePushTag
		case e.Branch() != "":
			return TypePushBranch
		}
	case KindRelease:
		if e.ReleaseAction == ActionPublished {
			return TypeReleasePublished
		}
	}
	return TypeUnknown
}

func (e Event) String() string {
	switch e.Kind {
	case KindRelease:
		return fmt.Sprintf("release(%s %s)", e.ReleaseAction, e.ReleaseTag)
	default:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Ref)
	}
}

// Triggers is the set of events a pipeline runs for.
type Triggers struct {
	// Branches lists the branch names whose pushes trigger a run.
	Branches []string
	// Tags enables runs on pushes of any tag.
	Tags bool
	// ReleaseTypes lists the release actions that trigger a run.
	ReleaseTypes []string
}

// Accepts reports whether the event should start a run.
func (t Triggers) Accepts(e Event) bool {
	switch e.Kind {
	case KindPush:
		if e.IsTagRef() {
			return t.Tags
		}
		return slices.Contains(t.Branches, e.Branch())
	case KindRelease:
		return slices.Contains(t.ReleaseTypes, e.ReleaseAction)
	}
	return false
}
