package gate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/wheelgrid/internal/event"
)

const marker = "C_"

func push(ref string) event.Event {
	return event.Event{Kind: event.KindPush, Ref: ref}
}

func release(tag string) event.Event {
	return event.Event{Kind: event.KindRelease, Ref: "refs/tags/" + tag, ReleaseTag: tag, ReleaseAction: event.ActionPublished}
}

func TestEvaluate_Scenarios(t *testing.T) {
	testCases := []struct {
		name   string
		ev     event.Event
		want   Decision
		target Target
	}{
		{"tag push goes to staging", push("refs/tags/v1.2.3"), Decision{Staging: true}, TargetStaging},
		{"excluded tag push uploads nowhere", push("refs/tags/C_v1.2.3"), Decision{}, TargetNone},
		{"published release goes to production", release("v2.0.0"), Decision{Production: true}, TargetProduction},
		{"excluded release uploads nowhere", release("C_v2.0.0"), Decision{}, TargetNone},
		{"branch push uploads nowhere", push("refs/heads/main"), Decision{}, TargetNone},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.ev, marker)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.target, got.Target())
		})
	}
}

func TestEvaluate_MutuallyExclusive(t *testing.T) {
	refs := []string{
		"refs/heads/main", "refs/heads/test", "refs/heads/C_branch",
		"refs/tags/v1", "refs/tags/C_v1", "refs/tags/v1_C_", "refs/tags/", "",
	}
	actions := []string{"published", "created", ""}
	markers := []string{"C_", ""}

	for _, m := range markers {
		for _, ref := range refs {
			d := Evaluate(push(ref), m)
			assert.False(t, d.Staging && d.Production, "push %q marker %q", ref, m)
			assert.False(t, d.Production, "a push must never open the production gate")

			tag := ref
			for _, action := range actions {
				ev := event.Event{Kind: event.KindRelease, Ref: "refs/tags/" + tag, ReleaseTag: tag, ReleaseAction: action}
				d := Evaluate(ev, m)
				assert.False(t, d.Staging && d.Production, "release %q/%q marker %q", tag, action, m)
				assert.False(t, d.Staging, "a release must never open the staging gate")
			}
		}
	}
}

func TestProduction_RequiresPublishedAction(t *testing.T) {
	ev := release("v2.0.0")
	ev.ReleaseAction = "created"
	assert.False(t, Production(ev, marker))
}

func TestEmptyMarkerExcludesNothing(t *testing.T) {
	assert.True(t, Staging(push("refs/tags/C_v1"), ""))
	assert.True(t, Production(release("C_v1"), ""))
}

func TestAsymmetry(t *testing.T) {
	msg, ok := Asymmetry(push("refs/tags/v1_C_fix"), marker)
	assert.True(t, ok)
	assert.Contains(t, msg, "v1_C_fix")

	_, ok = Asymmetry(push("refs/tags/C_v1"), marker)
	assert.False(t, ok, "prefix and substring agree when the marker leads")

	_, ok = Asymmetry(push("refs/tags/v1.2.3"), marker)
	assert.False(t, ok)

	_, ok = Asymmetry(push("refs/heads/main"), marker)
	assert.False(t, ok, "branch pushes have no tag")

	_, ok = Asymmetry(release("x_C_y"), "")
	assert.False(t, ok, "empty marker never disagrees")
}

func TestAsymmetry_MatchesStagingOnFullRef(t *testing.T) {
	for _, tc := range []struct {
		ref, marker string
	}{
		{"refs/tags/v1.0", "tags/"},
		{"refs/tags/v1.0", "s/v"},
		{"refs/tags/C_v1", "C_"},
		{"refs/tags/v1_C_", "C_"},
		{"refs/tags/v1.0", "C_"},
	} {
		ev := push(tc.ref)
		excludedByStaging := !Staging(ev, tc.marker)
		excludedByPrefix := strings.HasPrefix(ev.Tag(), tc.marker)

		msg, ok := Asymmetry(ev, tc.marker)
		assert.Equal(t, excludedByStaging != excludedByPrefix, ok, "%s with marker %q: %s", tc.ref, tc.marker, msg)
	}

	msg, ok := Asymmetry(push("refs/tags/v1.0"), "tags/")
	require.True(t, ok)
	assert.Contains(t, msg, `ref "refs/tags/v1.0"`)
}
