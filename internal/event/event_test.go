package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name       string
		kind       string
		ref        string
		releaseTag string
		action     string
		want       Event
		wantErr    string
	}{
		{
			name: "full branch ref",
			kind: "push", ref: "refs/heads/main",
			want: Event{Kind: KindPush, Ref: "refs/heads/main"},
		},
		{
			name: "bare branch name is expanded",
			kind: "push", ref: "main",
			want: Event{Kind: KindPush, Ref: "refs/heads/main"},
		},
		{
			name: "tag ref",
			kind: "push", ref: "refs/tags/v1.2.3",
			want: Event{Kind: KindPush, Ref: "refs/tags/v1.2.3"},
		},
		{
			name: "release defaults to published",
			kind: "release", releaseTag: "v2.0.0",
			want: Event{Kind: KindRelease, Ref: "refs/tags/v2.0.0", ReleaseTag: "v2.0.0", ReleaseAction: "published"},
		},
		{name: "push without ref", kind: "push", wantErr: "requires a ref"},
		{name: "release without tag", kind: "release", wantErr: "requires a tag"},
		{name: "unknown kind", kind: "pull_request", ref: "x", wantErr: "unknown event kind"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.kind, tc.ref, tc.releaseTag, tc.action)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvent_Classification(t *testing.T) {
	branch := Event{Kind: KindPush, Ref: "refs/heads/main"}
	assert.Equal(t, TypePushBranch, branch.Type())
	assert.Equal(t, "main", branch.Branch())
	assert.Empty(t, branch.Tag())

	tag := Event{Kind: KindPush, Ref: "refs/tags/C_v1.2.3"}
	assert.Equal(t, TypePushTag, tag.Type())
	assert.Equal(t, "C_v1.2.3", tag.Tag())
	assert.Empty(t, tag.Branch())

	release := Event{Kind: KindRelease, Ref: "refs/tags/v2.0.0", ReleaseTag: "v2.0.0", ReleaseAction: "published"}
	assert.Equal(t, TypeReleasePublished, release.Type())
	assert.Equal(t, "v2.0.0", release.Tag())

	edited := Event{Kind: KindRelease, ReleaseTag: "v2.0.0", ReleaseAction: "edited"}
	assert.Equal(t, TypeUnknown, edited.Type())
}

func TestTriggers_Accepts(t *testing.T) {
	triggers := Triggers{
		Branches:     []string{"main", "test"},
		Tags:         true,
		ReleaseTypes: []string{"published"},
	}

	assert.True(t, triggers.Accepts(Event{Kind: KindPush, Ref: "refs/heads/main"}))
	assert.True(t, triggers.Accepts(Event{Kind: KindPush, Ref: "refs/heads/test"}))
	assert.False(t, triggers.Accepts(Event{Kind: KindPush, Ref: "refs/heads/feature"}))
	assert.True(t, triggers.Accepts(Event{Kind: KindPush, Ref: "refs/tags/anything"}))
	assert.True(t, triggers.Accepts(Event{Kind: KindRelease, ReleaseTag: "v1", ReleaseAction: "published"}))
	assert.False(t, triggers.Accepts(Event{Kind: KindRelease, ReleaseTag: "v1", ReleaseAction: "created"}))

	noTags := Triggers{Branches: []string{"main"}}
	assert.False(t, noTags.Accepts(Event{Kind: KindPush, Ref: "refs/tags/v1"}))
}
