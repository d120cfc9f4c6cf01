package publish

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/gate"
	pubstate "github.com/vk/wheelgrid/internal/publish"
	"github.com/vk/wheelgrid/internal/registry"
	"github.com/vk/wheelgrid/internal/upload"
)

type fakeUploader struct {
	dirs   []string
	err    error
	closed bool
}

func (f *fakeUploader) UploadDir(_ context.Context, dir string) ([]string, error) {
	f.dirs = append(f.dirs, dir)
	if f.err != nil {
		return nil, f.err
	}
	return []string{"tskit-0.3.2.tar.gz"}, nil
}

func (f *fakeUploader) Close() error {
	f.closed = true
	return nil
}

type fixture struct {
	env      *registry.StepEnv
	uploader *fakeUploader
	tokens   []string
}

func newFixture(t *testing.T, decision gate.Decision) *fixture {
	t.Helper()
	f := &fixture{uploader: &fakeUploader{}}
	machine := pubstate.NewMachine()
	require.NoError(t, machine.Transition(pubstate.Collected))
	f.env = &registry.StepEnv{
		JobID:     "publish.pypi",
		Workspace: t.TempDir(),
		Gate:      decision,
		Publish:   machine,
		Registries: map[string]*config.Registry{
			"testpypi": {Name: "testpypi", Role: config.RoleStaging, URL: "https://test.pypi.org/legacy/", TokenEnv: "TEST_PYPI_TOKEN", Username: "__token__"},
			"pypi":     {Name: "pypi", Role: config.RoleProduction, URL: "https://upload.pypi.org/legacy/", TokenEnv: "PYPI_TOKEN", Username: "__token__"},
		},
		NewUploader: func(_ *config.Registry, token string) upload.Uploader {
			f.tokens = append(f.tokens, token)
			return f.uploader
		},
		Getenv: func(key string) string {
			return map[string]string{"TEST_PYPI_TOKEN": "staging-secret", "PYPI_TOKEN": "prod-secret"}[key]
		},
	}
	return f
}

func TestOnRunPublish_Staging(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	f := newFixture(t, gate.Decision{Staging: true})

	in := &Input{Registry: "testpypi"}
	require.NoError(t, in.Validate())
	require.NoError(t, OnRunPublish(ctx, f.env, in))

	assert.Equal(t, pubstate.UploadedStaging, f.env.Publish.Phase())
	assert.Equal(t, []string{"staging-secret"}, f.tokens)
	assert.Equal(t, []string{filepath.Join(f.env.Workspace, "dist")}, f.uploader.dirs)
	assert.True(t, f.uploader.closed)
}

func TestOnRunPublish_Production(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	f := newFixture(t, gate.Decision{Production: true})

	require.NoError(t, OnRunPublish(ctx, f.env, &Input{Registry: "pypi", Dir: "dist"}))
	assert.Equal(t, pubstate.UploadedProduction, f.env.Publish.Phase())
	assert.Equal(t, []string{"prod-secret"}, f.tokens)
}

func TestOnRunPublish_SecondUploadRejected(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	f := newFixture(t, gate.Decision{Staging: true, Production: true})

	require.NoError(t, OnRunPublish(ctx, f.env, &Input{Registry: "testpypi", Dir: "dist"}))
	err := OnRunPublish(ctx, f.env, &Input{Registry: "pypi", Dir: "dist"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot publish")
	assert.Len(t, f.uploader.dirs, 1, "the second registry must not be contacted")
	assert.Equal(t, pubstate.UploadedStaging, f.env.Publish.Phase())
}

func TestOnRunPublish_Refusals(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	testCases := []struct {
		name    string
		setup   func(f *fixture)
		input   Input
		wantErr string
	}{
		{
			name:    "gate closed",
			input:   Input{Registry: "pypi", Dir: "dist"},
			wantErr: "gate is closed",
		},
		{
			name:    "unknown registry",
			input:   Input{Registry: "anaconda", Dir: "dist"},
			wantErr: "unknown registry",
		},
		{
			name:    "missing token",
			setup:   func(f *fixture) { f.env.Getenv = func(string) string { return "" } },
			input:   Input{Registry: "testpypi", Dir: "dist"},
			wantErr: "TEST_PYPI_TOKEN is empty",
		},
		{
			name:    "not collected",
			setup:   func(f *fixture) { f.env.Publish = pubstate.NewMachine() },
			input:   Input{Registry: "testpypi", Dir: "dist"},
			wantErr: "phase pending",
		},
		{
			name:    "not a publish job",
			setup:   func(f *fixture) { f.env.Publish = nil },
			input:   Input{Registry: "testpypi", Dir: "dist"},
			wantErr: "not a publish job",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, gate.Decision{Staging: true})
			if tc.setup != nil {
				tc.setup(f)
			}
			err := OnRunPublish(ctx, f.env, &tc.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.Empty(t, f.uploader.dirs)
		})
	}
}

func TestOnRunPublish_UploadFailureIsTerminal(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	f := newFixture(t, gate.Decision{Staging: true})
	f.uploader.err = errors.New("403 Forbidden")

	err := OnRunPublish(ctx, f.env, &Input{Registry: "testpypi", Dir: "dist"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403 Forbidden")
	assert.Equal(t, pubstate.Collected, f.env.Publish.Phase())
	assert.True(t, f.uploader.closed)
}
