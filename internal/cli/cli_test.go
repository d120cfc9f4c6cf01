package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/wheelgrid/internal/event"
)

func TestParse_Defaults(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, exit, err := Parse([]string{"--ref", "refs/tags/0.3.2", "wheels.hcl"}, out)
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, "wheels.hcl", cfg.PipelinePath)
	assert.Equal(t, event.KindPush, cfg.Event.Kind)
	assert.Equal(t, "refs/tags/0.3.2", cfg.Event.Ref)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ".wheelgrid", cfg.WorkDir)
	assert.Equal(t, ".", cfg.Source)
	assert.False(t, cfg.PlanOnly)
	assert.Empty(t, out.String())
}

func TestParse_AllFlags(t *testing.T) {
	cfg, exit, err := Parse([]string{
		"-e", "release",
		"--release-tag", "0.3.2",
		"--source", "/src/tskit",
		"--work-dir", "/tmp/wg",
		"-w", "8",
		"--plan-only",
		"--report", "report.yaml",
		"--notify-url", "http://localhost:3000",
		"--notify-namespace", "/ci",
		"--healthcheck-port", "8080",
		"--log-format", "JSON",
		"--log-level", "debug",
		"pipelines/",
	}, &bytes.Buffer{})
	require.NoError(t, err)
	require.False(t, exit)

	assert.Equal(t, event.KindRelease, cfg.Event.Kind)
	assert.Equal(t, "0.3.2", cfg.Event.ReleaseTag)
	assert.Equal(t, "published", cfg.Event.ReleaseAction)
	assert.Equal(t, "/src/tskit", cfg.Source)
	assert.Equal(t, "/tmp/wg", cfg.WorkDir)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.True(t, cfg.PlanOnly)
	assert.Equal(t, "report.yaml", cfg.ReportPath)
	assert.Equal(t, "http://localhost:3000", cfg.NotifyURL)
	assert.Equal(t, "/ci", cfg.NotifyNamespace)
	assert.Equal(t, 8080, cfg.HealthcheckPort)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParse_HelpAndNoPath(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"-h"}, {"--ref", "main"}} {
		out := &bytes.Buffer{}
		cfg, exit, err := Parse(args, out)
		require.NoError(t, err, "args %v", args)
		assert.True(t, exit, "args %v", args)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
		assert.Contains(t, out.String(), "--release-tag")
	}
}

func TestParse_InvalidInput(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown flag", []string{"--grid", "x.hcl"}, "unknown flag: --grid"},
		{"bad worker value", []string{"--workers", "many", "p.hcl"}, "invalid argument"},
		{"two paths", []string{"--ref", "main", "a.hcl", "b.hcl"}, "expected one PIPELINE_PATH"},
		{"push without ref", []string{"p.hcl"}, "requires a ref"},
		{"unknown event", []string{"-e", "pull_request", "p.hcl"}, "unknown event kind"},
		{"bad log format", []string{"--ref", "main", "--log-format", "xml", "p.hcl"}, "log-format"},
		{"bad log level", []string{"--ref", "main", "--log-level", "loud", "p.hcl"}, "log-level"},
		{"zero workers", []string{"--ref", "main", "-w", "0", "p.hcl"}, "worker count"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, exit, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)
			assert.False(t, exit)

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantErr)
		})
	}
}
