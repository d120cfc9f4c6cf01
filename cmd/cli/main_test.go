package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/wheelgrid/internal/app"
	"github.com/vk/wheelgrid/internal/cli"
)

func TestRun_PanicRecovery(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A syntax error makes app.NewApp panic while loading the pipeline.
	invalidHCL := `
		job "build" "osx" {
			step "run" "build" {
		// Missing closing braces here
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "wheels.hcl")
	err := os.WriteFile(filePath, []byte(invalidHCL), 0600)
	require.NoError(t, err, "failed to set up test file")

	args := []string{"--ref", "main", "--log-level", "error", filePath}
	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(context.Background(), out, args)

	// --- Assert ---
	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")
	require.Contains(t, runErr.Error(), "application startup panicked")
	require.Contains(t, runErr.Error(), "failed to parse")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	args := []string{"-h"}
	out := &bytes.Buffer{}

	err := run(context.Background(), out, args)

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	err := run(context.Background(), out, args)

	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "unknown flag: --this-is-not-a-valid-flag")
	var exitErr *cli.ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 2, exitErr.Code)
}

func TestRun_PlanOnly(t *testing.T) {
	t.Parallel()

	pipeline := `
pipeline "wheels" {
  on {
    branches = ["main"]
  }
}

job "build" "linux" {
  step "run" "build" {
    arguments {
      command = ["false"]
    }
  }
}
`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "wheels.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(pipeline), 0600))
	report := filepath.Join(tempDir, "report.yaml")

	out := &bytes.Buffer{}
	err := run(context.Background(), out, []string{
		"--ref", "main", "--plan-only", "--log-level", "error",
		"--work-dir", filepath.Join(tempDir, "work"), "--report", report, filePath,
	})

	require.NoError(t, err)
	require.FileExists(t, report)
	require.Contains(t, out.String(), "build.linux")
	require.NoDirExists(t, filepath.Join(tempDir, "work"))
}

func TestNewApp_LoaderSeesConfiguredEnvironment(t *testing.T) {
	t.Parallel()

	pipeline := `
pipeline "wheels" {
  on {
    tags = true
  }
}

job "build" "osx" {
  runs_on = env.RUNNER
  step "print" "hello" {}
}
`
	filePath := filepath.Join(t.TempDir(), "wheels.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(pipeline), 0600))

	cfg, err := app.NewConfig(app.Config{
		PipelinePath: filePath,
		EventKind:    "push",
		Ref:          "refs/tags/0.3.2",
		WorkerCount:  1,
		LogLevel:     "error",
		Environ:      []string{"RUNNER=macos-13"},
	})
	require.NoError(t, err)

	a, err := newApp(&bytes.Buffer{}, cfg)
	require.NoError(t, err)
	job, ok := a.Model().Job("build.osx")
	require.True(t, ok)
	require.Equal(t, "macos-13", job.RunsOn)
}

func TestNewApp_RecoversOnlyStartupPanics(t *testing.T) {
	t.Parallel()

	cfg, err := app.NewConfig(app.Config{
		PipelinePath: filepath.Join(t.TempDir(), "missing.hcl"),
		EventKind:    "push",
		Ref:          "main",
		WorkerCount:  1,
		LogLevel:     "error",
	})
	require.NoError(t, err)

	a, err := newApp(&bytes.Buffer{}, cfg)
	require.Nil(t, a)
	require.Error(t, err)
	require.Contains(t, err.Error(), "application startup panicked")
}
