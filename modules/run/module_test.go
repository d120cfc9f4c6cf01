package run

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/wheelgrid/internal/ctxlog"
	"github.com/vk/wheelgrid/internal/registry"
	"github.com/vk/wheelgrid/internal/shell"
)

func TestOnRunCommand(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	ws := t.TempDir()

	testCases := []struct {
		name  string
		input *Input
		want  shell.Command
	}{
		{
			name:  "argv",
			input: &Input{Command: []string{"python", "-m", "build", "--sdist"}, Dir: "python"},
			want:  shell.Command{Name: "python", Args: []string{"-m", "build", "--sdist"}, Dir: filepath.Join(ws, "python")},
		},
		{
			name:  "script with default shell",
			input: &Input{Script: "make -C c\npytest", Env: map[string]string{"CFLAGS": "-O2"}},
			want:  shell.Command{Name: "bash", Args: []string{"-e", "-c", "make -C c\npytest"}, Dir: ws, Env: map[string]string{"CFLAGS": "-O2"}},
		},
		{
			name:  "script with explicit shell",
			input: &Input{Script: "echo hi", Shell: "sh"},
			want:  shell.Command{Name: "sh", Args: []string{"-e", "-c", "echo hi"}, Dir: ws},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &shell.Recorder{}
			require.NoError(t, tc.input.Validate())
			require.NoError(t, OnRunCommand(ctx, &registry.StepEnv{Workspace: ws, Shell: rec}, tc.input))
			cmds := rec.Commands()
			require.Len(t, cmds, 1)
			if diff := cmp.Diff(tc.want, cmds[0]); diff != "" {
				t.Errorf("command mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInput_Validate(t *testing.T) {
	assert.ErrorContains(t, (&Input{}).Validate(), "needs a command or a script")
	assert.ErrorContains(t, (&Input{Command: []string{"ls"}, Script: "ls"}).Validate(), "not both")
}
