// Package shell runs external commands on behalf of step actions. Output is
// streamed line by line into the context logger.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	"github.com/vk/wheelgrid/internal/ctxlog"
)

// Command is one process invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is added on top of the process environment.
	Env map[string]string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
	// Stderr holds the last lines the command wrote to stderr.
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: exit code %d", e.Command, e.Code)
	}
	return fmt.Sprintf("%s: exit code %d (stderr: %s)", e.Command, e.Code, e.Stderr)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run starts the command and waits for it. A non-zero exit is an *ExitError.
func (ExecRunner) Run(ctx context.Context, cmd Command) error {
	logger := ctxlog.FromContext(ctx).With("command", cmd.Name)
	logger.Info("Running command.", "args", cmd.Args, "dir", cmd.Dir)

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = mergeEnv(os.Environ(), cmd.Env)

	stdout := newLineLogger(logger, slog.LevelInfo, "stdout", 0)
	stderr := newLineLogger(logger, slog.LevelWarn, "stderr", 20)
	c.Stdout = stdout
	c.Stderr = stderr

	err := c.Run()
	stdout.Flush()
	stderr.Flush()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return &ExitError{Command: cmd.String(), Code: exitErr.ExitCode(), Stderr: stderr.Tail()}
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", cmd.String(), ctx.Err())
	}
	return fmt.Errorf("%s: %w", cmd.String(), err)
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if _, overridden := extra[name]; !overridden {
			out = append(out, kv)
		}
	}
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}

// lineLogger is an io.Writer that logs every complete line it receives and
// keeps the last few lines for error messages.
type lineLogger struct {
	mu     sync.Mutex
	logger *slog.Logger
	level  slog.Level
	stream string
	buf    bytes.Buffer
	keep   int
	tail   []string
}

func newLineLogger(logger *slog.Logger, level slog.Level, stream string, keep int) *lineLogger {
	return &lineLogger{logger: logger, level: level, stream: stream, keep: keep}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// Incomplete line, put it back for the next write.
			l.buf.Reset()
			l.buf.WriteString(line)
			break
		}
		l.emit(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (l *lineLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.buf.Len() > 0 {
		l.emit(l.buf.String())
		l.buf.Reset()
	}
}

// Tail returns the kept lines joined by " | ".
func (l *lineLogger) Tail() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.tail, " | ")
}

func (l *lineLogger) emit(line string) {
	if line == "" {
		return
	}
	l.logger.Log(context.Background(), l.level, line, "stream", l.stream)
	if l.keep > 0 {
		l.tail = append(l.tail, line)
		if len(l.tail) > l.keep {
			l.tail = l.tail[len(l.tail)-l.keep:]
		}
	}
}
