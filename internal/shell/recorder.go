package shell

import (
	"context"
	"sync"
)

// Recorder is a Runner that records commands instead of running them. It is
// used by the action tests.
type Recorder struct {
	mu       sync.Mutex
	commands []Command
	// Handle, when set, is called for every command and its result returned.
	// It can create files the real command would have produced.
	Handle func(cmd Command) error
}

// Run records the command.
func (r *Recorder) Run(_ context.Context, cmd Command) error {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	handle := r.Handle
	r.mu.Unlock()
	if handle != nil {
		return handle(cmd)
	}
	return nil
}

// Commands returns the recorded commands in call order.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Lines returns the recorded commands rendered as strings.
func (r *Recorder) Lines() []string {
	cmds := r.Commands()
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}
