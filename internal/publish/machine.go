// Package publish holds the state machine of the fan-in publish job. A run
// collects every artifact and then ends in exactly one of three terminal
// phases: uploaded to staging, uploaded to production, or collected only.
package publish

import (
	"fmt"
	"sync"

	"github.com/vk/wheelgrid/internal/config"
)

// Phase is a state of the publish job.
type Phase string

const (
	Pending            Phase = "pending"
	Collected          Phase = "collected"
	UploadedStaging    Phase = "uploaded-staging"
	UploadedProduction Phase = "uploaded-production"
	CollectedOnly      Phase = "collected-only"
)

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	switch p {
	case UploadedStaging, UploadedProduction, CollectedOnly:
		return true
	default:
		return false
	}
}

// UploadedPhase maps a registry role to the phase an upload to it ends in.
func UploadedPhase(role config.RegistryRole) (Phase, error) {
	switch role {
	case config.RoleStaging:
		return UploadedStaging, nil
	case config.RoleProduction:
		return UploadedProduction, nil
	default:
		return "", fmt.Errorf("no publish phase for registry role %q", role)
	}
}

// Machine tracks the phase of one publish job. It is safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	phase   Phase
	history []Phase
}

// NewMachine returns a machine in the Pending phase.
func NewMachine() *Machine {
	return &Machine{phase: Pending, history: []Phase{Pending}}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// History returns every phase the machine has been in, oldest first.
func (m *Machine) History() []Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Phase(nil), m.history...)
}

// Transition moves the machine to the given phase if the edge is allowed.
// Once an upload phase is reached no other upload can follow, which keeps
// staging and production uploads mutually exclusive within a run.
func (m *Machine) Transition(to Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !isAllowedTransition(m.phase, to) {
		return fmt.Errorf("disallowed publish transition: %s -> %s", m.phase, to)
	}
	m.phase = to
	m.history = append(m.history, to)
	return nil
}

// Finish closes a run that collected artifacts without uploading them. It is
// a no-op in any other phase and returns the final phase.
func (m *Machine) Finish() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase == Collected {
		m.phase = CollectedOnly
		m.history = append(m.history, CollectedOnly)
	}
	return m.phase
}

func isAllowedTransition(from, to Phase) bool {
	switch from {
	case Pending:
		return to == Collected
	case Collected:
		return to == UploadedStaging || to == UploadedProduction || to == CollectedOnly
	default:
		return false
	}
}
