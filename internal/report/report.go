// Package report turns a finished run into a YAML document and a terminal
// summary.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vk/wheelgrid/internal/artifact"
	"github.com/vk/wheelgrid/internal/config"
	"github.com/vk/wheelgrid/internal/dag"
	"github.com/vk/wheelgrid/internal/plan"
	"github.com/vk/wheelgrid/internal/runner"
)

// Outcomes of a run.
const (
	OutcomeSucceeded    = "succeeded"
	OutcomeFailed       = "failed"
	OutcomeCanceled     = "canceled"
	OutcomePlanned      = "planned"
	OutcomeNotTriggered = "not-triggered"
)

// Artifact summarises one stored bundle.
type Artifact struct {
	Name   string `yaml:"name"`
	Origin string `yaml:"origin"`
	Files  int    `yaml:"files"`
	Bytes  int64  `yaml:"bytes"`
}

// Report is the record of one run.
type Report struct {
	RunID        string             `yaml:"run_id"`
	Pipeline     string             `yaml:"pipeline"`
	Event        string             `yaml:"event"`
	Triggered    bool               `yaml:"triggered"`
	Target       string             `yaml:"target"`
	Outcome      string             `yaml:"outcome"`
	Error        string             `yaml:"error,omitempty"`
	PublishPhase string             `yaml:"publish_phase,omitempty"`
	Started      time.Time          `yaml:"started"`
	Finished     time.Time          `yaml:"finished,omitempty"`
	Warnings     []string           `yaml:"warnings,omitempty"`
	Jobs         []runner.JobStatus `yaml:"jobs"`
	Artifacts    []Artifact         `yaml:"artifacts,omitempty"`
}

// Input is what a report is built from. Result is nil when the plan was not
// executed.
type Input struct {
	RunID     string
	Plan      *plan.Plan
	Result    *dag.Result
	Jobs      []runner.JobStatus
	Artifacts []*artifact.Manifest
	Started   time.Time
	Finished  time.Time
}

// Build assembles the report.
func Build(in Input) *Report {
	r := &Report{
		RunID:     in.RunID,
		Pipeline:  in.Plan.Pipeline,
		Event:     in.Plan.Event.String(),
		Triggered: in.Plan.Triggered,
		Target:    string(in.Plan.Gate.Target()),
		Started:   in.Started,
		Finished:  in.Finished,
		Warnings:  in.Plan.Warnings,
		Jobs:      in.Jobs,
	}
	for _, m := range in.Artifacts {
		r.Artifacts = append(r.Artifacts, Artifact{Name: m.Name, Origin: m.Origin, Files: len(m.Files), Bytes: m.TotalSize()})
	}
	for _, j := range in.Jobs {
		if j.Kind == string(config.KindPublish) && j.PublishPhase != "" {
			r.PublishPhase = j.PublishPhase
		}
	}

	switch {
	case !in.Plan.Triggered:
		r.Outcome = OutcomeNotTriggered
	case in.Result == nil:
		r.Outcome = OutcomePlanned
	default:
		err := in.Result.Err()
		switch {
		case err == nil:
			r.Outcome = OutcomeSucceeded
		case errors.Is(err, context.Canceled):
			r.Outcome = OutcomeCanceled
			r.Error = err.Error()
		default:
			r.Outcome = OutcomeFailed
			r.Error = err.Error()
		}
	}
	return r
}

// Failed reports whether the run ended in failure or cancellation.
func (r *Report) Failed() bool {
	return r.Outcome == OutcomeFailed || r.Outcome == OutcomeCanceled
}

// WriteFile writes the report as YAML, creating parent directories.
func (r *Report) WriteFile(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a report written by WriteFile.
func ReadFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return &r, nil
}
