package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/vk/wheelgrid/internal/event"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // hcl file or directory

	// Trigger event inputs. See event.Parse.
	EventKind     string
	Ref           string
	ReleaseTag    string
	ReleaseAction string

	// Source is the repository checkout steps clone.
	Source  string
	WorkDir string
	// ReportPath is where the YAML run report goes. Empty disables it.
	ReportPath string
	PlanOnly   bool

	NotifyURL       string
	NotifyNamespace string

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int

	// Environ replaces the process environment for expressions and tokens.
	// Nil means os.Environ.
	Environ []string

	// Event is the parsed trigger, set by NewConfig.
	Event event.Event
}

// NewConfig validates cfg, fills defaults and parses the trigger event.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PipelinePath == "" {
		return nil, errors.New("PipelinePath is a required configuration field and cannot be empty")
	}
	ev, err := event.Parse(cfg.EventKind, cfg.Ref, cfg.ReleaseTag, cfg.ReleaseAction)
	if err != nil {
		return nil, err
	}
	cfg.Event = ev

	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = ".wheelgrid"
	}
	if cfg.Source == "" {
		cfg.Source = "."
	}
	return &cfg, nil
}

// EnvMap returns Environ, or the process environment when it is nil, as a
// map. Later entries win.
func (c *Config) EnvMap() map[string]string {
	environ := c.Environ
	if environ == nil {
		environ = os.Environ()
	}
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			out[k] = v
		}
	}
	return out
}
