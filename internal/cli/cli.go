package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"

	"github.com/vk/wheelgrid/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := pflag.NewFlagSet("wheelgrid", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.SortFlags = false

	flagSet.Usage = func() {
		fmt.Fprint(output, `
wheelgrid - Build, test and publish Python wheels across a platform matrix.

Usage:
  wheelgrid [options] PIPELINE_PATH

Arguments:
  PIPELINE_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	eventFlag := flagSet.StringP("event", "e", "push", "Trigger event kind. Options: 'push' or 'release'.")
	refFlag := flagSet.StringP("ref", "r", "", "Git ref of a push event, e.g. refs/tags/0.3.2 or main.")
	releaseTagFlag := flagSet.String("release-tag", "", "Tag of a release event.")
	releaseActionFlag := flagSet.String("release-action", "published", "Action of a release event.")
	sourceFlag := flagSet.String("source", ".", "Repository that checkout steps clone.")
	workDirFlag := flagSet.String("work-dir", ".wheelgrid", "Directory for per-run workspaces and artifacts.")
	workersFlag := flagSet.IntP("workers", "w", 4, "Number of job instances that run concurrently.")
	planOnlyFlag := flagSet.Bool("plan-only", false, "Print the plan and exit without running any job.")
	reportFlag := flagSet.String("report", "", "Write a YAML run report to this path.")
	notifyURLFlag := flagSet.String("notify-url", "", "Socket.IO server that receives run events. Empty disables it.")
	notifyNSFlag := flagSet.String("notify-namespace", "/", "Socket.IO namespace for run events.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected one PIPELINE_PATH, got %d arguments", flagSet.NArg())}
	}
	path := flagSet.Arg(0)
	if path == "" {
		slog.Debug("No pipeline path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	config, err := app.NewConfig(app.Config{
		PipelinePath:    path,
		EventKind:       strings.ToLower(*eventFlag),
		Ref:             *refFlag,
		ReleaseTag:      *releaseTagFlag,
		ReleaseAction:   *releaseActionFlag,
		Source:          *sourceFlag,
		WorkDir:         *workDirFlag,
		ReportPath:      *reportFlag,
		PlanOnly:        *planOnlyFlag,
		NotifyURL:       *notifyURLFlag,
		NotifyNamespace: *notifyNSFlag,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       strings.ToLower(*logFormatFlag),
		LogLevel:        strings.ToLower(*logLevelFlag),
		WorkerCount:     *workersFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "pipeline", config.PipelinePath, "event", config.Event.Kind)
	return config, false, nil
}
