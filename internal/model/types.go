// Package model defines the domain types for the deployctl CLI.
//
// The types here describe the two lifecycle phases a hosting platform
// drives (build and run), the command steps each phase executes, and the
// exit code taxonomy used to report failures back to the platform.
package model

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Phase identifies which platform lifecycle hook is being executed.
type Phase string

const (
	// PhaseBuild runs once per deployment and prepares the runnable
	// environment (package manager upgrade and dependency install).
	PhaseBuild Phase = "build"

	// PhaseRun launches the long-running service process.
	PhaseRun Phase = "run"
)

// String returns the string representation of Phase.
func (p Phase) String() string {
	return string(p)
}

// IsValid checks whether the Phase value is one of the defined phases.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseBuild, PhaseRun:
		return true
	default:
		return false
	}
}

// ParsePhase converts a string to a Phase.
// Returns an error if the string does not match any valid phase.
func ParsePhase(s string) (Phase, error) {
	phase := Phase(strings.ToLower(s))
	if !phase.IsValid() {
		return "", fmt.Errorf("invalid phase: %q (valid: build, run)", s)
	}
	return phase, nil
}

// Step is a single command invocation executed by the build sequencer.
//
// Command holds the argv vector: Command[0] is the executable (resolved via
// PATH) and the remaining elements are passed verbatim, without a shell.
type Step struct {
	// Name is a short identifier shown in diagnostics (e.g. "install-deps").
	Name string `json:"name" yaml:"name"`

	// Command is the argv vector of the step.
	Command []string `json:"command" yaml:"command"`
}

// Validate checks that the step has a name and a non-empty command.
func (s *Step) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("step: name must not be empty")
	}
	if len(s.Command) == 0 || strings.TrimSpace(s.Command[0]) == "" {
		return fmt.Errorf("step %q: command must not be empty", s.Name)
	}
	return nil
}

// String renders the step command as a shell-quoted line, suitable for
// logging and for embedding in a `sh -c` script.
func (s *Step) String() string {
	return shellquote.Join(s.Command...)
}

// ValidateSteps checks every step individually and rejects duplicate names.
func ValidateSteps(steps []Step) error {
	if len(steps) == 0 {
		return fmt.Errorf("build: at least one step is required")
	}
	seen := make(map[string]bool, len(steps))
	for i := range steps {
		if err := steps[i].Validate(); err != nil {
			return err
		}
		if seen[steps[i].Name] {
			return fmt.Errorf("build: duplicate step name %q", steps[i].Name)
		}
		seen[steps[i].Name] = true
	}
	return nil
}

// BuildPlan is the fully resolved input of the build sequencer.
type BuildPlan struct {
	// Dir is the working directory every step runs in.
	Dir string `json:"dir"`

	// Manifest is the dependency manifest path, relative to Dir.
	// It must exist before any step runs.
	Manifest string `json:"manifest"`

	// Steps run in order; step N+1 runs only if step N exits 0.
	Steps []Step `json:"steps"`

	// Env is the environment passed to every step (KEY=VALUE entries).
	Env []string `json:"-"`
}

// StartPlan is the fully resolved input of the start sequencer.
type StartPlan struct {
	// Dir is the working directory of the hand-off target.
	Dir string `json:"dir"`

	// Host is the bind address handed to the target, normally the
	// wildcard address "0.0.0.0".
	Host string `json:"host"`

	// Port is the resolved TCP port (1-65535).
	Port int `json:"port"`

	// Command is the argv vector of the hand-off target, with host and
	// port placeholders already substituted.
	Command []string `json:"command"`

	// Env is the environment the target inherits (KEY=VALUE entries).
	Env []string `json:"-"`
}

// Addr returns the host:port pair the target is expected to bind.
func (p *StartPlan) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// CommandLine renders the hand-off command shell-quoted.
func (p *StartPlan) CommandLine() string {
	return shellquote.Join(p.Command...)
}

// Validate checks the start plan for a usable port and command.
func (p *StartPlan) Validate() error {
	if p.Port < 1 || p.Port > 65535 {
		return fmt.Errorf("start: port %d out of range (1-65535)", p.Port)
	}
	if len(p.Command) == 0 || strings.TrimSpace(p.Command[0]) == "" {
		return fmt.Errorf("start: command must not be empty")
	}
	return nil
}

// EnvVar describes an environment variable passed through to the service.
// deployctl never parses or validates these values; the catalog exists only
// so operators can see which keys the service expects.
type EnvVar struct {
	// Key is the environment variable name.
	Key string `json:"key" yaml:"key"`

	// Description is a short human-readable purpose.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Secret marks credentials whose values must never be printed.
	Secret bool `json:"secret,omitempty" yaml:"secret,omitempty"`
}

// MaskValue returns the value to display for this variable.
// Secrets are reduced to a fixed mask, unset values to an empty string.
func (v EnvVar) MaskValue(value string) string {
	if value == "" {
		return ""
	}
	if v.Secret {
		return "********"
	}
	return value
}

// ExitCode defines the exit codes deployctl itself produces.
//
// When a step or the hand-off target fails, its own exit code is forwarded
// unchanged inside a CLIError instead; these constants cover only failures
// that happen before any tool runs.
type ExitCode int

const (
	// ExitSuccess indicates the command completed successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError indicates an unspecified error, including a missing
	// dependency manifest or an invalid PORT value.
	ExitGeneralError ExitCode = 1

	// ExitConfigInvalid indicates the deploy file was not found (when
	// given explicitly) or could not be parsed or validated.
	ExitConfigInvalid ExitCode = 2

	// ExitDockerNotRunning indicates the Docker daemon is not accessible.
	ExitDockerNotRunning ExitCode = 3

	// ExitUserCancelled indicates the user declined an interactive prompt.
	ExitUserCancelled ExitCode = 7

	// ExitCannotExecute indicates the hand-off target was found but could
	// not be executed. Matches the shell convention.
	ExitCannotExecute ExitCode = 126

	// ExitCommandNotFound indicates the hand-off target or a build step
	// executable was not found on PATH. Matches the shell convention.
	ExitCommandNotFound ExitCode = 127
)

// CLIError is a custom error type that carries an exit code.
// This allows the CLI layer to translate domain errors into
// appropriate process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error

	// Quiet marks a failure that has already reported itself, such as a
	// build step or server that exited non-zero after streaming its own
	// output. The CLI exits with Code and prints nothing for it.
	Quiet bool
}

// Error returns the human-readable error message, optionally including
// the underlying error.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}

// ForwardCLIError wraps the failure of a child process whose output went
// straight to the inherited streams. The result is Quiet.
func ForwardCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err, Quiet: true}
}
