// runner.go runs single build steps as child processes and maps their
// outcome to the exit code a POSIX shell would report.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/shinji-kodama/deployctl/internal/model"
)

// Runner executes build steps as child processes. The child's stdout and
// stderr are streamed, not captured.
type Runner struct {
	// Stdout and Stderr receive the child's output. nil means os.Stdout /
	// os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunner creates a Runner bound to the process stdio.
func NewRunner() *Runner {
	return &Runner{Stdout: os.Stdout, Stderr: os.Stderr}
}

// Run executes one step in dir with the given environment and waits for it.
//
// A non-zero exit is returned as a model.CLIError whose Code is the child's
// exit status, unchanged. An executable that cannot be found maps to
// ExitCommandNotFound (127); one that cannot be started maps to
// ExitCannotExecute (126). A child killed by a signal reports 128+signal,
// as a POSIX shell would.
func (r *Runner) Run(ctx context.Context, dir string, env []string, step model.Step) error {
	if err := step.Validate(); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid step", err)
	}

	// #nosec G204 -- the command comes from the operator's own deploy file.
	cmd := exec.CommandContext(ctx, step.Command[0], step.Command[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdin = nil
	cmd.Stdout = r.stdout()
	cmd.Stderr = r.stderr()

	err := cmd.Run()
	if err == nil {
		return nil
	}
	return stepError(step, err)
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout != nil {
		return r.Stdout
	}
	return os.Stdout
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

// stepError converts an exec error into a CLIError carrying the exit code
// the platform should see. A step that ran and exited non-zero has already
// streamed its output, so its error is quiet.
func stepError(step model.Step, err error) error {
	message := fmt.Sprintf("step %q (%s) failed", step.Name, step.String())
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return model.ForwardCLIError(ExitCodeOf(err), message, err)
	}
	return model.WrapCLIError(ExitCodeOf(err), message, err)
}

// ExitCodeOf derives the process exit code that best represents err.
//
//   - nil: 0
//   - *exec.ExitError: the child's exit status, or 128+signal when it was
//     killed by a signal
//   - executable not found: 127
//   - permission denied or other start failures: 126
//   - a *model.CLIError: its Code
//   - anything else: 1
func ExitCodeOf(err error) model.ExitCode {
	if err == nil {
		return model.ExitSuccess
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return model.ExitCode(code)
		}
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return model.ExitCode(128 + int(ws.Signal()))
		}
		return model.ExitGeneralError
	}

	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Code
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return model.ExitCommandNotFound
	}
	var pathErr *os.PathError
	if errors.Is(err, os.ErrPermission) || errors.As(err, &pathErr) {
		return model.ExitCannotExecute
	}
	return model.ExitGeneralError
}
