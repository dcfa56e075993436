// start.go implements the run phase: announce the bind address and the
// command line, then hand the process over to the server.
//
// There is no supervision. Once the hand-off succeeds deployctl no longer
// exists and the server's exit status is what the platform sees.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shinji-kodama/deployctl/internal/model"
	"github.com/shinji-kodama/deployctl/internal/port"
)

// Handoff replaces (or, where the OS cannot, stands in for) the current
// process with the target program.
//
// On success a real Unix hand-off never returns. Implementations return an
// error only when the target could not be started, or, on platforms
// without exec, when the target exited non-zero.
type Handoff interface {
	Exec(path string, argv []string, env []string, dir string) error
}

// LookPathFunc resolves an executable name the way exec.LookPath does.
type LookPathFunc func(file string) (string, error)

// StartSequencer runs the run phase: announce, optionally preflight, then
// hand off. There is no supervision, restart or health check.
type StartSequencer struct {
	// Out receives the two diagnostic lines.
	Out io.Writer

	// Handoff performs the final exec.
	Handoff Handoff

	// LookPath resolves the target executable. nil searches the PATH of
	// the plan's environment, which is the one the target inherits.
	LookPath LookPathFunc

	// Preflight, when set, checks that the address can be bound before the
	// hand-off and fails instead of handing off when it cannot.
	Preflight bool
}

// NewStartSequencer creates a StartSequencer with the platform hand-off.
func NewStartSequencer() *StartSequencer {
	return &StartSequencer{Out: os.Stdout, Handoff: NewProcessHandoff()}
}

// Run announces and hands off to plan.Command.
//
// Two lines are written to Out before the hand-off:
//
//	Starting server on 0.0.0.0:8001
//	Exec: python -m uvicorn optimized_main:app --host 0.0.0.0 --port 8001
//
// A target that cannot be found fails with ExitCommandNotFound (127); one
// that cannot be executed fails with ExitCannotExecute (126).
func (s *StartSequencer) Run(ctx context.Context, plan *model.StartPlan) error {
	if err := plan.Validate(); err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "invalid start plan", err)
	}
	if err := ctx.Err(); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "start cancelled", err)
	}

	if s.Preflight {
		if err := port.NewScannerForHost(plan.Host).CheckBindable(plan.Port); err != nil {
			return model.WrapCLIError(
				model.ExitGeneralError,
				fmt.Sprintf("port %d is not available", plan.Port),
				err,
			)
		}
	}

	out := s.Out
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out, "Starting server on %s\n", plan.Addr())
	fmt.Fprintf(out, "Exec: %s\n", plan.CommandLine())

	path, err := s.resolve(plan.Dir, plan.Command[0], plan.Env)
	if err != nil {
		return model.WrapCLIError(
			ExitCodeOf(err),
			fmt.Sprintf("hand-off target %q failed to start", plan.Command[0]),
			err,
		)
	}

	if err := s.Handoff.Exec(path, plan.Command, plan.Env, plan.Dir); err != nil {
		var cliErr *model.CLIError
		if errors.As(err, &cliErr) {
			return err
		}
		code := model.ExitCannotExecute
		if errors.Is(err, os.ErrNotExist) {
			code = model.ExitCommandNotFound
		}
		return model.WrapCLIError(
			code,
			fmt.Sprintf("hand-off target %q failed to start", plan.Command[0]),
			err,
		)
	}
	return nil
}

// resolve finds the executable. Names containing a path separator are
// taken relative to dir, as the target would see them after the chdir.
// Bare names are searched in the PATH of env.
func (s *StartSequencer) resolve(dir, name string, env []string) (string, error) {
	if filepath.Base(name) != name {
		path := name
		if !filepath.IsAbs(path) && dir != "" {
			path = filepath.Join(dir, path)
		}
		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		if info.IsDir() {
			return "", &os.PathError{Op: "exec", Path: path, Err: os.ErrPermission}
		}
		return path, nil
	}

	if s.LookPath != nil {
		return s.LookPath(name)
	}
	return lookPathIn(name, env)
}

// lookPathIn searches the PATH entry of env for name. An environment
// without PATH falls back to deployctl's own. Relative PATH entries are
// skipped, as exec.LookPath refuses results found through them.
func lookPathIn(name string, env []string) (string, error) {
	pathEnv, ok := environValue(env, "PATH")
	if !ok {
		return exec.LookPath(name)
	}

	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" || !filepath.IsAbs(dir) {
			continue
		}
		if path, err := exec.LookPath(filepath.Join(dir, name)); err == nil {
			return path, nil
		}
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// environValue returns the last value of key in a KEY=VALUE list. Keys
// are case-insensitive on Windows.
func environValue(env []string, key string) (string, bool) {
	for i := len(env) - 1; i >= 0; i-- {
		k, v, found := strings.Cut(env[i], "=")
		if !found {
			continue
		}
		if k == key || (runtime.GOOS == "windows" && strings.EqualFold(k, key)) {
			return v, true
		}
	}
	return "", false
}
