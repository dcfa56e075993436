//go:build !unix

// handoff_other.go stands in for execve on platforms that lack it.
package sequence

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"

	"github.com/shinji-kodama/deployctl/internal/model"
)

// ProcessHandoff stands in for exec on platforms without it: the target
// runs as a child with inherited stdio and deployctl exits with its status.
// Interrupts are left to the child, which shares the console.
type ProcessHandoff struct{}

// NewProcessHandoff creates the platform hand-off.
func NewProcessHandoff() *ProcessHandoff {
	return &ProcessHandoff{}
}

// Exec runs the target to completion. A non-zero exit is returned as a
// quiet model.CLIError carrying the child's exit code.
func (h *ProcessHandoff) Exec(path string, argv []string, env []string, dir string) error {
	// #nosec G204 -- argv is the operator's configured start command.
	cmd := exec.Command(path, argv[1:]...)
	cmd.Dir = dir
	cmd.Env = env
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", path, err)
	}

	signal.Ignore(os.Interrupt)
	defer signal.Reset(os.Interrupt)

	if err := cmd.Wait(); err != nil {
		return model.ForwardCLIError(ExitCodeOf(err), fmt.Sprintf("%s exited", path), err)
	}
	return nil
}
