//go:build unix

// handoff_unix.go replaces the deployctl process with the server through
// execve, keeping the PID and open descriptors.
package sequence

import (
	"fmt"
	"os"
	"syscall"
)

// ProcessHandoff replaces the current process image with the target via
// execve(2). The target inherits the PID and every open file descriptor,
// including stdout and stderr.
type ProcessHandoff struct{}

// NewProcessHandoff creates the platform hand-off.
func NewProcessHandoff() *ProcessHandoff {
	return &ProcessHandoff{}
}

// Exec changes into dir and replaces the process. It returns only on failure.
func (h *ProcessHandoff) Exec(path string, argv []string, env []string, dir string) error {
	if dir != "" {
		if err := os.Chdir(dir); err != nil {
			return fmt.Errorf("chdir %s: %w", dir, err)
		}
	}
	if env == nil {
		env = os.Environ()
	}
	// #nosec G204 -- argv is the operator's configured start command.
	if err := syscall.Exec(path, argv, env); err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil
}
