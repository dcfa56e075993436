package source

import (
	"fmt"
	"os/exec"
	"strings"
)

// Revision identifies the checked-out state of a working tree.
type Revision struct {
	// Commit is the full HEAD commit hash.
	Commit string `json:"commit"`

	// Branch is the short branch name, or "HEAD" when detached.
	Branch string `json:"branch"`

	// Dirty reports uncommitted changes, untracked files included.
	Dirty bool `json:"dirty"`
}

// Short returns the abbreviated commit, with a "-dirty" suffix when the
// tree has local changes.
func (r *Revision) Short() string {
	commit := r.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	if r.Dirty {
		return commit + "-dirty"
	}
	return commit
}

// String formats the revision as "<branch>@<short>".
func (r *Revision) String() string {
	return r.Branch + "@" + r.Short()
}

// IsRepository reports whether dir is inside a Git working tree.
func IsRepository(dir string) bool {
	out, err := runGit(dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// Describe returns the revision of the working tree containing dir.
// It returns nil and no error when dir is not in a Git working tree or
// the repository has no commits yet.
func Describe(dir string) (*Revision, error) {
	if !IsRepository(dir) {
		return nil, nil
	}

	commit, err := runGit(dir, "rev-parse", "--verify", "--quiet", "HEAD")
	if err != nil {
		// No commits yet.
		return nil, nil
	}

	branch, err := runGit(dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, err
	}

	status, err := runGit(dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}

	return &Revision{
		Commit: strings.TrimSpace(commit),
		Branch: strings.TrimSpace(branch),
		Dirty:  strings.TrimSpace(status) != "",
	}, nil
}

// runGit runs git with -C dir and returns its stdout. Failures carry
// git's stderr.
func runGit(dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)

	// #nosec G204 -- arguments are fixed by this package
	cmd := exec.Command("git", fullArgs...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if s := strings.TrimSpace(stderr.String()); s != "" {
			message += ": " + s
		}
		return "", fmt.Errorf("%s: %w", message, err)
	}
	return stdout.String(), nil
}
