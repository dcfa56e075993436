// build.go implements the build phase: a fixed list of steps run one after
// the other in the project directory, with the dependency manifest checked
// up front. The first failing step ends the build and its exit status is
// the build's.
package sequence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shinji-kodama/deployctl/internal/model"
)

// StepRunner runs a single build step. *Runner is the production
// implementation; tests substitute recorders.
type StepRunner interface {
	Run(ctx context.Context, dir string, env []string, step model.Step) error
}

// BuildSequencer runs the build phase.
type BuildSequencer struct {
	// Runner executes each step.
	Runner StepRunner

	// Logf, when set, is called once before each step with a
	// "[i/n] name: command" trace. Nothing is written to the child's
	// streams, so the build log holds only the tools' own output.
	Logf func(format string, args ...any)
}

// NewBuildSequencer creates a BuildSequencer streaming to the process stdio.
func NewBuildSequencer() *BuildSequencer {
	return &BuildSequencer{Runner: NewRunner()}
}

// Run executes plan.Steps in order in plan.Dir.
//
// The manifest must exist before anything runs; a missing manifest fails
// with ExitGeneralError and no step is started. Step N+1 runs only if step
// N succeeded, and the first failing step's exit code is returned
// unchanged inside a model.CLIError. There is no retry.
func (b *BuildSequencer) Run(ctx context.Context, plan *model.BuildPlan) error {
	if err := model.ValidateSteps(plan.Steps); err != nil {
		return model.WrapCLIError(model.ExitConfigInvalid, "invalid build plan", err)
	}

	if err := CheckManifest(plan.Dir, plan.Manifest); err != nil {
		return err
	}

	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "build cancelled", err)
		}

		if b.Logf != nil {
			b.Logf("[%d/%d] %s: %s", i+1, len(plan.Steps), step.Name, step.String())
		}

		if err := b.Runner.Run(ctx, plan.Dir, plan.Env, step); err != nil {
			return err
		}
	}
	return nil
}

// CheckManifest verifies that the dependency manifest is a regular file
// under dir.
func CheckManifest(dir, manifest string) error {
	if manifest == "" {
		return nil
	}
	path := manifest
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, manifest)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.WrapCLIError(
				model.ExitGeneralError,
				fmt.Sprintf("dependency manifest not found: %s", path),
				err,
			)
		}
		return model.WrapCLIError(model.ExitGeneralError, "failed to read dependency manifest", err)
	}
	if info.IsDir() {
		return model.NewCLIError(
			model.ExitGeneralError,
			fmt.Sprintf("dependency manifest is a directory: %s", path),
		)
	}
	return nil
}
