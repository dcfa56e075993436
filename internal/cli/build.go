// Package cli - build.go implements the "deployctl build" command.
//
// The build command is what the platform's build hook invokes. It resolves
// the build plan (by default a pip self-upgrade followed by
// `pip install -r requirements.txt`) and runs each step as a child process
// in the project directory.
//
// The platform log shows nothing but the tools' own output: the command
// writes no lines of its own. Step traces and the success summary are
// available on stderr with --verbose.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/deployctl/internal/sequence"
)

// NewBuildCommand creates the "build" command.
func NewBuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Upgrade the package manager and install dependencies",
		Long: `Run the build phase: upgrade pip, then install every package listed in
the dependency manifest (requirements.txt by default).

Steps run in order in the project directory with their output streamed.
The first failing step stops the build and its exit status becomes
deployctl's. A missing manifest fails before anything runs.

Examples:
  deployctl build
  deployctl build --dir backend
  DEPLOYCTL_PYTHON=python3.11 deployctl build`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// runBuild executes the build phase with the steps' stdout and stderr
// streamed to out and errOut.
func runBuild(ctx context.Context, out, errOut io.Writer) error {
	// Step 1: Resolve environment, env file and deploy file.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Step 2: Build the step list and resolve the manifest path.
	plan, err := cfg.BuildPlan()
	if err != nil {
		return err
	}
	VerboseLog("Build plan: %d steps in %s, manifest %s", len(plan.Steps), plan.Dir, plan.Manifest)

	// Step 3: Run the steps. The first failure returns the tool's own exit
	// status; nothing after it runs.
	seq := sequence.NewBuildSequencer()
	seq.Runner = &sequence.Runner{Stdout: out, Stderr: errOut}
	seq.Logf = VerboseLog
	if err := seq.Run(ctx, plan); err != nil {
		return err
	}

	VerboseLog("Build succeeded (%d steps).", len(plan.Steps))
	return nil
}
