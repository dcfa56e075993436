// Package cli - start.go implements the "deployctl start" command.
//
// The start command is what the platform's start hook invokes. It resolves
// the port (PORT, or 8001 when unset), prints the two diagnostic lines and
// replaces deployctl with the server bound on the wildcard address. From
// that moment the server's exit status is the one the platform observes.
//
// With --preflight the address is test-bound first, so a port conflict
// fails before the hand-off instead of inside the server.
package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/deployctl/internal/sequence"
)

// startFlags holds the flag values for the start command.
type startFlags struct {
	// preflight checks that the address is bindable before handing off.
	preflight bool
}

// NewStartCommand creates the "start" command.
func NewStartCommand() *cobra.Command {
	flags := &startFlags{}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the web server on 0.0.0.0:$PORT",
		Long: `Run the start phase: resolve the port from PORT (8001 when unset),
print the bind address and the command line, and replace deployctl with
the server process.

After the hand-off deployctl no longer exists; the server's own exit
status is what the platform observes. A PORT that is not a decimal
integer in 1..65535 is an error, never a silent fallback.

Examples:
  deployctl start
  PORT=10000 deployctl start
  deployctl start --preflight`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.preflight, "preflight", false,
		"Fail early if the address is already in use")

	return cmd
}

// runStart executes the run phase. On Unix it only returns when the
// hand-off could not happen.
func runStart(ctx context.Context, out io.Writer, flags *startFlags) error {
	// Step 1: Resolve environment, env file and deploy file.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Step 2: Resolve the port and the command. An invalid PORT fails here,
	// before anything is printed.
	plan, err := cfg.StartPlan()
	if err != nil {
		return err
	}
	VerboseLog("Start plan: %s in %s", plan.Addr(), plan.Dir)

	// Step 3: Announce and hand off.
	seq := sequence.NewStartSequencer()
	seq.Out = out
	seq.Preflight = flags.preflight
	return seq.Run(ctx, plan)
}
