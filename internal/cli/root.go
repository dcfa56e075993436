// Package cli implements the cobra commands of deployctl.
//
// build and start are what a hosting platform's build and start hooks
// invoke; plan, env and rehearse help an operator check the same
// behavior before deploying. Each command lives in its own file. This
// file defines the root command, the global flags, and exit-code handling.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/deployctl/internal/config"
	"github.com/shinji-kodama/deployctl/internal/model"
)

// Global flags, bound to the root command's persistent flags.
var (
	// jsonOutput switches command output and errors to JSON.
	jsonOutput bool

	// verbose enables "[verbose]" trace lines on stderr.
	verbose bool

	// workDir is the project directory. Empty means the current directory.
	workDir string

	// deployFile is an explicit deploy file, relative to workDir.
	deployFile string

	// envFile is an optional dotenv file, relative to workDir.
	envFile string
)

// Build information, injected from main via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// NewRootCommand creates the deployctl root command with all subcommands.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "deployctl",
		Short: "Build and start a Python web service the way a hosting platform does",
		Long: `deployctl is the build and start hook for a Python web backend on a
managed hosting platform.

  deployctl build   upgrades pip and installs requirements.txt
  deployctl start   binds 0.0.0.0:$PORT (default 8001) and execs the server

Any failing tool's exit status becomes deployctl's own, so the platform
sees exactly what pip or the server reported.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	pf.StringVarP(&workDir, "dir", "C", "", "Project directory (default: current directory)")
	pf.StringVarP(&deployFile, "file", "f", "", "Deploy file (default: deploy.yaml, deploy.yml, deploy.jsonc or deploy.json in --dir)")
	pf.StringVar(&envFile, "env-file", "", "Dotenv file whose keys fill in variables the environment leaves unset")

	rootCmd.AddCommand(NewBuildCommand())
	rootCmd.AddCommand(NewStartCommand())
	rootCmd.AddCommand(NewPlanCommand())
	rootCmd.AddCommand(NewEnvCommand())
	rootCmd.AddCommand(NewRehearseCommand())

	return rootCmd
}

// Execute runs rootCmd and exits the process with the resulting code.
//
// A *model.CLIError anywhere in the chain supplies the exit code, which
// for a failed build step or server is that tool's own status. Any other
// error exits with ExitGeneralError. SIGINT and SIGTERM cancel the
// command context.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}
	os.Exit(int(reportError(os.Stderr, err)))
}

// reportError prints err to w and returns the exit code for it.
//
// A quiet CLIError (a build step or server that exited non-zero) has
// already written its own diagnostics, so only the --verbose trace is
// printed for it.
func reportError(w io.Writer, err error) model.ExitCode {
	var cliErr *model.CLIError
	if errors.As(err, &cliErr) {
		if cliErr.Quiet {
			VerboseLog("%v", err)
			return cliErr.Code
		}
		printError(w, cliErr.Message, cliErr.Err)
		return cliErr.Code
	}
	printError(w, err.Error(), nil)
	return model.ExitGeneralError
}

// printError writes an error as "Error: ..." text or, with --json, as
// {"error": {"message", "detail"}}.
func printError(w io.Writer, message string, underlying error) {
	if jsonOutput {
		errObj := map[string]string{"message": message}
		if underlying != nil {
			errObj["detail"] = underlying.Error()
		}
		data, _ := json.MarshalIndent(map[string]any{"error": errObj}, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		fmt.Fprintf(w, "Error: %s\n", message)
	}
}

// VerboseLog prints a "[verbose]" line to stderr when --verbose is set.
func VerboseLog(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, "[verbose] "+format+"\n", args...)
	}
}

// IsJSONOutput reports whether --json is set.
func IsJSONOutput() bool {
	return jsonOutput
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// loadConfig resolves configuration from the global flags and the
// process environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		Dir:        workDir,
		DeployFile: deployFile,
		EnvFile:    envFile,
		Environ:    os.Environ(),
	})
	if err != nil {
		return nil, err
	}

	if cfg.DeployFilePath != "" {
		VerboseLog("Using deploy file %s", cfg.DeployFilePath)
	} else {
		VerboseLog("No deploy file in %s, using defaults", cfg.Dir)
	}
	return cfg, nil
}
