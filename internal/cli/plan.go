// Package cli - plan.go implements the "deployctl plan" command.
//
// The plan command resolves configuration exactly as build and start do
// and prints the result without running anything: the build steps as a
// table, then the bind address and the hand-off command line. The current
// Git revision of the project is included when there is one.
package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/deployctl/internal/config"
	"github.com/shinji-kodama/deployctl/internal/model"
	"github.com/shinji-kodama/deployctl/internal/source"
)

// planFlags holds the flag values for the plan command.
type planFlags struct {
	// phase limits the output to one lifecycle phase ("build" or "run").
	// Empty shows both.
	phase string
}

// NewPlanCommand creates the "plan" command.
func NewPlanCommand() *cobra.Command {
	flags := &planFlags{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what build and start would run",
		Long: `Resolve the environment and deploy file and print the build steps and
the start command exactly as build and start would run them. Nothing is
executed.

With --phase only one phase is resolved, so "--phase build" works even
when PORT is invalid.

Examples:
  deployctl plan
  deployctl plan --phase run
  PORT=10000 deployctl plan --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.phase, "phase", "",
		"Show only one phase: build or run")

	return cmd
}

func runPlan(out io.Writer, flags *planFlags) error {
	// Step 1: Validate --phase before touching any configuration.
	var phases []model.Phase
	if flags.phase != "" {
		phase, err := model.ParsePhase(flags.phase)
		if err != nil {
			return model.WrapCLIError(model.ExitGeneralError, "invalid --phase", err)
		}
		phases = []model.Phase{phase}
	}

	// Step 2: Resolve environment, env file and deploy file.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Step 3: Build the requested plans and print them.
	result, err := resolvePlan(cfg, phases...)
	if err != nil {
		return err
	}
	if IsJSONOutput() {
		return printJSON(out, result)
	}
	printPlanText(out, result)
	return nil
}

// planJSON is the plan command's output.
type planJSON struct {
	Project    string           `json:"project"`
	Dir        string           `json:"dir"`
	DeployFile string           `json:"deployFile,omitempty"`
	Revision   *source.Revision `json:"revision,omitempty"`
	Manifest   string           `json:"manifest,omitempty"`
	Build      []planStep       `json:"build,omitempty"`
	Start      *planStartJSON   `json:"start,omitempty"`
}

type planStep struct {
	Name        string   `json:"name"`
	Command     []string `json:"command"`
	CommandLine string   `json:"commandLine"`
}

type planStartJSON struct {
	Addr        string   `json:"addr"`
	Host        string   `json:"host"`
	Port        int      `json:"port"`
	Command     []string `json:"command"`
	CommandLine string   `json:"commandLine"`
}

// resolvePlan builds the plans of the given phases from cfg. No phases
// means both.
func resolvePlan(cfg *config.Config, phases ...model.Phase) (*planJSON, error) {
	if len(phases) == 0 {
		phases = []model.Phase{model.PhaseBuild, model.PhaseRun}
	}

	result := &planJSON{
		Project:    cfg.ProjectName(),
		Dir:        cfg.Dir,
		DeployFile: cfg.DeployFilePath,
		Revision:   describeSource(cfg.Dir),
	}

	for _, phase := range phases {
		switch phase {
		case model.PhaseBuild:
			build, err := cfg.BuildPlan()
			if err != nil {
				return nil, err
			}
			result.Manifest = build.Manifest
			result.Build = make([]planStep, 0, len(build.Steps))
			for _, step := range build.Steps {
				result.Build = append(result.Build, planStep{
					Name:        step.Name,
					Command:     step.Command,
					CommandLine: step.String(),
				})
			}

		case model.PhaseRun:
			start, err := cfg.StartPlan()
			if err != nil {
				return nil, err
			}
			result.Start = &planStartJSON{
				Addr:        start.Addr(),
				Host:        start.Host,
				Port:        start.Port,
				Command:     start.Command,
				CommandLine: start.CommandLine(),
			}
		}
	}
	return result, nil
}

func printPlanText(w io.Writer, p *planJSON) {
	deploy := p.DeployFile
	if deploy == "" {
		deploy = "(none, using defaults)"
	}

	fmt.Fprintf(w, "Project:     %s\n", p.Project)
	fmt.Fprintf(w, "Directory:   %s\n", p.Dir)
	fmt.Fprintf(w, "Deploy file: %s\n", deploy)
	if p.Revision != nil {
		fmt.Fprintf(w, "Revision:    %s\n", p.Revision)
	}

	if p.Build != nil {
		fmt.Fprintf(w, "Manifest:    %s\n", p.Manifest)
		fmt.Fprintf(w, "\n%s phase:\n", model.PhaseBuild)
		table := tablewriter.NewWriter(w)
		table.Header("#", "Step", "Command")
		for i, step := range p.Build {
			table.Append(strconv.Itoa(i+1), step.Name, step.CommandLine)
		}
		table.Render()
	}

	if p.Start != nil {
		fmt.Fprintf(w, "\n%s phase:\n", model.PhaseRun)
		fmt.Fprintf(w, "  Starting server on %s\n", p.Start.Addr)
		fmt.Fprintf(w, "  Exec: %s\n", p.Start.CommandLine)
	}
}

// describeSource returns the Git revision of dir, or nil when there is
// none. Errors are only logged: the revision is informational.
func describeSource(dir string) *source.Revision {
	rev, err := source.Describe(dir)
	if err != nil {
		VerboseLog("Could not read source revision: %v", err)
		return nil
	}
	return rev
}
