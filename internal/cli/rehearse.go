// Package cli - rehearse.go implements the "deployctl rehearse" command.
//
// The rehearse command replays the platform lifecycle locally: it starts a
// throwaway container from a Python base image with the project mounted
// at /app, runs the build steps and then execs the start command, all
// chained so the first failure stops the container.
//
// Rehearsal containers carry deployctl.* labels, which is how --list finds
// them and --clean removes them. --clean asks for confirmation unless
// --yes is given; declining exits with code 7.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/deployctl/internal/config"
	"github.com/shinji-kodama/deployctl/internal/docker"
	"github.com/shinji-kodama/deployctl/internal/model"
	"github.com/shinji-kodama/deployctl/internal/port"
	"github.com/shinji-kodama/deployctl/internal/sequence"
)

// rehearseFlags holds the flag values for the rehearse command.
type rehearseFlags struct {
	// list shows rehearsal containers instead of starting one.
	list bool

	// clean removes rehearsal containers instead of starting one.
	clean bool

	// all widens --list and --clean from the current project to every project.
	all bool

	// yes skips the --clean confirmation prompt.
	yes bool

	// image overrides the base image.
	image string

	// hostPort overrides the published host port. Zero means the server
	// port, or the next free port when that is busy.
	hostPort int
}

// confirmFunc asks a yes/no question. Tests replace it.
var confirmFunc = surveyConfirm

// NewRehearseCommand creates the "rehearse" command.
func NewRehearseCommand() *cobra.Command {
	flags := &rehearseFlags{}

	cmd := &cobra.Command{
		Use:   "rehearse",
		Short: "Rehearse build and start in a local Docker container",
		Long: `Run the build steps and the start command inside a throwaway container
from a Python base image, with the project mounted at /app and the
server port published on the host.

The container runs the same steps build and start would, chained so the
first failure stops it. Pass-through variables that are set locally are
forwarded by name. Containers are labelled deployctl.* and can be listed
and removed with --list and --clean.

Examples:
  deployctl rehearse
  PORT=10000 deployctl rehearse --image python:3.12-slim
  deployctl rehearse --list --all
  deployctl rehearse --clean --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.list && flags.clean {
				return model.NewCLIError(model.ExitGeneralError, "--list and --clean cannot be combined")
			}
			return runRehearse(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().BoolVar(&flags.list, "list", false, "List rehearsal containers")
	cmd.Flags().BoolVar(&flags.clean, "clean", false, "Remove rehearsal containers")
	cmd.Flags().BoolVar(&flags.all, "all", false, "With --list or --clean, include every project")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "Remove without confirmation")
	cmd.Flags().StringVar(&flags.image, "image", "", "Base image (default: deploy file, DEPLOYCTL_REHEARSE_IMAGE, or python:3.11-slim)")
	cmd.Flags().IntVar(&flags.hostPort, "host-port", 0, "Host port to publish (default: the server port, or the next free one)")

	return cmd
}

func runRehearse(ctx context.Context, out io.Writer, flags *rehearseFlags) error {
	// Step 1: Resolve configuration; the project name scopes the labels.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Step 2: Connect to Docker. An unreachable daemon exits with code 3.
	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := cli.Ping(ctx); err != nil {
		return err
	}
	VerboseLog("Connected to Docker daemon")

	// Step 3: Dispatch to list, clean or start.
	project := cfg.ProjectName()
	if flags.all {
		project = ""
	}

	switch {
	case flags.list:
		rehearsals, err := docker.ListRehearsals(ctx, cli, project)
		if err != nil {
			return err
		}
		return printRehearsals(out, rehearsals)
	case flags.clean:
		return cleanRehearsals(ctx, out, cli, project, flags.yes)
	default:
		return startRehearsal(ctx, out, cli, cfg, flags)
	}
}

// startRehearsal runs a new rehearsal container for the current project,
// replacing an earlier one with the same name.
func startRehearsal(ctx context.Context, out io.Writer, cli *docker.Client, cfg *config.Config, flags *rehearseFlags) error {
	// Step 1: Resolve both plans and check the manifest, as build would.
	build, err := cfg.BuildPlan()
	if err != nil {
		return err
	}
	start, err := cfg.StartPlan()
	if err != nil {
		return err
	}
	if err := sequence.CheckManifest(build.Dir, build.Manifest); err != nil {
		return err
	}

	// Step 2: Choose the host port to publish.
	hostPort, err := pickHostPort(port.NewScanner(), start.Port, flags.hostPort)
	if err != nil {
		return err
	}
	if hostPort != start.Port {
		VerboseLog("Port %d is busy on the host, publishing on %d", start.Port, hostPort)
	}

	// Step 3: Assemble image, labels and the container script.
	image := flags.image
	if image == "" {
		image = cfg.RehearseImage()
	}

	revision := ""
	if rev := describeSource(cfg.Dir); rev != nil {
		revision = rev.String()
	}
	opts := rehearsalRunOptions(cfg, build, start, image, hostPort, revision, time.Now())

	// Step 4: Remove an earlier rehearsal with the same name.
	existing, err := docker.ListRehearsals(ctx, cli, cfg.ProjectName())
	if err != nil {
		return err
	}
	for _, r := range existing {
		if r.ContainerName == opts.Name {
			VerboseLog("Replacing previous rehearsal %s", r.ContainerName)
			if err := docker.RemoveRehearsal(ctx, cli, r.ContainerID); err != nil {
				return err
			}
		}
	}

	// Step 5: Start the container.
	VerboseLog("docker %v", docker.BuildRunArgs(opts))
	id, err := docker.RunRehearsal(ctx, opts, cfg.Environ)
	if err != nil {
		return err
	}

	// Step 6: Output results.
	result := docker.Rehearsal{
		ContainerID:   id,
		ContainerName: opts.Name,
		Image:         image,
		Status:        "running",
		Project:       cfg.ProjectName(),
		Port:          start.Port,
		HostPort:      hostPort,
		Revision:      revision,
	}
	if IsJSONOutput() {
		return printJSON(out, map[string]any{"rehearsal": result, "url": result.URL()})
	}

	fmt.Fprintf(out, "Rehearsal %s started from %s.\n", opts.Name, image)
	fmt.Fprintf(out, "  Server: %s\n", result.URL())
	fmt.Fprintf(out, "  Logs:   docker logs -f %s\n", opts.Name)
	fmt.Fprintf(out, "  Remove: deployctl rehearse --clean\n")
	return nil
}

// pickHostPort returns requested when set, otherwise serverPort when it is
// free on the host, otherwise the next free port above it.
func pickHostPort(scanner *port.Scanner, serverPort, requested int) (int, error) {
	if requested != 0 {
		if _, err := port.Parse(strconv.Itoa(requested)); err != nil {
			return 0, model.WrapCLIError(model.ExitGeneralError, "invalid --host-port", err)
		}
		return requested, nil
	}
	if scanner.IsPortAvailable(serverPort) {
		return serverPort, nil
	}
	if serverPort == port.MaxPort {
		return 0, model.NewCLIError(model.ExitGeneralError,
			fmt.Sprintf("port %d is in use on the host; pass --host-port", serverPort))
	}
	p, err := scanner.FindAvailablePort(serverPort+1, port.MaxPort)
	if err != nil {
		return 0, model.WrapCLIError(model.ExitGeneralError, "no free host port for the rehearsal", err)
	}
	return p, nil
}

// rehearsalRunOptions assembles the container for cfg's build and start
// plans. revision may be empty.
func rehearsalRunOptions(cfg *config.Config, build *model.BuildPlan, start *model.StartPlan, image string, hostPort int, revision string, now time.Time) docker.RunOptions {
	labels := docker.BuildLabels(cfg.ProjectName(), start.Port, hostPort, now)
	if revision != "" {
		labels[docker.LabelRevision] = revision
	}

	return docker.RunOptions{
		Name:        docker.ContainerName(cfg.ProjectName(), start.Port),
		Image:       image,
		Dir:         cfg.Dir,
		Port:        start.Port,
		HostPort:    hostPort,
		ForwardKeys: forwardKeys(cfg),
		Labels:      labels,
		Script:      docker.BuildScript(build.Steps, start.Command),
	}
}

// forwardKeys returns the catalog keys set to a non-empty value.
func forwardKeys(cfg *config.Config) []string {
	var keys []string
	for _, v := range cfg.Catalog() {
		if value, ok := config.LookupEnviron(cfg.Environ, v.Key); ok && value != "" {
			keys = append(keys, v.Key)
		}
	}
	return keys
}

// cleanRehearsals removes the rehearsal containers of project (every
// project when empty) after confirmation.
func cleanRehearsals(ctx context.Context, out io.Writer, cli *docker.Client, project string, yes bool) error {
	rehearsals, err := docker.ListRehearsals(ctx, cli, project)
	if err != nil {
		return err
	}
	if len(rehearsals) == 0 {
		if IsJSONOutput() {
			return printJSON(out, map[string]any{"removed": []string{}})
		}
		fmt.Fprintln(out, "No rehearsal containers found.")
		return nil
	}

	if !yes {
		ok, err := confirmFunc(fmt.Sprintf("Remove %d rehearsal container(s)?", len(rehearsals)))
		if err != nil {
			return err
		}
		if !ok {
			return model.NewCLIError(model.ExitUserCancelled, "operation cancelled by user")
		}
	}

	removed := make([]string, 0, len(rehearsals))
	for _, r := range rehearsals {
		VerboseLog("Removing container %s (%s)", r.ContainerName, shortID(r.ContainerID))
		if err := docker.RemoveRehearsal(ctx, cli, r.ContainerID); err != nil {
			return err
		}
		removed = append(removed, r.ContainerName)
	}

	if IsJSONOutput() {
		return printJSON(out, map[string]any{"removed": removed})
	}
	fmt.Fprintf(out, "Removed %d rehearsal container(s).\n", len(removed))
	return nil
}

// printRehearsals writes rehearsals as a table or, with --json, as an array.
func printRehearsals(w io.Writer, rehearsals []docker.Rehearsal) error {
	if IsJSONOutput() {
		if rehearsals == nil {
			rehearsals = []docker.Rehearsal{}
		}
		return printJSON(w, map[string]any{"rehearsals": rehearsals})
	}

	if len(rehearsals) == 0 {
		fmt.Fprintln(w, "No rehearsal containers found.")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.Header("Container", "Project", "Status", "Port", "URL", "Created")
	for _, r := range rehearsals {
		table.Append(
			r.ContainerName,
			r.Project,
			r.Status,
			strconv.Itoa(r.Port),
			r.URL(),
			r.CreatedAt.Local().Format(time.DateTime),
		)
	}
	table.Render()
	return nil
}

// surveyConfirm prompts on the terminal. Ctrl-C maps to ExitUserCancelled.
func surveyConfirm(message string) (bool, error) {
	var ok bool
	err := survey.AskOne(&survey.Confirm{Message: message, Default: false}, &ok)
	if errors.Is(err, terminal.InterruptErr) {
		return false, model.NewCLIError(model.ExitUserCancelled, "operation cancelled by user")
	}
	if err != nil {
		return false, model.WrapCLIError(model.ExitGeneralError, "failed to read user input", err)
	}
	return ok, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
