package docker

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/kballard/go-shellquote"

	"github.com/shinji-kodama/deployctl/internal/model"
)

// AppDir is where the project directory is mounted inside the container.
const AppDir = "/app"

// ListRehearsals returns rehearsal containers, including stopped ones,
// sorted newest first. An empty project lists every project.
//
// Containers whose labels cannot be parsed are skipped.
func ListRehearsals(ctx context.Context, cli *Client, project string) ([]Rehearsal, error) {
	args := filters.NewArgs()
	for _, f := range FilterLabels(project) {
		args.Add("label", f)
	}

	summaries, err := cli.API().ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: args,
	})
	if err != nil {
		return nil, model.WrapCLIError(model.ExitDockerNotRunning, "failed to list Docker containers", err)
	}

	result := make([]Rehearsal, 0, len(summaries))
	for _, s := range summaries {
		r, err := summaryToRehearsal(s)
		if err != nil {
			continue
		}
		result = append(result, *r)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// summaryToRehearsal maps a daemon container summary to a Rehearsal.
func summaryToRehearsal(s container.Summary) (*Rehearsal, error) {
	r, err := ParseLabels(s.Labels)
	if err != nil {
		return nil, err
	}

	r.ContainerID = s.ID
	if len(s.Names) > 0 {
		// The API reports names with a leading "/".
		r.ContainerName = strings.TrimPrefix(s.Names[0], "/")
	}
	r.Image = s.Image
	r.Status = string(s.State)
	return r, nil
}

// RemoveRehearsal force-removes a rehearsal container, stopping it first
// if it is running.
func RemoveRehearsal(ctx context.Context, cli *Client, containerID string) error {
	err := cli.API().ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
	if err != nil {
		return model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("failed to remove container %q", containerID),
			err,
		)
	}
	return nil
}

// RunOptions describes one rehearsal container.
type RunOptions struct {
	// Name is the container name.
	Name string

	// Image is the base image, e.g. "python:3.11-slim".
	Image string

	// Dir is the host project directory mounted at AppDir.
	Dir string

	// Port is the server port inside the container. PORT is set to it.
	Port int

	// HostPort is the published host port. Zero means Port.
	HostPort int

	// ForwardKeys are environment variables copied by name from the
	// docker CLI's own environment into the container.
	ForwardKeys []string

	// Labels are applied to the container.
	Labels map[string]string

	// Script is the shell script run with "sh -c".
	Script string
}

// BuildRunArgs returns the docker CLI arguments for a detached rehearsal
// container. Labels and forwarded keys are emitted in sorted order.
//
// Forwarded keys use the "-e KEY" form, so their values come from the
// environment of the docker process and never appear on its command line.
func BuildRunArgs(opts RunOptions) []string {
	hostPort := opts.HostPort
	if hostPort == 0 {
		hostPort = opts.Port
	}

	args := []string{
		"run", "-d",
		"--name", opts.Name,
		"-v", opts.Dir + ":" + AppDir,
		"-w", AppDir,
		"-p", fmt.Sprintf("%d:%d", hostPort, opts.Port),
		"-e", "PORT=" + strconv.Itoa(opts.Port),
	}

	keys := append([]string(nil), opts.ForwardKeys...)
	sort.Strings(keys)
	for _, k := range keys {
		if k == "PORT" {
			continue
		}
		args = append(args, "-e", k)
	}

	labelKeys := make([]string, 0, len(opts.Labels))
	for k := range opts.Labels {
		labelKeys = append(labelKeys, k)
	}
	sort.Strings(labelKeys)
	for _, k := range labelKeys {
		args = append(args, "--label", k+"="+opts.Labels[k])
	}

	return append(args, opts.Image, "sh", "-c", opts.Script)
}

// BuildScript chains the build steps and the start command into one
// POSIX shell script. Steps are joined with "&&" so the first failure
// stops the container with that step's status, and the start command is
// exec'd so the server becomes the container's main process.
func BuildScript(steps []model.Step, start []string) string {
	parts := make([]string, 0, len(steps)+1)
	for _, step := range steps {
		parts = append(parts, shellquote.Join(step.Command...))
	}
	parts = append(parts, "exec "+shellquote.Join(start...))
	return strings.Join(parts, " && ")
}

// RunRehearsal starts the container with "docker run -d" and returns its
// ID. environ is the docker process environment and must hold the values
// of opts.ForwardKeys.
func RunRehearsal(ctx context.Context, opts RunOptions, environ []string) (string, error) {
	cmd := exec.CommandContext(ctx, "docker", BuildRunArgs(opts)...)
	cmd.Env = environ

	output, err := cmd.Output()
	if err != nil {
		detail := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			detail = strings.TrimSpace(string(exitErr.Stderr))
		}
		return "", model.WrapCLIError(
			model.ExitDockerNotRunning,
			fmt.Sprintf("docker run failed for container %q: %s", opts.Name, detail),
			err,
		)
	}
	return strings.TrimSpace(string(output)), nil
}
