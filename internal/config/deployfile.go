package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/deployctl/internal/model"
	"github.com/shinji-kodama/deployctl/internal/port"
)

// deployFileNames lists the deploy file names searched in a working
// directory, in priority order.
var deployFileNames = []string{
	"deploy.yaml",
	"deploy.yml",
	"deploy.jsonc",
	"deploy.json",
}

// DeployFile is the optional per-project file that overrides the default
// build steps and start command. YAML and JSONC (JSON with comments)
// encodings share the same field names.
type DeployFile struct {
	// Name identifies the project in rehearsal labels and plan output.
	Name string `yaml:"name" json:"name"`

	// Manifest is the dependency manifest path, relative to the working dir.
	Manifest string `yaml:"manifest,omitempty" json:"manifest,omitempty"`

	// Build replaces the default build steps when non-empty.
	Build []StepSpec `yaml:"build,omitempty" json:"build,omitempty"`

	// Start overrides the hand-off command and default port.
	Start *StartSpec `yaml:"start,omitempty" json:"start,omitempty"`

	// Env extends the pass-through catalog shown by `deployctl env`.
	Env []model.EnvVar `yaml:"env,omitempty" json:"env,omitempty"`

	// Rehearse configures local container rehearsals.
	Rehearse *RehearseSpec `yaml:"rehearse,omitempty" json:"rehearse,omitempty"`
}

// StepSpec is one build step as written in the deploy file.
// Run is a shell-like command line; it is split into argv with shell
// quoting rules but never executed through a shell.
type StepSpec struct {
	Name string `yaml:"name" json:"name"`
	Run  string `yaml:"run" json:"run"`
}

// StartSpec is the start section of the deploy file.
type StartSpec struct {
	// Run is the hand-off command line. It may contain {host} and {port}.
	Run string `yaml:"run,omitempty" json:"run,omitempty"`

	// DefaultPort replaces the built-in default when PORT is unset.
	DefaultPort int `yaml:"defaultPort,omitempty" json:"defaultPort,omitempty"`
}

// RehearseSpec is the rehearse section of the deploy file.
type RehearseSpec struct {
	// Image is the base container image.
	Image string `yaml:"image,omitempty" json:"image,omitempty"`
}

// FindDeployFile searches dir for a deploy file in priority order.
// It returns an empty path and no error when none exists: the deploy file
// is optional and defaults apply.
func FindDeployFile(dir string) (string, error) {
	for _, name := range deployFileNames {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	return "", nil
}

// LoadDeployFile reads and validates a deploy file. The decoder is chosen
// from the extension: .yaml/.yml use yaml.v3, .json/.jsonc are stripped of
// comments and trailing commas with tidwall/jsonc and then decoded with
// encoding/json.
//
// Every failure is a CLIError with ExitConfigInvalid.
func LoadDeployFile(path string) (*DeployFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.WrapCLIError(
				model.ExitConfigInvalid,
				fmt.Sprintf("deploy file not found: %s", path),
				err,
			)
		}
		return nil, model.WrapCLIError(model.ExitConfigInvalid, "failed to read deploy file", err)
	}

	df, err := decodeDeployFile(path, data)
	if err != nil {
		return nil, model.WrapCLIError(
			model.ExitConfigInvalid,
			fmt.Sprintf("failed to parse deploy file %s", path),
			err,
		)
	}

	if err := df.Validate(); err != nil {
		return nil, model.WrapCLIError(
			model.ExitConfigInvalid,
			fmt.Sprintf("invalid deploy file %s", path),
			err,
		)
	}
	return df, nil
}

func decodeDeployFile(path string, data []byte) (*DeployFile, error) {
	var df DeployFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&df); err != nil {
			// A file with no document (empty or comments only) means no overrides.
			if errors.Is(err, io.EOF) {
				return &df, nil
			}
			return nil, err
		}
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&df); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported deploy file extension %q (valid: .yaml, .yml, .json, .jsonc)", filepath.Ext(path))
	}
	return &df, nil
}

// Validate checks the deploy file for structural errors. Commands are split
// here so quoting mistakes surface at load time rather than at run time.
func (d *DeployFile) Validate() error {
	if len(d.Build) > 0 {
		steps, err := d.BuildSteps()
		if err != nil {
			return err
		}
		if err := model.ValidateSteps(steps); err != nil {
			return err
		}
	}

	if d.Start != nil {
		if d.Start.DefaultPort != 0 && (d.Start.DefaultPort < 1 || d.Start.DefaultPort > port.MaxPort) {
			return fmt.Errorf("start.defaultPort %d out of range (1-%d)", d.Start.DefaultPort, port.MaxPort)
		}
		if d.Start.Run != "" {
			if _, err := SplitCommand(d.Start.Run); err != nil {
				return fmt.Errorf("start.run: %w", err)
			}
		}
	}

	for i, v := range d.Env {
		if strings.TrimSpace(v.Key) == "" {
			return fmt.Errorf("env[%d]: key must not be empty", i)
		}
	}
	return nil
}

// BuildSteps converts the build section into model steps.
func (d *DeployFile) BuildSteps() ([]model.Step, error) {
	steps := make([]model.Step, 0, len(d.Build))
	for i, spec := range d.Build {
		argv, err := SplitCommand(spec.Run)
		if err != nil {
			return nil, fmt.Errorf("build[%d] (%s): %w", i, spec.Name, err)
		}
		steps = append(steps, model.Step{Name: spec.Name, Command: argv})
	}
	return steps, nil
}

// SplitCommand splits a command line into argv using POSIX shell quoting
// rules. Shell operators are not interpreted.
func SplitCommand(line string) ([]string, error) {
	argv, err := shellquote.Split(line)
	if err != nil {
		return nil, fmt.Errorf("cannot split command %q: %w", line, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("command must not be empty")
	}
	return argv, nil
}
