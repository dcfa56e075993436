package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shinji-kodama/deployctl/internal/model"
	"github.com/shinji-kodama/deployctl/internal/port"
)

// LoadOptions selects where configuration comes from.
type LoadOptions struct {
	// Dir is the project working directory. Empty means the current directory.
	Dir string

	// DeployFile is an explicit deploy file path. When empty, Dir is searched
	// and a missing file is not an error.
	DeployFile string

	// EnvFile is an optional dotenv file merged under the process environment.
	EnvFile string

	// Environ is the process environment (KEY=VALUE). Callers normally pass
	// os.Environ().
	Environ []string
}

// Config is the resolved configuration of one deployctl invocation.
type Config struct {
	// Dir is the absolute working directory.
	Dir string

	// DeployFilePath is the deploy file in use, or empty.
	DeployFilePath string

	// Deploy is the parsed deploy file. Never nil; empty when no file exists.
	Deploy *DeployFile

	// Settings are the values deployctl reads from Environ.
	Settings *Settings

	// Environ is the process environment with the env file merged in.
	Environ []string
}

// Load resolves the working directory, environment and deploy file.
func Load(opts LoadOptions) (*Config, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory %q: %w", dir, err)
	}

	environ := opts.Environ
	if opts.EnvFile != "" {
		values, err := ReadEnvFile(resolvePath(absDir, opts.EnvFile))
		if err != nil {
			return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid env file", err)
		}
		environ = MergeEnviron(environ, values)
	}

	settings, err := ParseSettings(environ)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid environment", err)
	}

	deployPath := ""
	if opts.DeployFile != "" {
		deployPath = resolvePath(absDir, opts.DeployFile)
	} else {
		deployPath, err = FindDeployFile(absDir)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitConfigInvalid, "failed to search for deploy file", err)
		}
	}

	deploy := &DeployFile{}
	if deployPath != "" {
		deploy, err = LoadDeployFile(deployPath)
		if err != nil {
			return nil, err
		}
	}

	return &Config{
		Dir:            absDir,
		DeployFilePath: deployPath,
		Deploy:         deploy,
		Settings:       settings,
		Environ:        environ,
	}, nil
}

// ProjectName returns the deploy file name, or the directory base name.
func (c *Config) ProjectName() string {
	if c.Deploy.Name != "" {
		return c.Deploy.Name
	}
	return filepath.Base(c.Dir)
}

// Manifest returns the dependency manifest path relative to Dir.
// Precedence: DEPLOYCTL_MANIFEST, deploy file, DefaultManifest.
func (c *Config) Manifest() string {
	switch {
	case c.Settings.Manifest != "":
		return c.Settings.Manifest
	case c.Deploy.Manifest != "":
		return c.Deploy.Manifest
	default:
		return DefaultManifest
	}
}

// DefaultPort returns the port used when PORT is unset.
func (c *Config) DefaultPort() int {
	if c.Deploy.Start != nil && c.Deploy.Start.DefaultPort != 0 {
		return c.Deploy.Start.DefaultPort
	}
	return DefaultPort
}

// Catalog returns the pass-through catalog extended by the deploy file.
func (c *Config) Catalog() []model.EnvVar {
	return MergeCatalog(DefaultCatalog(), c.Deploy.Env)
}

// RehearseImage returns the base image for rehearsals. The deploy file
// wins over DEPLOYCTL_REHEARSE_IMAGE's default.
func (c *Config) RehearseImage() string {
	if c.Deploy.Rehearse != nil && c.Deploy.Rehearse.Image != "" {
		if _, set := LookupEnviron(c.Environ, "DEPLOYCTL_REHEARSE_IMAGE"); !set {
			return c.Deploy.Rehearse.Image
		}
	}
	return c.Settings.RehearseImage
}

// DefaultBuildSteps returns the package-manager upgrade followed by the
// manifest install.
func DefaultBuildSteps(python, manifest string) []model.Step {
	return []model.Step{
		{
			Name:    "upgrade-pip",
			Command: []string{python, "-m", "pip", "install", "--upgrade", "pip"},
		},
		{
			Name:    "install-deps",
			Command: []string{python, "-m", "pip", "install", "-r", manifest},
		},
	}
}

// DefaultStartCommand returns the uvicorn invocation with {host} and
// {port} placeholders left for substitution.
func DefaultStartCommand(python, app string) []string {
	return []string{python, "-m", "uvicorn", app, "--host", "{host}", "--port", "{port}"}
}

// BuildPlan resolves the build sequencer input.
func (c *Config) BuildPlan() (*model.BuildPlan, error) {
	manifest := c.Manifest()
	python := c.Settings.PythonOrDefault()

	steps := DefaultBuildSteps(python, manifest)
	if len(c.Deploy.Build) > 0 {
		var err error
		steps, err = c.Deploy.BuildSteps()
		if err != nil {
			return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid build steps", err)
		}
	}

	vars := map[string]string{
		"python":   python,
		"manifest": manifest,
	}
	for i := range steps {
		steps[i].Command = Expand(steps[i].Command, vars)
	}

	return &model.BuildPlan{
		Dir:      c.Dir,
		Manifest: manifest,
		Steps:    steps,
		Env:      c.Environ,
	}, nil
}

// StartPlan resolves the start sequencer input. PORT is resolved with the
// configured default; a set but invalid PORT is an error with
// ExitGeneralError. When PORT was unset, the resolved value is added to the
// target's environment so the server and deployctl agree on the port.
func (c *Config) StartPlan() (*model.StartPlan, error) {
	p, err := port.Resolve(c.Settings.Port, c.DefaultPort())
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid PORT", err)
	}

	python := c.Settings.PythonOrDefault()
	host := c.Settings.HostOrDefault()

	command := DefaultStartCommand(python, c.Settings.AppOrDefault())
	if c.Deploy.Start != nil && c.Deploy.Start.Run != "" {
		command, err = SplitCommand(c.Deploy.Start.Run)
		if err != nil {
			return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid start command", err)
		}
	}

	command = Expand(command, map[string]string{
		"python": python,
		"host":   host,
		"port":   strconv.Itoa(p),
	})

	environ := c.Environ
	if _, set := LookupEnviron(environ, "PORT"); !set || strings.TrimSpace(c.Settings.Port) == "" {
		environ = SetEnviron(environ, "PORT", strconv.Itoa(p))
	}

	plan := &model.StartPlan{
		Dir:     c.Dir,
		Host:    host,
		Port:    p,
		Command: command,
		Env:     environ,
	}
	if err := plan.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid start plan", err)
	}
	return plan, nil
}

// Expand replaces {name} placeholders in every argument. Unknown
// placeholders are left untouched.
func Expand(args []string, vars map[string]string) []string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)

	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
