package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/deployctl/internal/model"
)

// testdataPath returns the absolute path of a fixture directory.
func testdataPath(t *testing.T, fixture string) string {
	t.Helper()
	p, err := filepath.Abs(filepath.Join("testdata", fixture))
	require.NoError(t, err)
	return p
}

// requireCLICode asserts err is a *model.CLIError with the given code.
func requireCLICode(t *testing.T, err error, code model.ExitCode) {
	t.Helper()
	require.Error(t, err)
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "error should be a *model.CLIError, got %T", err)
	assert.Equal(t, code, cliErr.Code)
}

// --- Settings ---

func TestParseSettings_Defaults(t *testing.T) {
	s, err := ParseSettings(nil)
	require.NoError(t, err)

	assert.Equal(t, "", s.Port, "unset PORT must stay distinguishable from a set one")
	assert.Equal(t, "0.0.0.0", s.Host)
	assert.Equal(t, "python:3.11-slim", s.RehearseImage)
	assert.Equal(t, DefaultPython, s.PythonOrDefault())
	assert.Equal(t, DefaultApp, s.AppOrDefault())
}

func TestParseSettings_FromEnviron(t *testing.T) {
	s, err := ParseSettings([]string{
		"PORT=10000",
		"DEPLOYCTL_HOST=::",
		"DEPLOYCTL_PYTHON=python3.11",
		"DEPLOYCTL_APP=main:app",
		"GROQ_API_KEY=ignored-by-settings",
	})
	require.NoError(t, err)

	assert.Equal(t, "10000", s.Port)
	assert.Equal(t, "::", s.HostOrDefault())
	assert.Equal(t, "python3.11", s.PythonOrDefault())
	assert.Equal(t, "main:app", s.AppOrDefault())
}

// --- Deploy file ---

func TestFindDeployFile_Priority(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deploy.json"), []byte(`{}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deploy.yml"), []byte(`name: x`), 0644))

	found, err := FindDeployFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "deploy.yml"), found)
}

func TestFindDeployFile_None(t *testing.T) {
	found, err := FindDeployFile(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestLoadDeployFile_YAML(t *testing.T) {
	df, err := LoadDeployFile(filepath.Join(testdataPath(t, "yaml-full"), "deploy.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "eduscribe-backend", df.Name)
	assert.Equal(t, "backend/requirements.txt", df.Manifest)
	require.Len(t, df.Build, 2)
	assert.Equal(t, "install-deps", df.Build[1].Name)
	require.NotNil(t, df.Start)
	assert.Equal(t, 9000, df.Start.DefaultPort)
	require.Len(t, df.Env, 2)
	assert.Equal(t, "FRONTEND_URL", df.Env[1].Key)
	require.NotNil(t, df.Rehearse)
	assert.Equal(t, "python:3.12-slim", df.Rehearse.Image)
}

func TestLoadDeployFile_JSONC(t *testing.T) {
	df, err := LoadDeployFile(filepath.Join(testdataPath(t, "jsonc-full"), "deploy.jsonc"))
	require.NoError(t, err, "comments and trailing commas must be accepted")

	steps, err := df.BuildSteps()
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, []string{"pip", "install", "-r", "requirements dev.txt"}, steps[0].Command)
}

func TestLoadDeployFile_NotFound(t *testing.T) {
	_, err := LoadDeployFile(filepath.Join(t.TempDir(), "deploy.yaml"))
	requireCLICode(t, err, model.ExitConfigInvalid)
	assert.Contains(t, err.Error(), "deploy file not found")
}

func TestLoadDeployFile_UnterminatedQuote(t *testing.T) {
	_, err := LoadDeployFile(filepath.Join(testdataPath(t, "invalid-step"), "deploy.yaml"))
	requireCLICode(t, err, model.ExitConfigInvalid)
	assert.Contains(t, err.Error(), "cannot split command")
}

func TestLoadDeployFile_UnknownField(t *testing.T) {
	_, err := LoadDeployFile(filepath.Join(testdataPath(t, "unknown-field"), "deploy.yaml"))
	requireCLICode(t, err, model.ExitConfigInvalid)
	assert.Contains(t, err.Error(), "startCommand")
}

func TestLoadDeployFile_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("\n# nothing\n"), 0644))

	df, err := LoadDeployFile(path)
	require.NoError(t, err)
	assert.Empty(t, df.Build)
	assert.Nil(t, df.Start)
}

func TestLoadDeployFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.toml")
	require.NoError(t, os.WriteFile(path, []byte("name = 'x'"), 0644))

	_, err := LoadDeployFile(path)
	requireCLICode(t, err, model.ExitConfigInvalid)
}

func TestDeployFile_Validate(t *testing.T) {
	tests := []struct {
		name    string
		file    DeployFile
		wantErr string
	}{
		{"empty is valid", DeployFile{}, ""},
		{"duplicate steps", DeployFile{Build: []StepSpec{{Name: "a", Run: "true"}, {Name: "a", Run: "true"}}}, "duplicate step name"},
		{"unnamed step", DeployFile{Build: []StepSpec{{Run: "true"}}}, "name must not be empty"},
		{"empty run", DeployFile{Build: []StepSpec{{Name: "a", Run: "  "}}}, "command must not be empty"},
		{"port out of range", DeployFile{Start: &StartSpec{DefaultPort: 70000}}, "out of range"},
		{"bad start quote", DeployFile{Start: &StartSpec{Run: "python 'main.py"}}, "start.run"},
		{"blank env key", DeployFile{Env: []model.EnvVar{{Key: ""}}}, "key must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.file.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// --- Env file ---

func TestReadEnvFile(t *testing.T) {
	values, err := ReadEnvFile(filepath.Join(testdataPath(t, "dotenv"), ".env"))
	require.NoError(t, err)

	assert.Equal(t, "mongodb://localhost:27017/eduscribe", values["MONGODB_URI"])
	assert.Equal(t, "gsk_local", values["GROQ_API_KEY"])
	assert.Equal(t, "9100", values["PORT"])
}

func TestReadEnvFile_Missing(t *testing.T) {
	_, err := ReadEnvFile(filepath.Join(t.TempDir(), ".env"))
	assert.Error(t, err)
}

func TestMergeEnviron_PlatformWins(t *testing.T) {
	base := []string{"PATH=/usr/bin", "PORT=10000"}
	merged := MergeEnviron(base, map[string]string{
		"PORT":         "9100",
		"GROQ_API_KEY": "k",
		"A_FIRST":      "1",
	})

	assert.Equal(t, []string{"PATH=/usr/bin", "PORT=10000", "A_FIRST=1", "GROQ_API_KEY=k"}, merged)
	assert.Equal(t, []string{"PATH=/usr/bin", "PORT=10000"}, base, "base must not be modified")
}

func TestLookupAndSetEnviron(t *testing.T) {
	environ := []string{"PORT=1", "PORTAL=x", "PORT=2"}

	v, ok := LookupEnviron(environ, "PORT")
	assert.True(t, ok)
	assert.Equal(t, "2", v, "last entry wins")

	_, ok = LookupEnviron(environ, "MISSING")
	assert.False(t, ok)

	assert.Equal(t, []string{"PORTAL=x", "PORT=8001"}, SetEnviron(environ, "PORT", "8001"))
}

// --- Catalog ---

func TestMergeCatalog(t *testing.T) {
	merged := MergeCatalog(DefaultCatalog(), []model.EnvVar{
		{Key: "GROQ_API_KEY", Description: "Groq key", Secret: false},
		{Key: "FRONTEND_URL"},
	})

	byKey := make(map[string]model.EnvVar)
	for _, v := range merged {
		byKey[v.Key] = v
	}

	assert.True(t, byKey["GROQ_API_KEY"].Secret, "a built-in secret stays secret")
	assert.Equal(t, "Groq key", byKey["GROQ_API_KEY"].Description)
	assert.Contains(t, byKey, "FRONTEND_URL")
	assert.Len(t, merged, len(DefaultCatalog())+1)

	for i := 1; i < len(merged); i++ {
		assert.Less(t, merged[i-1].Key, merged[i].Key, "catalog must be sorted by key")
	}
}

// --- Plans ---

func TestLoad_DefaultsWithoutDeployFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(LoadOptions{Dir: dir, Environ: []string{"PATH=/usr/bin"}})
	require.NoError(t, err)
	assert.Empty(t, cfg.DeployFilePath)
	assert.Equal(t, filepath.Base(dir), cfg.ProjectName())

	build, err := cfg.BuildPlan()
	require.NoError(t, err)
	assert.Equal(t, "requirements.txt", build.Manifest)
	require.Len(t, build.Steps, 2)
	assert.Equal(t, []string{"python", "-m", "pip", "install", "--upgrade", "pip"}, build.Steps[0].Command)
	assert.Equal(t, []string{"python", "-m", "pip", "install", "-r", "requirements.txt"}, build.Steps[1].Command)
}

// TestStartPlan_NoEnvironment verifies that with no environment at all the
// target is told to bind 0.0.0.0:8001.
func TestStartPlan_NoEnvironment(t *testing.T) {
	cfg, err := Load(LoadOptions{Dir: t.TempDir()})
	require.NoError(t, err)

	plan, err := cfg.StartPlan()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8001", plan.Addr())
	assert.Equal(t,
		[]string{"python", "-m", "uvicorn", "optimized_main:app", "--host", "0.0.0.0", "--port", "8001"},
		plan.Command)
	assert.Contains(t, plan.Env, "PORT=8001", "resolved PORT is exported to the target")
}

func TestStartPlan_PortFromEnvironment(t *testing.T) {
	cfg, err := Load(LoadOptions{Dir: t.TempDir(), Environ: []string{"PORT=10000", "GROQ_API_KEY=k"}})
	require.NoError(t, err)

	plan, err := cfg.StartPlan()
	require.NoError(t, err)
	assert.Equal(t, 10000, plan.Port)
	assert.Equal(t, "10000", plan.Command[len(plan.Command)-1])
	assert.Equal(t, []string{"PORT=10000", "GROQ_API_KEY=k"}, plan.Env, "environment passes through unchanged")
}

func TestStartPlan_InvalidPort(t *testing.T) {
	cfg, err := Load(LoadOptions{Dir: t.TempDir(), Environ: []string{"PORT=http"}})
	require.NoError(t, err)

	_, err = cfg.StartPlan()
	requireCLICode(t, err, model.ExitGeneralError)
	assert.Contains(t, err.Error(), "invalid PORT")
}

func TestLoad_YAMLDeployFile(t *testing.T) {
	cfg, err := Load(LoadOptions{Dir: testdataPath(t, "yaml-full"), Environ: []string{"DEPLOYCTL_PYTHON=python3"}})
	require.NoError(t, err)
	assert.Equal(t, "eduscribe-backend", cfg.ProjectName())
	assert.Equal(t, "python:3.12-slim", cfg.RehearseImage())

	build, err := cfg.BuildPlan()
	require.NoError(t, err)
	assert.Equal(t, "backend/requirements.txt", build.Manifest)
	assert.Equal(t,
		[]string{"python3", "-m", "pip", "install", "--no-cache-dir", "-r", "backend/requirements.txt"},
		build.Steps[1].Command)

	start, err := cfg.StartPlan()
	require.NoError(t, err)
	assert.Equal(t, 9000, start.Port, "deploy file default port applies when PORT is unset")
	assert.Equal(t,
		[]string{"python3", "-m", "uvicorn", "optimized_main:app", "--host", "0.0.0.0", "--port", "9000", "--log-level", "info"},
		start.Command)
}

func TestLoad_ManifestPrecedence(t *testing.T) {
	cfg, err := Load(LoadOptions{
		Dir:     testdataPath(t, "yaml-full"),
		Environ: []string{"DEPLOYCTL_MANIFEST=requirements-prod.txt"},
	})
	require.NoError(t, err)
	assert.Equal(t, "requirements-prod.txt", cfg.Manifest())
}

func TestLoad_RehearseImageEnvWins(t *testing.T) {
	cfg, err := Load(LoadOptions{
		Dir:     testdataPath(t, "yaml-full"),
		Environ: []string{"DEPLOYCTL_REHEARSE_IMAGE=python:3.10"},
	})
	require.NoError(t, err)
	assert.Equal(t, "python:3.10", cfg.RehearseImage())
}

func TestLoad_ExplicitDeployFileMissing(t *testing.T) {
	_, err := Load(LoadOptions{Dir: t.TempDir(), DeployFile: "nope.yaml"})
	requireCLICode(t, err, model.ExitConfigInvalid)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := testdataPath(t, "dotenv")

	cfg, err := Load(LoadOptions{Dir: dir, EnvFile: ".env", Environ: []string{"GROQ_API_KEY=from-platform"}})
	require.NoError(t, err)

	v, _ := LookupEnviron(cfg.Environ, "GROQ_API_KEY")
	assert.Equal(t, "from-platform", v, "platform value wins over the env file")

	start, err := cfg.StartPlan()
	require.NoError(t, err)
	assert.Equal(t, 9100, start.Port, "PORT from the env file applies when the platform set none")
}

func TestExpand(t *testing.T) {
	out := Expand(
		[]string{"--bind", "{host}:{port}", "{unknown}"},
		map[string]string{"host": "0.0.0.0", "port": "8001"},
	)
	assert.Equal(t, []string{"--bind", "0.0.0.0:8001", "{unknown}"}, out)
}
