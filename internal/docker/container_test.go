package docker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/deployctl/internal/model"
)

// fakeAPI implements the SDK calls the package makes. Any other method
// panics through the nil embedded interface.
type fakeAPI struct {
	client.APIClient

	pingErr    error
	summaries  []container.Summary
	listErr    error
	listOpts   container.ListOptions
	removed    []string
	removeOpts container.RemoveOptions
	removeErr  error
}

func (f *fakeAPI) Ping(context.Context) (types.Ping, error) {
	return types.Ping{}, f.pingErr
}

func (f *fakeAPI) ContainerList(_ context.Context, opts container.ListOptions) ([]container.Summary, error) {
	f.listOpts = opts
	return f.summaries, f.listErr
}

func (f *fakeAPI) ContainerRemove(_ context.Context, id string, opts container.RemoveOptions) error {
	f.removed = append(f.removed, id)
	f.removeOpts = opts
	return f.removeErr
}

func (f *fakeAPI) Close() error { return nil }

func cliErrCode(t *testing.T, err error) model.ExitCode {
	t.Helper()
	var cliErr *model.CLIError
	require.True(t, errors.As(err, &cliErr), "expected *model.CLIError, got %T", err)
	return cliErr.Code
}

func summary(id, name, project string, port int, created time.Time) container.Summary {
	return container.Summary{
		ID:     id,
		Names:  []string{"/" + name},
		Image:  "python:3.11-slim",
		State:  "running",
		Labels: BuildLabels(project, port, port, created),
	}
}

func TestPing(t *testing.T) {
	assert.NoError(t, NewClientFromAPI(&fakeAPI{}).Ping(context.Background()))

	err := NewClientFromAPI(&fakeAPI{pingErr: errors.New("connection refused")}).Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, model.ExitDockerNotRunning, cliErrCode(t, err))
}

func TestListRehearsals(t *testing.T) {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)

	broken := summary("ccc", "deployctl-x-1", "x", 1, older)
	broken.Labels[LabelPort] = "not-a-port"

	api := &fakeAPI{summaries: []container.Summary{
		summary("aaa", "deployctl-api-8001", "api", 8001, older),
		broken,
		summary("bbb", "deployctl-api-8002", "api", 8002, newer),
	}}

	got, err := ListRehearsals(context.Background(), NewClientFromAPI(api), "api")
	require.NoError(t, err)

	assert.True(t, api.listOpts.All, "stopped rehearsals must be listed too")
	assert.ElementsMatch(t,
		[]string{"deployctl.managed-by=deployctl", "deployctl.project=api"},
		api.listOpts.Filters.Get("label"))

	require.Len(t, got, 2, "unparseable containers are skipped")
	assert.Equal(t, "bbb", got[0].ContainerID, "newest first")
	assert.Equal(t, "deployctl-api-8002", got[0].ContainerName)
	assert.Equal(t, "running", got[0].Status)
	assert.Equal(t, "python:3.11-slim", got[0].Image)
	assert.Equal(t, 8001, got[1].Port)
}

func TestListRehearsals_DaemonError(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("EOF")}
	_, err := ListRehearsals(context.Background(), NewClientFromAPI(api), "")
	require.Error(t, err)
	assert.Equal(t, model.ExitDockerNotRunning, cliErrCode(t, err))
}

func TestRemoveRehearsal(t *testing.T) {
	api := &fakeAPI{}
	require.NoError(t, RemoveRehearsal(context.Background(), NewClientFromAPI(api), "aaa"))
	assert.Equal(t, []string{"aaa"}, api.removed)
	assert.True(t, api.removeOpts.Force)

	api.removeErr = errors.New("no such container")
	err := RemoveRehearsal(context.Background(), NewClientFromAPI(api), "zzz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"zzz"`)
}

func TestBuildRunArgs(t *testing.T) {
	args := BuildRunArgs(RunOptions{
		Name:        "deployctl-api-8001",
		Image:       "python:3.11-slim",
		Dir:         "/home/dev/api",
		Port:        8001,
		HostPort:    18001,
		ForwardKeys: []string{"MONGODB_URI", "GROQ_API_KEY", "PORT"},
		Labels:      map[string]string{LabelProject: "api", LabelManagedBy: ManagedByValue},
		Script:      "exec python -m uvicorn optimized_main:app",
	})

	assert.Equal(t, []string{
		"run", "-d",
		"--name", "deployctl-api-8001",
		"-v", "/home/dev/api:/app",
		"-w", "/app",
		"-p", "18001:8001",
		"-e", "PORT=8001",
		"-e", "GROQ_API_KEY",
		"-e", "MONGODB_URI",
		"--label", "deployctl.managed-by=deployctl",
		"--label", "deployctl.project=api",
		"python:3.11-slim", "sh", "-c", "exec python -m uvicorn optimized_main:app",
	}, args)
}

func TestBuildRunArgs_HostPortDefaultsToPort(t *testing.T) {
	args := BuildRunArgs(RunOptions{Name: "n", Image: "i", Dir: "/d", Port: 8001, Script: "true"})
	assert.Contains(t, args, "8001:8001")
}

func TestBuildScript(t *testing.T) {
	steps := []model.Step{
		{Name: "upgrade-pip", Command: []string{"python", "-m", "pip", "install", "--upgrade", "pip"}},
		{Name: "install-deps", Command: []string{"python", "-m", "pip", "install", "-r", "requirements dev.txt"}},
	}
	start := []string{"python", "-m", "uvicorn", "optimized_main:app", "--host", "0.0.0.0", "--port", "8001"}

	assert.Equal(t,
		"python -m pip install --upgrade pip && "+
			"python -m pip install -r 'requirements dev.txt' && "+
			"exec python -m uvicorn optimized_main:app --host 0.0.0.0 --port 8001",
		BuildScript(steps, start))
}
