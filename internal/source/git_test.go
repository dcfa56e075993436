package source

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireGit skips the test when git is not installed.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// setupTestRepo creates a repository on branch "main" with one commit.
func setupTestRepo(t *testing.T) string {
	t.Helper()
	requireGit(t)

	dir := t.TempDir()
	runTestGit(t, dir, "init")
	runTestGit(t, dir, "checkout", "-b", "main")
	runTestGit(t, dir, "config", "user.email", "test@example.com")
	runTestGit(t, dir, "config", "user.name", "Test User")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("fastapi\n"), 0644))
	runTestGit(t, dir, "add", ".")
	runTestGit(t, dir, "commit", "-m", "initial commit")
	return dir
}

func runTestGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
	return string(output)
}

func TestDescribe_CleanTree(t *testing.T) {
	dir := setupTestRepo(t)
	head := strings.TrimSpace(runTestGit(t, dir, "rev-parse", "HEAD"))

	rev, err := Describe(dir)
	require.NoError(t, err)
	require.NotNil(t, rev)

	assert.Equal(t, head, rev.Commit)
	assert.Equal(t, "main", rev.Branch)
	assert.False(t, rev.Dirty)
	assert.Equal(t, head[:12], rev.Short())
	assert.Equal(t, "main@"+head[:12], rev.String())
}

func TestDescribe_DirtyTree(t *testing.T) {
	dir := setupTestRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "optimized_main.py"), []byte("app = None\n"), 0644))

	rev, err := Describe(dir)
	require.NoError(t, err)
	require.NotNil(t, rev)
	assert.True(t, rev.Dirty, "untracked files make the tree dirty")
	assert.True(t, strings.HasSuffix(rev.Short(), "-dirty"))
}

func TestDescribe_Subdirectory(t *testing.T) {
	dir := setupTestRepo(t)
	sub := filepath.Join(dir, "backend")
	require.NoError(t, os.Mkdir(sub, 0755))

	rev, err := Describe(sub)
	require.NoError(t, err)
	require.NotNil(t, rev)
	assert.Equal(t, "main", rev.Branch)
}

func TestDescribe_NotARepository(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()

	assert.False(t, IsRepository(dir))
	rev, err := Describe(dir)
	assert.NoError(t, err)
	assert.Nil(t, rev)
}

func TestDescribe_NoCommits(t *testing.T) {
	requireGit(t)
	dir := t.TempDir()
	runTestGit(t, dir, "init")

	rev, err := Describe(dir)
	assert.NoError(t, err)
	assert.Nil(t, rev)
}
