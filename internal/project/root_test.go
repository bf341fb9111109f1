package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initNested creates a git repository with a nested directory and returns
// both paths.
func initNested(t *testing.T) (repo, nested string) {
	t.Helper()
	repo = t.TempDir()
	_, err := git.PlainInit(repo, false)
	require.NoError(t, err)

	nested = filepath.Join(repo, "apps", "tutor")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	return repo, nested
}

func TestResolveRoot_StaysInsideRepository(t *testing.T) {
	_, nested := initNested(t)

	got, err := ResolveRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, nested, got)
}

func TestResolveRoot_PlainDirectory(t *testing.T) {
	dir := t.TempDir()
	got, err := ResolveRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestResolveRoot_Invalid(t *testing.T) {
	_, err := ResolveRoot("")
	assert.ErrorIs(t, err, ErrEmptyProjectPath)

	_, err = ResolveRoot(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrInvalidProjectPath)

	file := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	_, err = ResolveRoot(file)
	assert.ErrorIs(t, err, ErrInvalidProjectPath)
}

func TestGitRoot_GitWorktree(t *testing.T) {
	repo, nested := initNested(t)

	got, err := GitRoot(nested)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(repo)
	require.NoError(t, err)
	gotResolved, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	assert.Equal(t, want, gotResolved)
}

func TestGitRoot_PlainDirectory(t *testing.T) {
	dir := t.TempDir()
	got, err := GitRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestGitRoot_Invalid(t *testing.T) {
	_, err := GitRoot("")
	assert.ErrorIs(t, err, ErrEmptyProjectPath)
}
