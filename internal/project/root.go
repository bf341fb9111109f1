package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// ResolveRoot returns dir as an absolute project root. dir must be an
// existing directory. It is never moved to an enclosing repository; use
// GitRoot for that.
func ResolveRoot(dir string) (string, error) {
	if dir == "" {
		return "", ErrEmptyProjectPath
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidProjectPath, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidProjectPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidProjectPath, abs)
	}
	return abs, nil
}

// GitRoot returns the root of the git worktree enclosing dir, or dir itself
// (resolved as by ResolveRoot) when it is not inside a repository.
func GitRoot(dir string) (string, error) {
	abs, err := ResolveRoot(dir)
	if err != nil {
		return "", err
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return abs, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to open repository at %s: %w", abs, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no worktree.
		return abs, nil
	}
	return wt.Filesystem.Root(), nil
}
