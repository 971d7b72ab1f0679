package vcs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Worktree represents a git worktree.
type Worktree struct {
	Path   string // Absolute path to worktree
	Branch string // Branch checked out in worktree
	Commit string // HEAD commit
	Main   bool   // Is this the main worktree
}

// ListWorktrees returns all worktrees in the repository.
func (g *Git) ListWorktrees(ctx context.Context) ([]Worktree, error) {
	out, err := g.run(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("list worktrees: %w", err)
	}

	var worktrees []Worktree
	var current Worktree

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if current.Path != "" {
				worktrees = append(worktrees, current)
				current = Worktree{}
			}
			continue
		}

		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "worktree":
			current.Path = value
		case "HEAD":
			current.Commit = value
		case "branch":
			current.Branch = strings.TrimPrefix(value, "refs/heads/")
		}
	}

	if current.Path != "" {
		worktrees = append(worktrees, current)
	}

	// git lists the main worktree first
	if len(worktrees) > 0 {
		worktrees[0].Main = true
	}

	return worktrees, nil
}

// AddWorktree creates a worktree at path with an existing branch checked
// out.
func (g *Git) AddWorktree(ctx context.Context, path, branch string) error {
	absPath, err := worktreeTarget(path)
	if err != nil {
		return err
	}

	_, err = g.run(ctx, "worktree", "add", absPath, branch)
	if err != nil {
		return fmt.Errorf("add worktree: %w", err)
	}
	return nil
}

// AddWorktreeNewBranch creates a worktree at path on a new branch started
// from base, or from HEAD when base is empty.
func (g *Git) AddWorktreeNewBranch(ctx context.Context, path, branch, base string) error {
	absPath, err := worktreeTarget(path)
	if err != nil {
		return err
	}

	args := []string{"worktree", "add", "-b", branch, absPath}
	if base != "" {
		args = append(args, base)
	}

	_, err = g.run(ctx, args...)
	if err != nil {
		return fmt.Errorf("add worktree with new branch: %w", err)
	}
	return nil
}

// worktreeTarget resolves path and makes sure its parent directory exists.
func worktreeTarget(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", fmt.Errorf("create parent directory: %w", err)
	}
	return absPath, nil
}

// RemoveWorktree removes a worktree.
func (g *Git) RemoveWorktree(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove", path}
	if force {
		args = []string{"worktree", "remove", "--force", path}
	}

	_, err := g.run(ctx, args...)
	if err != nil {
		return fmt.Errorf("remove worktree: %w", err)
	}
	return nil
}

// PruneWorktrees removes stale worktree information.
func (g *Git) PruneWorktrees(ctx context.Context) error {
	_, err := g.run(ctx, "worktree", "prune")
	return err
}

// WorktreeForBranch finds the worktree a branch is checked out in.
func (g *Git) WorktreeForBranch(ctx context.Context, branch string) (*Worktree, error) {
	worktrees, err := g.ListWorktrees(ctx)
	if err != nil {
		return nil, err
	}

	for _, wt := range worktrees {
		if wt.Branch == branch {
			return &wt, nil
		}
	}

	return nil, fmt.Errorf("no worktree for branch: %s", branch)
}

// WorktreeExists checks if a worktree exists at the given path.
func (g *Git) WorktreeExists(ctx context.Context, path string) bool {
	worktrees, err := g.ListWorktrees(ctx)
	if err != nil {
		return false
	}

	absPath, _ := filepath.Abs(path)
	for _, wt := range worktrees {
		if wt.Path == absPath {
			return true
		}
	}

	return false
}

// TaskWorktreePath returns the standard worktree location for a task slug.
// Worktrees are created as siblings of the main repo: ../repo-worktrees/slug.
func (g *Git) TaskWorktreePath(slug string) string {
	repoName := filepath.Base(g.repoRoot)
	parent := filepath.Dir(g.repoRoot)
	return filepath.Join(parent, repoName+"-worktrees", slug)
}
