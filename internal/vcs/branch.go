package vcs

import (
	"context"
	"fmt"
	"strings"
)

// Branch represents a git branch.
type Branch struct {
	Name      string
	IsCurrent bool
	Commit    string // HEAD commit hash
}

// CreateBranch creates and checks out a new branch.
func (g *Git) CreateBranch(ctx context.Context, name, base string) error {
	args := []string{"checkout", "-b", name}
	if base != "" {
		args = append(args, base)
	}
	_, err := g.run(ctx, args...)
	if err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return nil
}

// BranchExists checks if a local branch exists.
func (g *Git) BranchExists(ctx context.Context, name string) bool {
	_, err := g.run(ctx, "rev-parse", "--verify", "refs/heads/"+name)
	return err == nil
}

// RemoteBranchExists checks if a branch exists on the configured remote.
func (g *Git) RemoteBranchExists(ctx context.Context, name string) bool {
	_, err := g.run(ctx, "rev-parse", "--verify", fmt.Sprintf("refs/remotes/%s/%s", g.remote, name))
	return err == nil
}

// ListBranches returns all local branches.
func (g *Git) ListBranches(ctx context.Context) ([]Branch, error) {
	out, err := g.run(ctx, "branch", "-v", "--no-abbrev")
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}

	var branches []Branch
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		b := Branch{}
		if strings.HasPrefix(line, "* ") {
			b.IsCurrent = true
			line = line[2:]
		}

		parts := strings.Fields(line)
		if len(parts) >= 2 {
			b.Name = parts[0]
			b.Commit = parts[1]
		}

		branches = append(branches, b)
	}

	return branches, nil
}

// DefaultBranch finds the branch task branches are created from,
// usually main or master.
func (g *Git) DefaultBranch(ctx context.Context) (string, error) {
	// Try common default branch names
	candidates := []string{"main", "master", "develop"}

	for _, name := range candidates {
		if g.BranchExists(ctx, name) {
			return name, nil
		}
	}

	// Try to find from remote
	for _, name := range candidates {
		if g.RemoteBranchExists(ctx, name) {
			return name, nil
		}
	}

	// Fall back to first branch
	branches, err := g.ListBranches(ctx)
	if err != nil {
		return "", err
	}
	if len(branches) > 0 {
		return branches[0].Name, nil
	}

	return "", fmt.Errorf("no default branch found")
}

// GetOrCreateTaskBranch switches to the named task branch, creating it when
// it does not exist yet. New branches start from base, or from the default
// branch when base is empty. Creation requires a clean working tree so local
// edits are never carried onto a task branch. Reports whether the branch was
// created.
func (g *Git) GetOrCreateTaskBranch(ctx context.Context, name, base string) (created bool, err error) {
	if g.BranchExists(ctx, name) {
		if err := g.Checkout(ctx, name); err != nil {
			return false, err
		}
		return false, nil
	}

	dirty, err := g.HasUncommittedChanges(ctx)
	if err != nil {
		return false, err
	}
	if dirty {
		return false, fmt.Errorf("cannot create branch %s: working tree has uncommitted changes", name)
	}

	if base == "" {
		base, err = g.DefaultBranch(ctx)
		if err != nil {
			return false, err
		}
	}
	if err := g.Checkout(ctx, base); err != nil {
		return false, err
	}
	if err := g.CreateBranch(ctx, name, ""); err != nil {
		return false, err
	}
	return true, nil
}

// UniqueBranchName returns base unchanged when no branch by that name
// exists, otherwise base with the first free numeric suffix appended
// (base-1, base-2, ...). Existing branches are never reused.
func (g *Git) UniqueBranchName(ctx context.Context, base string) string {
	if !g.BranchExists(ctx, base) {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s-%d", base, i)
		if !g.BranchExists(ctx, name) {
			return name
		}
	}
}

// PushBranch pushes a branch to the configured remote, optionally setting
// the upstream tracking branch.
func (g *Git) PushBranch(ctx context.Context, branch string, setUpstream bool) error {
	args := []string{"push", g.remote, branch}
	if setUpstream {
		args = []string{"push", "-u", g.remote, branch}
	}
	_, err := g.run(ctx, args...)
	if err != nil {
		return fmt.Errorf("push branch %s: %w", branch, err)
	}
	return nil
}
