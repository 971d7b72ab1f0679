// Package vcs manages the git lifecycle of automated task runs.
//
// The Git type wraps the git operations the orchestrator needs:
//   - Task branch resolution and creation
//   - Staging, commit and push of step results
//   - Commit tracking across an agent operation
//   - Pull request creation through the gh CLI
//
// Thread safety:
//   - Git methods are safe for concurrent use as they don't maintain mutable state.
//   - A working tree is owned by one task at a time; concurrent tasks need
//     separate worktrees with one Git manager each.
//
// Usage:
//
//	g, err := vcs.Open(ctx, "/path/to/repo")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	branch, _ := g.CurrentBranch(ctx)
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Git porcelain v1 format constants
// Format: XY PATH where X=index status, Y=worktree status
// See: https://git-scm.com/docs/git-status#_short_format
const (
	gitStatusIndexPos   = 0 // Position of index (staged) status character
	gitStatusWorkDirPos = 1 // Position of working directory status character
	gitStatusPathStart  = 3 // Position where file path begins (after "XY ")
	gitStatusMinLength  = 4 // Minimum valid entry length (XY + space + at least 1 char)
)

// DefaultRemote is the remote used for push and pull request operations
// unless overridden with SetRemote.
const DefaultRemote = "origin"

// Git provides git operations for a repository
type Git struct {
	repoRoot string
	remote   string
}

// Open creates a Git instance rooted at the repository containing path
func Open(ctx context.Context, path string) (*Git, error) {
	root, err := findRepoRoot(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Git{repoRoot: root, remote: DefaultRemote}, nil
}

// Root returns the repository root path
func (g *Git) Root() string {
	return g.repoRoot
}

// Remote returns the remote name used for push operations
func (g *Git) Remote() string {
	return g.remote
}

// SetRemote overrides the remote used for push and pull request operations.
// Empty names are ignored.
func (g *Git) SetRemote(name string) {
	if name != "" {
		g.remote = name
	}
}

// IsRepo checks if the path is inside a git repository
func IsRepo(ctx context.Context, path string) bool {
	_, err := findRepoRoot(ctx, path)
	return err == nil
}

// findRepoRoot locates the git repository root
func findRepoRoot(ctx context.Context, path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	out, err := runCommand(ctx, absPath, "git", "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}

	return strings.TrimSpace(out), nil
}

// CurrentBranch returns the current branch name
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("get current branch: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Status returns uncommitted changes
func (g *Git) Status(ctx context.Context) ([]FileStatus, error) {
	out, err := g.run(ctx, "status", "--porcelain", "-z")
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}

	if out == "" {
		return nil, nil
	}

	var files []FileStatus
	entries := strings.Split(strings.TrimSuffix(out, "\x00"), "\x00")
	for _, entry := range entries {
		if len(entry) < gitStatusMinLength {
			continue
		}
		fs := FileStatus{
			Index:   entry[gitStatusIndexPos],
			WorkDir: entry[gitStatusWorkDirPos],
			Path:    strings.TrimSpace(entry[gitStatusPathStart:]),
		}
		files = append(files, fs)
	}

	return files, nil
}

// FileStatus represents a file's git status
type FileStatus struct {
	Index   byte   // Status in index
	WorkDir byte   // Status in working directory
	Path    string // File path
}

// IsStaged returns true if the file is staged
func (f FileStatus) IsStaged() bool {
	return f.Index != ' ' && f.Index != '?'
}

// IsModified returns true if the file is modified in working directory
func (f FileStatus) IsModified() bool {
	return f.WorkDir == 'M' || f.WorkDir == 'D'
}

// HasUncommittedChanges returns true if the working tree has any changes,
// staged or not. A clean tree is not an error.
func (g *Git) HasUncommittedChanges(ctx context.Context) (bool, error) {
	files, err := g.Status(ctx)
	if err != nil {
		return false, err
	}
	return len(files) > 0, nil
}

// HasStagedChanges returns true if any change is staged for commit
func (g *Git) HasStagedChanges(ctx context.Context) (bool, error) {
	files, err := g.Status(ctx)
	if err != nil {
		return false, err
	}
	for _, f := range files {
		if f.IsStaged() {
			return true, nil
		}
	}
	return false, nil
}

// Add stages paths for commit
func (g *Git) Add(ctx context.Context, paths ...string) error {
	args := append([]string{"add"}, paths...)
	_, err := g.run(ctx, args...)
	if err != nil {
		return fmt.Errorf("git add: %w", err)
	}
	return nil
}

// AddAll stages all changes
func (g *Git) AddAll(ctx context.Context) error {
	return g.Add(ctx, "-A")
}

// CommitOptions configures commit behavior
type CommitOptions struct {
	AllowEmpty bool // Create commit even with nothing staged
	Push       bool // Push the current branch after a successful commit
}

// CommitResult reports what a Commit call actually did
type CommitResult struct {
	Hash    string // New commit hash, empty when skipped
	Skipped bool   // True when nothing was staged and AllowEmpty was unset
}

// Commit creates a commit with the given message. With nothing staged and
// AllowEmpty unset the commit is skipped without invoking git; callers treat
// that as a normal outcome, not an error.
func (g *Git) Commit(ctx context.Context, message string, opts ...CommitOptions) (CommitResult, error) {
	var opt CommitOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	if !opt.AllowEmpty {
		staged, err := g.HasStagedChanges(ctx)
		if err != nil {
			return CommitResult{}, err
		}
		if !staged {
			return CommitResult{Skipped: true}, nil
		}
	}

	args := []string{"commit"}
	if opt.AllowEmpty {
		args = append(args, "--allow-empty")
	}
	args = append(args, "-m", message)

	if _, err := g.run(ctx, args...); err != nil {
		return CommitResult{}, fmt.Errorf("git commit: %w", err)
	}

	hash, err := g.RevParse(ctx, "HEAD")
	if err != nil {
		return CommitResult{}, fmt.Errorf("get commit hash: %w", err)
	}

	if opt.Push {
		branch, err := g.CurrentBranch(ctx)
		if err != nil {
			return CommitResult{Hash: hash}, err
		}
		if err := g.PushBranch(ctx, branch, true); err != nil {
			return CommitResult{Hash: hash}, err
		}
	}

	return CommitResult{Hash: hash}, nil
}

// Checkout switches to a branch
func (g *Git) Checkout(ctx context.Context, ref string) error {
	_, err := g.run(ctx, "checkout", ref)
	if err != nil {
		return fmt.Errorf("git checkout %s: %w", ref, err)
	}
	return nil
}

// RevParse resolves a git reference
func (g *Git) RevParse(ctx context.Context, ref string) (string, error) {
	out, err := g.run(ctx, "rev-parse", ref)
	if err != nil {
		return "", fmt.Errorf("rev-parse %s: %w", ref, err)
	}
	return strings.TrimSpace(out), nil
}

// RemoteURL returns the URL of the configured remote
func (g *Git) RemoteURL(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "remote", "get-url", g.remote)
	if err != nil {
		return "", fmt.Errorf("get remote URL %s: %w", g.remote, err)
	}
	return strings.TrimSpace(out), nil
}

// run executes a git command in the repo root
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	return runCommand(ctx, g.repoRoot, "git", args...)
}

// runCommand executes a command in dir, folding stderr into the error
func runCommand(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		errMsg := stderr.String()
		if errMsg == "" {
			errMsg = err.Error()
		}
		return "", fmt.Errorf("%s", strings.TrimSpace(errMsg))
	}

	return stdout.String(), nil
}
