package vcs

import (
	"context"
	"fmt"
	"strings"
)

// PROptions configures pull request creation.
type PROptions struct {
	Base  string // Target branch, remote default when empty
	Draft bool   // Open the pull request as a draft
}

// CreatePullRequest opens a pull request for branch through the gh CLI and
// returns its URL. The branch is checked out and pushed first so the remote
// sees the latest commits. A failure leaves the repository itself untouched.
func (g *Git) CreatePullRequest(ctx context.Context, branch, title, body string, opts ...PROptions) (string, error) {
	var opt PROptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	current, err := g.CurrentBranch(ctx)
	if err != nil {
		return "", err
	}
	if current != branch {
		if err := g.Checkout(ctx, branch); err != nil {
			return "", err
		}
	}
	if err := g.PushBranch(ctx, branch, true); err != nil {
		return "", err
	}

	args := []string{"pr", "create", "--head", branch, "--title", title, "--body", body}
	if opt.Base != "" {
		args = append(args, "--base", opt.Base)
	}
	if opt.Draft {
		args = append(args, "--draft")
	}

	out, err := runCommand(ctx, g.repoRoot, "gh", args...)
	if err != nil {
		return "", fmt.Errorf("gh pr create: %w", err)
	}

	// gh prints the pull request URL as the last line of stdout
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) == 0 {
		return "", fmt.Errorf("gh pr create: no URL in output")
	}
	return fields[len(fields)-1], nil
}
