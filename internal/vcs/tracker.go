package vcs

import (
	"context"
	"errors"
	"fmt"
)

// ErrAlreadyFinalized is returned when Finalize is called twice on the same
// tracker.
var ErrAlreadyFinalized = errors.New("commit tracker already finalized")

// CommitTracker observes what an agent operation did to the repository.
// It captures HEAD when the operation starts; Finalize compares HEAD and the
// working tree afterwards to decide whether commits exist and whether to
// push. A tracker is single use and not safe for concurrent use.
type CommitTracker struct {
	git       *Git
	startHead string
	finalized bool
}

// TrackOperation captures the current HEAD and returns a tracker for the
// operation about to run.
func (g *Git) TrackOperation(ctx context.Context) (*CommitTracker, error) {
	head, err := g.RevParse(ctx, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("capture HEAD: %w", err)
	}
	return &CommitTracker{git: g, startHead: head}, nil
}

// StartHead returns the commit hash captured when tracking began.
func (t *CommitTracker) StartHead() string {
	return t.startHead
}

// FinalizeResult reports what Finalize observed and did.
type FinalizeResult struct {
	CommitCreated bool // A commit exists from the tracked operation
	PushedBranch  bool // The current branch was pushed
}

// Finalize inspects the repository after the tracked operation. Commits the
// agent made itself count as created; leftover uncommitted changes are
// staged and committed under message. The branch is pushed only when push is
// requested and at least one commit exists, so a no-op operation never
// triggers a push. Finalizing twice is an error.
func (t *CommitTracker) Finalize(ctx context.Context, message string, push bool) (FinalizeResult, error) {
	if t.finalized {
		return FinalizeResult{}, ErrAlreadyFinalized
	}
	t.finalized = true

	var res FinalizeResult

	head, err := t.git.RevParse(ctx, "HEAD")
	if err != nil {
		return res, fmt.Errorf("read HEAD: %w", err)
	}
	res.CommitCreated = head != t.startHead

	dirty, err := t.git.HasUncommittedChanges(ctx)
	if err != nil {
		return res, err
	}
	if dirty {
		if err := t.git.AddAll(ctx); err != nil {
			return res, err
		}
		if _, err := t.git.Commit(ctx, message); err != nil {
			return res, err
		}
		res.CommitCreated = true
	}

	if push && res.CommitCreated {
		branch, err := t.git.CurrentBranch(ctx)
		if err != nil {
			return res, err
		}
		if err := t.git.PushBranch(ctx, branch, true); err != nil {
			return res, err
		}
		res.PushedBranch = true
	}

	return res, nil
}
