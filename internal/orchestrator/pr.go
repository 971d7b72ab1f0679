package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/valksor/go-ablauf/internal/artifacts"
	"github.com/valksor/go-ablauf/internal/events"
	"github.com/valksor/go-ablauf/internal/hosting"
	"github.com/valksor/go-ablauf/internal/log"
	"github.com/valksor/go-ablauf/internal/tracker"
	"github.com/valksor/go-ablauf/internal/vcs"
)

// prPlanExcerptLen caps how much of the plan lands in the PR body.
const prPlanExcerptLen = 1500

// finishWithPR pushes the branch and opens a pull request for it,
// returning the PR URL. PR creation failure fails the run; the metadata
// lookup afterwards is best-effort.
func (o *Orchestrator) finishWithPR(ctx context.Context, g *vcs.Git, store *artifacts.Store, task *tracker.Task, slug, branch string) (string, error) {
	base := o.opts.BaseBranch
	if base == "" {
		base = o.cfg.Git.BaseBranch
	}
	if base == "" {
		if def, err := g.DefaultBranch(ctx); err == nil {
			base = def
		}
	}

	url, err := g.CreatePullRequest(ctx, branch, prTitle(task), prBody(task, store, slug), vcs.PROptions{
		Base:  base,
		Draft: o.opts.DraftPR || o.cfg.Git.DraftPR,
	})
	if err != nil {
		return "", fmt.Errorf("create pull request: %w", err)
	}
	log.Info("pull request created", log.TaskID(task.ID), "pr_url", url)

	number := 0
	if remote, rerr := g.RemoteURL(ctx); rerr == nil {
		if info, derr := hosting.Describe(ctx, remote, url, ""); derr == nil {
			number = info.Number
		} else {
			log.Debug("pull request lookup failed", log.Err(derr))
		}
	}

	o.bus.Publish(events.PRCreatedEvent{TaskID: task.ID, PRNumber: number, PRURL: url})
	return url, nil
}

// prTitle derives the pull request title from the task.
func prTitle(task *tracker.Task) string {
	if task.Title != "" {
		return task.Title
	}
	return "Task " + task.ID
}

// prBody assembles the pull request description from the task and its
// artifacts.
func prBody(task *tracker.Task, store *artifacts.Store, slug string) string {
	var b strings.Builder

	b.WriteString("## Summary\n\n")
	switch {
	case task.Description != "":
		b.WriteString(task.Description + "\n")
	case task.Title != "":
		b.WriteString(task.Title + "\n")
	default:
		b.WriteString("Implementation for task " + task.ID + "\n")
	}

	if plan, err := store.ReadArtifact(slug, artifacts.PlanFile); err == nil {
		plan = strings.TrimSpace(plan)
		if len(plan) > prPlanExcerptLen {
			plan = plan[:prPlanExcerptLen] + "\n..."
		}
		if plan != "" {
			b.WriteString("\n## Plan\n\n")
			b.WriteString(plan + "\n")
		}
	}

	if build, err := store.ReadArtifact(slug, artifacts.BuildFile); err == nil {
		build = strings.TrimSpace(build)
		if build != "" {
			b.WriteString("\n## Implementation Notes\n\n")
			b.WriteString(build + "\n")
		}
	}

	b.WriteString("\n---\n*Generated by [Ablauf](https://github.com/valksor/go-ablauf)*\n")
	return b.String()
}
