package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valksor/go-ablauf/internal/artifacts"
	"github.com/valksor/go-ablauf/internal/events"
	"github.com/valksor/go-ablauf/internal/log"
	"github.com/valksor/go-ablauf/internal/naming"
	"github.com/valksor/go-ablauf/internal/tracker"
	"github.com/valksor/go-ablauf/internal/vcs"
	"github.com/valksor/go-ablauf/internal/workflow"
)

// Step ids of the fixed pipeline.
const (
	StepResearch = "research"
	StepPlan     = "plan"
	StepBuild    = "build"
)

// maxSlugLen caps task slugs so branch names and worktree paths stay
// reasonable.
const maxSlugLen = 48

// appendLogTimeout bounds a single run-log append to the tracking service.
const appendLogTimeout = 10 * time.Second

// RunResult holds the result of one task run
type RunResult struct {
	Task    *tracker.Task
	Run     *tracker.TaskRun
	Slug    string
	Branch  string
	WorkDir string

	// Halted is set when a step paused the run for outside input; the
	// run is left in progress and a rerun resumes it.
	Halted   bool
	HaltStep string

	PRURL   string
	Results map[string]workflow.StepResult

	// FailedAt names the lifecycle phase where failure occurred (if any)
	FailedAt string
}

// RunTask executes one full pass of the pipeline for a task reference.
// With a tracker configured the reference is a task id; in local mode it
// is a markdown task file or a bare identifier. A halted pass returns
// without error; rerunning the same reference resumes where it stopped.
func (o *Orchestrator) RunTask(ctx context.Context, ref string) (*RunResult, error) {
	res := &RunResult{}

	task, err := o.resolveTask(ctx, ref)
	if err != nil {
		res.FailedAt = "resolve"
		return res, err
	}
	res.Task = task
	res.Slug = taskSlug(task)

	run, err := o.openRun(ctx, task)
	if err != nil {
		res.FailedAt = "run"
		return res, err
	}
	res.Run = run

	log.Info("task run starting", log.TaskID(task.ID), log.RunID(run.ID), "slug", res.Slug)
	o.bus.Publish(events.RunStartedEvent{TaskID: task.ID, RunID: run.ID})

	if o.tracker != nil {
		sub := o.bus.SubscribeAll(o.runLogForwarder(run.ID))
		defer o.bus.Unsubscribe(sub)
	}

	runGit, branch, created, err := o.prepareWorkspace(ctx, res.Slug)
	if err != nil {
		return res, o.failRun(ctx, res, "branch", err)
	}
	res.Branch = branch
	res.WorkDir = runGit.Root()

	log.Info("task branch ready", log.TaskID(task.ID), log.Branch(branch), "created", created)
	o.bus.Publish(events.BranchReadyEvent{TaskID: task.ID, Branch: branch, Created: created})
	o.updateRun(ctx, run, tracker.RunUpdate{Status: tracker.RunInProgress, Branch: branch})

	store, err := artifacts.Open(runGit.Root())
	if err != nil {
		return res, o.failRun(ctx, res, "workspace", err)
	}
	if created {
		if err := store.UpdateGitignore(); err != nil {
			log.Warn("gitignore update failed", log.Err(err))
		}
	}

	rt := o.newRuntime(task, runGit.Root())
	defer rt.Stop()

	ec := workflow.NewExecutionContext(task, run, res.Slug, runGit.Root())
	ec.Cloud = o.opts.Cloud

	o.setCurrent(ec)
	defer o.clearCurrent()

	deps := stepDeps{o: o, rt: rt, git: runGit, store: store}
	runner := workflow.NewRunner(o.bus,
		&researchStep{stepDeps: deps, def: o.stepDefinition(StepResearch, "Research", roleResearcher)},
		&planStep{stepDeps: deps, def: o.stepDefinition(StepPlan, "Plan", roleArchitect)},
		&buildStep{stepDeps: deps, def: o.stepDefinition(StepBuild, "Build", roleEngineer)},
	)

	pass, err := runner.Run(ctx, ec)
	res.Results = ec.Results()
	if err != nil {
		return res, o.failRun(ctx, res, "pipeline", err)
	}

	if pass.Halted {
		res.Halted = true
		res.HaltStep = pass.HaltStep
		o.updateRun(ctx, run, tracker.RunUpdate{State: map[string]any{"halted_at": pass.HaltStep}})
		log.Info("task run paused", log.TaskID(task.ID), log.Step(pass.HaltStep))
		return res, nil
	}

	prURL := task.LatestRun.PRURL()
	if prURL != "" {
		log.Info("pull request already open, skipping creation",
			log.TaskID(task.ID), "pr_url", prURL)
	} else if !o.opts.SkipPR {
		prURL, err = o.finishWithPR(ctx, runGit, store, task, res.Slug, branch)
		if err != nil {
			return res, o.failRun(ctx, res, "pr", err)
		}
	}
	if prURL != "" {
		res.PRURL = prURL
		o.updateRun(ctx, run, tracker.RunUpdate{Output: map[string]any{"pr_url": prURL}})
	}

	o.updateRun(ctx, run, tracker.RunUpdate{Status: tracker.RunCompleted})
	o.bus.Publish(events.RunCompletedEvent{TaskID: task.ID, RunID: run.ID, PRURL: res.PRURL})
	log.Info("task run completed", log.TaskID(task.ID), log.RunID(run.ID))
	return res, nil
}

// resolveTask fetches the task from the tracking service, or builds one
// locally when no service is configured.
func (o *Orchestrator) resolveTask(ctx context.Context, ref string) (*tracker.Task, error) {
	if o.tracker != nil {
		task, err := o.tracker.GetTask(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("fetch task %s: %w", ref, err)
		}
		return task, nil
	}
	return localTask(ref)
}

// localTask builds a task from a markdown file (first heading becomes the
// title, the rest the description) or from a bare identifier.
func localTask(ref string) (*tracker.Task, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !looksLikePath(ref) {
			return &tracker.Task{ID: ref, Title: ref}, nil
		}
		return nil, fmt.Errorf("read task file: %w", err)
	}

	title, description := splitTaskFile(string(data))
	stem := strings.TrimSuffix(filepath.Base(ref), filepath.Ext(ref))
	if title == "" {
		title = stem
	}
	return &tracker.Task{ID: stem, Title: title, Description: description}, nil
}

func looksLikePath(ref string) bool {
	return strings.ContainsAny(ref, `/\`) || strings.HasSuffix(ref, ".md")
}

// splitTaskFile separates a task file into its title line and body.
func splitTaskFile(content string) (title, description string) {
	parts := strings.SplitN(strings.TrimSpace(content), "\n", 2)
	title = strings.TrimSpace(strings.TrimLeft(parts[0], "# "))
	if len(parts) > 1 {
		description = strings.TrimSpace(parts[1])
	}
	return title, description
}

// taskSlug derives the branch/namespace slug for a task.
func taskSlug(task *tracker.Task) string {
	text := task.ID
	if task.Title != "" && !strings.EqualFold(task.Title, task.ID) {
		text += " " + task.Title
	}

	slug := naming.Slugify(text, maxSlugLen)
	if slug == "" {
		slug = "task"
	}
	return slug
}

// openRun creates a run on the tracking service, or a memory-only run in
// local mode.
func (o *Orchestrator) openRun(ctx context.Context, task *tracker.Task) (*tracker.TaskRun, error) {
	if o.tracker != nil {
		run, err := o.tracker.CreateRun(ctx, task.ID)
		if err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
		return run, nil
	}

	now := time.Now()
	return &tracker.TaskRun{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		Status:    tracker.RunStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// updateRun applies the update to the in-memory run and mirrors it to the
// tracking service when one is configured. Service failures are logged,
// never fatal: run state on the service is telemetry, the run itself
// decides success.
func (o *Orchestrator) updateRun(ctx context.Context, run *tracker.TaskRun, update tracker.RunUpdate) {
	if update.Status != "" {
		run.Status = update.Status
	}
	if update.Branch != "" {
		run.Branch = update.Branch
	}
	if update.Error != "" {
		run.Error = update.Error
	}
	if len(update.Output) > 0 {
		if run.Output == nil {
			run.Output = make(map[string]any, len(update.Output))
		}
		for k, v := range update.Output {
			run.Output[k] = v
		}
	}
	if len(update.State) > 0 {
		if run.State == nil {
			run.State = make(map[string]any, len(update.State))
		}
		for k, v := range update.State {
			run.State[k] = v
		}
	}
	run.UpdatedAt = time.Now()

	if o.tracker == nil {
		return
	}
	if _, err := o.tracker.UpdateRun(ctx, run.ID, update); err != nil {
		log.Warn("run update not recorded", log.RunID(run.ID), log.Err(err))
	}
}

// failRun marks the run failed and reports the failure. The original
// error is returned unchanged so callers see the step context the runner
// already attached.
func (o *Orchestrator) failRun(ctx context.Context, res *RunResult, at string, err error) error {
	res.FailedAt = at
	log.Error("task run failed",
		log.TaskID(res.Task.ID),
		"failed_at", at,
		log.Err(err),
	)
	o.updateRun(ctx, res.Run, tracker.RunUpdate{Status: tracker.RunFailed, Error: err.Error()})
	o.bus.Publish(events.RunFailedEvent{TaskID: res.Task.ID, RunID: res.Run.ID, Error: err})
	return err
}

// prepareWorkspace puts a working tree on the task branch and returns the
// git manager rooted there. Without the worktree option that is the main
// checkout; with it, a dedicated worktree so the main checkout stays
// untouched.
func (o *Orchestrator) prepareWorkspace(ctx context.Context, slug string) (*vcs.Git, string, bool, error) {
	branch := naming.TaskBranch(slug)
	if o.opts.FreshBranch {
		branch = o.git.UniqueBranchName(ctx, branch)
	}

	if o.opts.UseWorktree {
		return o.prepareWorktree(ctx, branch)
	}

	created, err := o.git.GetOrCreateTaskBranch(ctx, branch, o.cfg.Git.BaseBranch)
	if err != nil {
		return nil, "", false, err
	}
	return o.git, branch, created, nil
}

// prepareWorktree resolves the branch into its own worktree, creating
// both when missing. The worktree path is derived from the branch so
// fresh branches never collide with a previous run's tree.
func (o *Orchestrator) prepareWorktree(ctx context.Context, branch string) (*vcs.Git, string, bool, error) {
	path := o.git.TaskWorktreePath(strings.TrimPrefix(branch, naming.BranchPrefix))

	if o.git.WorktreeExists(ctx, path) {
		wg, err := vcs.Open(ctx, path)
		if err != nil {
			return nil, "", false, fmt.Errorf("open worktree: %w", err)
		}
		return wg, branch, false, nil
	}

	created := false
	if o.git.BranchExists(ctx, branch) {
		if err := o.git.AddWorktree(ctx, path, branch); err != nil {
			return nil, "", false, err
		}
	} else {
		base := o.cfg.Git.BaseBranch
		if base == "" {
			if def, err := o.git.DefaultBranch(ctx); err == nil {
				base = def
			}
		}
		if err := o.git.AddWorktreeNewBranch(ctx, path, branch, base); err != nil {
			return nil, "", false, err
		}
		created = true
	}

	wg, err := vcs.Open(ctx, path)
	if err != nil {
		return nil, "", false, fmt.Errorf("open worktree: %w", err)
	}
	if o.cfg.Git.Remote != "" {
		wg.SetRemote(o.cfg.Git.Remote)
	}
	return wg, branch, created, nil
}

// stepDefinition builds a step's static definition, applying per-step
// configuration overrides.
func (o *Orchestrator) stepDefinition(id, name, role string) workflow.StepDefinition {
	settings := o.cfg.StepFor(id)
	return workflow.StepDefinition{
		ID:             id,
		Name:           name,
		AgentRole:      role,
		Model:          settings.Model,
		PermissionMode: settings.PermissionMode,
		Commit:         true,
		Push:           o.opts.Push,
	}
}

// runLogForwarder summarizes bus events into the run's append-only log.
// Append failures are logged locally and dropped.
func (o *Orchestrator) runLogForwarder(runID string) func(events.Event) {
	return func(ev events.Event) {
		line := logLine(ev)
		if line == "" {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), appendLogTimeout)
		defer cancel()

		if err := o.tracker.AppendLog(ctx, runID, line); err != nil {
			log.Debug("run log append failed", log.RunID(runID), log.Err(err))
		}
	}
}

// logLine renders an event as one run-log line. Events too chatty for the
// log (streamed message chunks) render as "".
func logLine(ev events.Event) string {
	switch ev.Type {
	case events.TypeStepStarted:
		return fmt.Sprintf("step %v started", ev.Data["step"])
	case events.TypeStepCompleted:
		if halted, _ := ev.Data["halted"].(bool); halted {
			return fmt.Sprintf("step %v %v, run paused", ev.Data["step"], ev.Data["status"])
		}
		return fmt.Sprintf("step %v %v", ev.Data["step"], ev.Data["status"])
	case events.TypeBranchReady:
		return fmt.Sprintf("branch %v ready", ev.Data["branch"])
	case events.TypeCommitCreated:
		if pushed, _ := ev.Data["pushed"].(bool); pushed {
			return fmt.Sprintf("commit %v pushed (%v)", ev.Data["hash"], ev.Data["step"])
		}
		return fmt.Sprintf("commit %v created (%v)", ev.Data["hash"], ev.Data["step"])
	case events.TypePRCreated:
		return fmt.Sprintf("pull request created: %v", ev.Data["pr_url"])
	case events.TypeQuestions:
		return fmt.Sprintf("%v open questions recorded", ev.Data["count"])
	case events.TypeToolCall:
		title, _ := ev.Data["title"].(string)
		if title == "" {
			return ""
		}
		status, _ := ev.Data["status"].(string)
		if status == "" {
			return "tool: " + title
		}
		return fmt.Sprintf("tool: %s (%s)", title, status)
	case events.TypeError:
		return fmt.Sprintf("error: %v", ev.Data["error"])
	default:
		return ""
	}
}
