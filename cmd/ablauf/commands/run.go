package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/valksor/go-ablauf/internal/artifacts"
	"github.com/valksor/go-ablauf/internal/display"
	"github.com/valksor/go-ablauf/internal/log"
	"github.com/valksor/go-ablauf/internal/orchestrator"
)

// cancelTimeout bounds the session cancel sent when the user interrupts.
const cancelTimeout = 10 * time.Second

var (
	runCloud       bool
	runWorktree    bool
	runFreshBranch bool
	runPush        bool
	runNoPR        bool
	runDraft       bool
	runBase        string
	runSkipReview  bool
	runAgent       string
	runWatch       bool
)

var runCmd = &cobra.Command{
	Use:     "run <task>",
	Short:   "Run a task: research -> plan -> build -> pull request",
	GroupID: "workflow",
	Long: `Run one task through the full pipeline.

The task is a markdown file (first heading becomes the title) or, with a
tracking service configured, a task id. The run works on its own branch
(tasks/<slug>), stores step artifacts under .ablauf/tasks/<slug>/, and
opens a pull request after a full pass.

A run pauses instead of guessing: when research raises open questions it
stops until .ablauf/tasks/<slug>/questions.yaml carries answers, and a
freshly written plan gets a review pause before any code changes.
Rerunning the same task resumes at the first step without an artifact.
With --watch the command stays up through those pauses and resumes by
itself when the artifact changes (touch the plan file to approve it).

Examples:
  ablauf run task.md                # Full pipeline from a file
  ablauf run task.md --watch        # Stay up across question/review pauses
  ablauf run task.md --worktree     # Isolate the run in a git worktree
  ablauf run TASK-42 --cloud        # Service-driven run, pushes each step
  ablauf run task.md --no-pr        # Stop after the build step
  ablauf run task.md --skip-review  # Build immediately after planning`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runCloud, "cloud", false, "Resolve the task from the tracking service; never pause locally")
	runCmd.Flags().BoolVarP(&runWorktree, "worktree", "w", false, "Execute in a dedicated git worktree")
	runCmd.Flags().BoolVar(&runFreshBranch, "fresh-branch", false, "Start on a new numbered branch instead of resuming")
	runCmd.Flags().BoolVar(&runPush, "push", false, "Push the branch after each committing step")
	runCmd.Flags().BoolVar(&runNoPR, "no-pr", false, "Skip pull request creation")
	runCmd.Flags().BoolVar(&runDraft, "draft", false, "Open the pull request as a draft")
	runCmd.Flags().StringVar(&runBase, "base", "", "Base branch for the task branch and pull request")
	runCmd.Flags().BoolVar(&runSkipReview, "skip-review", false, "Do not pause between plan and build")
	runCmd.Flags().StringVarP(&runAgent, "agent", "a", "", "Agent command overriding the configured one")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Wait through pauses and resume when artifacts change")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ref := args[0]

	opts := []orchestrator.Option{
		orchestrator.WithCloud(runCloud),
		orchestrator.WithWorktree(runWorktree),
		orchestrator.WithFreshBranch(runFreshBranch),
		orchestrator.WithSkipReview(runSkipReview),
		orchestrator.WithSkipPR(runNoPR),
		orchestrator.WithDraftPR(runDraft),
		orchestrator.WithBaseBranch(runBase),
	}
	if runPush {
		opts = append(opts, orchestrator.WithPush(true))
	}
	if runAgent != "" {
		opts = append(opts, orchestrator.WithAgent(runAgent))
	}

	o, err := orchestrator.New(ctx, opts...)
	if err != nil {
		return err
	}
	defer o.Close()

	if !quiet {
		renderer := display.NewRenderer(os.Stdout, verbose)
		sub := o.Bus().SubscribeAll(renderer.Handle)
		defer o.Bus().Unsubscribe(sub)
	}

	// An interrupt cancels the in-flight agent turn so the run winds down
	// at a step boundary instead of dying mid-prompt.
	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
		defer cancel()
		if err := o.Cancel(stopCtx); err != nil {
			log.Debug("cancel active session", "error", err)
		}
	}()

	for {
		result, err := o.RunTask(ctx, ref)
		if err != nil {
			printRunFailed(result, err)
			return err
		}

		if !result.Halted {
			printRunCompleted(result)
			return nil
		}

		store, err := artifacts.Open(result.WorkDir)
		if err != nil {
			return err
		}
		printRunHalted(store, result, ref)

		if !runWatch || ctx.Err() != nil {
			return nil
		}
		if err := waitForResume(ctx, store, result); err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(display.InfoMsg("Change detected, resuming"))
	}
}

// waitForResume blocks until the artifact behind the pause changes. For a
// question pause that means every question has an answer; for the other
// pauses any write to the plan file counts.
func waitForResume(ctx context.Context, store *artifacts.Store, res *orchestrator.RunResult) error {
	file := haltFile(store, res)
	fmt.Println(display.Muted("Watching " + store.ArtifactPath(res.Slug, file) + " (Ctrl-C to stop)"))

	for {
		if err := store.WaitForChange(ctx, res.Slug, file); err != nil {
			return err
		}
		if file != artifacts.QuestionsFile {
			return nil
		}

		questions, err := store.ReadQuestions(res.Slug)
		if err != nil {
			log.Debug("questions unreadable after change", "error", err)
			continue
		}
		if artifacts.Answered(questions) {
			return nil
		}
	}
}

// haltFile names the artifact whose change lets a paused run continue.
func haltFile(store *artifacts.Store, res *orchestrator.RunResult) string {
	if res.HaltStep == orchestrator.StepPlan {
		return artifacts.QuestionsFile
	}
	return artifacts.PlanFile
}

func printRunCompleted(res *orchestrator.RunResult) {
	fmt.Println()
	fmt.Print(display.FormatRunInfo(display.SuccessMsg("Task run completed"), display.RunInfo{
		TaskID:  res.Task.ID,
		Title:   res.Task.Title,
		Status:  "completed",
		Branch:  res.Branch,
		WorkDir: res.WorkDir,
		PRURL:   res.PRURL,
	}))
}

func printRunHalted(store *artifacts.Store, res *orchestrator.RunResult, ref string) {
	fmt.Println()
	fmt.Print(display.FormatRunInfo(display.WarningMsg("Task run paused"), display.RunInfo{
		TaskID:   res.Task.ID,
		Title:    res.Task.Title,
		Status:   "in_progress",
		Branch:   res.Branch,
		WorkDir:  res.WorkDir,
		HaltStep: res.HaltStep,
	}))
	fmt.Println()
	fmt.Print(display.FormatNextSteps(haltNextSteps(store, res, ref)))
}

// haltNextSteps tells the user what unblocks the paused run.
func haltNextSteps(store *artifacts.Store, res *orchestrator.RunResult, ref string) []display.NextStep {
	rerun := display.NextStep{
		Command:     "ablauf run " + ref,
		Description: "Resume the run",
	}

	if res.HaltStep == orchestrator.StepPlan {
		return []display.NextStep{
			{
				Command:     "$EDITOR " + store.ArtifactPath(res.Slug, artifacts.QuestionsFile),
				Description: "Answer the open questions",
			},
			rerun,
		}
	}

	planPath := store.ArtifactPath(res.Slug, artifacts.PlanFile)
	if store.HasArtifact(res.Slug, artifacts.PlanFile) {
		return []display.NextStep{
			{
				Command:     "$EDITOR " + planPath,
				Description: "Review the plan before code changes",
			},
			rerun,
		}
	}
	return []display.NextStep{
		{
			Command:     "$EDITOR " + planPath,
			Description: "Write the plan the agent did not produce",
		},
		rerun,
	}
}

func printRunFailed(res *orchestrator.RunResult, err error) {
	fmt.Println()
	fmt.Println(display.ErrorMsg("Task run failed"))
	if res.FailedAt != "" {
		fmt.Printf("  Failed at: %s\n", res.FailedAt)
	}
	if res.Branch != "" {
		fmt.Printf("  Branch:    %s\n", res.Branch)
	}
	fmt.Printf("  Error:     %v\n", err)
}
