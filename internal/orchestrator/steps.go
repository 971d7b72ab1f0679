package orchestrator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/coder/acp-go-sdk"

	"github.com/valksor/go-ablauf/internal/artifacts"
	"github.com/valksor/go-ablauf/internal/events"
	"github.com/valksor/go-ablauf/internal/log"
	"github.com/valksor/go-ablauf/internal/protocol"
	"github.com/valksor/go-ablauf/internal/vcs"
	"github.com/valksor/go-ablauf/internal/workflow"
)

// stepDeps bundles what every phase step needs. The git manager and store
// are rooted at the run's working tree, which differs from the
// orchestrator's own when the run uses a worktree.
type stepDeps struct {
	o     *Orchestrator
	rt    *agentRuntime
	git   *vcs.Git
	store *artifacts.Store
}

// promptPhase drives one agent turn for a step: open a session with the
// step's profile, register it in the cancellation slot for the duration
// of the prompt, and return the assembled turn.
func (d stepDeps) promptPhase(ctx context.Context, ec *workflow.ExecutionContext, def workflow.StepDefinition, prompt string) (protocol.PromptResult, error) {
	sess, err := d.rt.session(ctx, def)
	if err != nil {
		return protocol.PromptResult{}, fmt.Errorf("open %s session: %w", def.ID, err)
	}

	var result protocol.PromptResult
	err = ec.Slot.Use(sess, func() error {
		var perr error
		result, perr = sess.Prompt(ctx, prompt)
		return perr
	})
	if err != nil {
		return protocol.PromptResult{}, err
	}
	return result, nil
}

// finalizePhase stages the task namespace and settles the phase's commit
// through the tracker: agent-made commits count, leftover changes are
// committed under the step's message, and nothing happens on a clean,
// unmoved tree.
func (d stepDeps) finalizePhase(ctx context.Context, ec *workflow.ExecutionContext, def workflow.StepDefinition, tr *vcs.CommitTracker) error {
	if _, err := os.Stat(d.store.TaskDir(ec.Slug)); err == nil {
		if err := d.git.Add(ctx, d.store.Namespace(ec.Slug)); err != nil {
			return fmt.Errorf("stage artifacts: %w", err)
		}
	}

	res, err := tr.Finalize(ctx, commitMessage(def, ec), def.Push)
	if err != nil {
		return fmt.Errorf("finalize %s commit: %w", def.ID, err)
	}
	if res.CommitCreated {
		hash, _ := d.git.RevParse(ctx, "HEAD")
		d.o.bus.Publish(events.CommitCreatedEvent{
			TaskID: ec.TaskID(),
			Step:   def.ID,
			Hash:   hash,
			Pushed: res.PushedBranch,
		})
	}
	return nil
}

// commitMessage builds the fallback commit message for a phase.
func commitMessage(def workflow.StepDefinition, ec *workflow.ExecutionContext) string {
	title := ""
	if ec.Task != nil {
		title = strings.TrimSpace(ec.Task.Title)
	}
	if title == "" {
		title = ec.TaskID()
	}
	return def.ID + ": " + title
}

// cancelledResult is the outcome of a step whose turn the user cancelled:
// the pipeline halts without failing so a rerun picks up cleanly.
func cancelledResult(def workflow.StepDefinition, ec *workflow.ExecutionContext) workflow.StepResult {
	log.Info("step cancelled", log.TaskID(ec.TaskID()), log.Step(def.ID))
	return workflow.StepResult{Status: workflow.StepCompleted, Halt: true}
}

// researchStep investigates the codebase and records its findings as the
// research artifact. Open questions found in the research are extracted
// afterwards, best-effort.
type researchStep struct {
	stepDeps
	def workflow.StepDefinition
}

func (s *researchStep) Definition() workflow.StepDefinition { return s.def }

func (s *researchStep) Run(ctx context.Context, ec *workflow.ExecutionContext) (workflow.StepResult, error) {
	if s.store.HasArtifact(ec.Slug, artifacts.ResearchFile) {
		log.Info("research artifact exists, skipping", log.TaskID(ec.TaskID()))
		return workflow.StepResult{Status: workflow.StepSkipped}, nil
	}

	var tr *vcs.CommitTracker
	if s.def.Commit {
		var err error
		if tr, err = s.git.TrackOperation(ctx); err != nil {
			return workflow.StepResult{}, err
		}
	}

	result, err := s.promptPhase(ctx, ec, s.def, buildResearchPrompt(ec.Task))
	if err != nil {
		return workflow.StepResult{}, err
	}
	if result.StopReason == acp.StopReasonCancelled {
		return cancelledResult(s.def, ec), nil
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		// Nothing worth recording; the plan step works from the task
		// description alone.
		log.Warn("research turn produced no text", log.TaskID(ec.TaskID()))
	} else {
		if err := s.store.WriteArtifact(ec.Slug, artifacts.ResearchFile, text+"\n"); err != nil {
			return workflow.StepResult{}, err
		}
		s.extractQuestions(ctx, ec, text)
	}

	if tr != nil {
		if err := s.finalizePhase(ctx, ec, s.def, tr); err != nil {
			return workflow.StepResult{}, err
		}
	}
	return workflow.StepResult{Status: workflow.StepCompleted}, nil
}

// extractQuestions pulls open questions out of the research text and
// stores them for the user to answer. Every failure here is logged and
// swallowed; questions are a convenience, not a gate.
func (s *researchStep) extractQuestions(ctx context.Context, ec *workflow.ExecutionContext, research string) {
	if !s.o.extractor.Enabled() {
		return
	}

	questions, err := s.o.extractor.Questions(ctx, research)
	if err != nil {
		log.Warn("question extraction failed", log.TaskID(ec.TaskID()), log.Err(err))
		return
	}
	if len(questions) == 0 {
		return
	}

	if err := s.store.WriteQuestions(ec.Slug, questions); err != nil {
		log.Warn("questions not written", log.TaskID(ec.TaskID()), log.Err(err))
		return
	}

	log.Info("open questions recorded", log.TaskID(ec.TaskID()), "count", len(questions))
	s.o.bus.Publish(events.QuestionsEvent{TaskID: ec.TaskID(), Count: len(questions)})
}

// planStep turns the research into an implementation plan. In local mode
// it pauses while extracted questions are unanswered; cloud runs carry
// the open questions into the plan instead.
type planStep struct {
	stepDeps
	def workflow.StepDefinition
}

func (s *planStep) Definition() workflow.StepDefinition { return s.def }

func (s *planStep) Run(ctx context.Context, ec *workflow.ExecutionContext) (workflow.StepResult, error) {
	if s.store.HasArtifact(ec.Slug, artifacts.PlanFile) {
		log.Info("plan artifact exists, skipping", log.TaskID(ec.TaskID()))
		return workflow.StepResult{Status: workflow.StepSkipped}, nil
	}

	questions, err := s.store.ReadQuestions(ec.Slug)
	if err != nil {
		return workflow.StepResult{}, err
	}
	if len(questions) > 0 && !artifacts.Answered(questions) && !ec.Cloud {
		log.Info("open questions unanswered, pausing for answers",
			log.TaskID(ec.TaskID()),
			"file", s.store.ArtifactPath(ec.Slug, artifacts.QuestionsFile),
		)
		return workflow.StepResult{Status: workflow.StepSkipped, Halt: true}, nil
	}

	research, _ := s.store.ReadArtifact(ec.Slug, artifacts.ResearchFile)

	var tr *vcs.CommitTracker
	if s.def.Commit {
		if tr, err = s.git.TrackOperation(ctx); err != nil {
			return workflow.StepResult{}, err
		}
	}

	result, err := s.promptPhase(ctx, ec, s.def, buildPlanPrompt(ec.Task, research, questions))
	if err != nil {
		return workflow.StepResult{}, err
	}
	if result.StopReason == acp.StopReasonCancelled {
		return cancelledResult(s.def, ec), nil
	}

	if text := strings.TrimSpace(result.Text); text != "" {
		if err := s.store.WriteArtifact(ec.Slug, artifacts.PlanFile, text+"\n"); err != nil {
			return workflow.StepResult{}, err
		}
	}

	if tr != nil {
		if err := s.finalizePhase(ctx, ec, s.def, tr); err != nil {
			return workflow.StepResult{}, err
		}
	}
	return workflow.StepResult{Status: workflow.StepCompleted}, nil
}

// buildStep implements the plan and summarizes what it changed. Without a
// plan there is nothing to implement, so the step halts rather than
// improvise.
type buildStep struct {
	stepDeps
	def workflow.StepDefinition
}

func (s *buildStep) Definition() workflow.StepDefinition { return s.def }

func (s *buildStep) Run(ctx context.Context, ec *workflow.ExecutionContext) (workflow.StepResult, error) {
	if s.store.HasArtifact(ec.Slug, artifacts.BuildFile) {
		log.Info("build artifact exists, skipping", log.TaskID(ec.TaskID()))
		return workflow.StepResult{Status: workflow.StepSkipped}, nil
	}

	if !s.store.HasArtifact(ec.Slug, artifacts.PlanFile) {
		log.Warn("no plan to build from, pausing", log.TaskID(ec.TaskID()))
		return workflow.StepResult{Status: workflow.StepSkipped, Halt: true}, nil
	}

	// A plan written moments ago gets a human look before code changes
	// in local mode; cloud runs build straight through.
	if !ec.Cloud && !s.o.opts.SkipReview {
		if res, ok := ec.Result(StepPlan); ok && res.Status == workflow.StepCompleted {
			log.Info("plan ready for review, pausing before build",
				log.TaskID(ec.TaskID()),
				"file", s.store.ArtifactPath(ec.Slug, artifacts.PlanFile),
			)
			return workflow.StepResult{Status: workflow.StepSkipped, Halt: true}, nil
		}
	}

	plan, err := s.store.ReadArtifact(ec.Slug, artifacts.PlanFile)
	if err != nil {
		return workflow.StepResult{}, err
	}

	var tr *vcs.CommitTracker
	if s.def.Commit {
		if tr, err = s.git.TrackOperation(ctx); err != nil {
			return workflow.StepResult{}, err
		}
	}

	result, err := s.promptPhase(ctx, ec, s.def, buildBuildPrompt(ec.Task, plan))
	if err != nil {
		return workflow.StepResult{}, err
	}
	if result.StopReason == acp.StopReasonCancelled {
		return cancelledResult(s.def, ec), nil
	}

	if text := strings.TrimSpace(result.Text); text != "" {
		if err := s.store.WriteArtifact(ec.Slug, artifacts.BuildFile, text+"\n"); err != nil {
			return workflow.StepResult{}, err
		}
	}

	if tr != nil {
		if err := s.finalizePhase(ctx, ec, s.def, tr); err != nil {
			return workflow.StepResult{}, err
		}
	}
	return workflow.StepResult{Status: workflow.StepCompleted}, nil
}
