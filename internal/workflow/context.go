package workflow

import (
	"sync"

	"github.com/valksor/go-ablauf/internal/tracker"
)

// ExecutionContext is the mutable bag one task run shares across steps.
// Step results are append-only: the first result recorded for a step id
// sticks.
type ExecutionContext struct {
	Task    *tracker.Task
	Run     *tracker.TaskRun
	Slug    string
	WorkDir string

	// Cloud marks runs driven by the tracking service. Cloud runs never
	// halt to wait for local answers.
	Cloud bool

	// Slot tracks the currently active protocol session for cancellation.
	Slot *SessionSlot

	mu      sync.Mutex
	results map[string]StepResult
}

// NewExecutionContext builds the shared context for one task run.
func NewExecutionContext(task *tracker.Task, run *tracker.TaskRun, slug, workDir string) *ExecutionContext {
	return &ExecutionContext{
		Task:    task,
		Run:     run,
		Slug:    slug,
		WorkDir: workDir,
		Slot:    &SessionSlot{},
		results: make(map[string]StepResult),
	}
}

// TaskID returns the tracked task's id, empty when no task is attached.
func (ec *ExecutionContext) TaskID() string {
	if ec.Task == nil {
		return ""
	}
	return ec.Task.ID
}

// RunID returns the tracked run's id, empty when no run is attached.
func (ec *ExecutionContext) RunID() string {
	if ec.Run == nil {
		return ""
	}
	return ec.Run.ID
}

// RecordResult stores a step outcome. A result already recorded for the
// step id is kept.
func (ec *ExecutionContext) RecordResult(stepID string, res StepResult) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	if ec.results == nil {
		ec.results = make(map[string]StepResult)
	}
	if _, exists := ec.results[stepID]; exists {
		return
	}
	ec.results[stepID] = res
}

// Result returns the recorded outcome for a step id.
func (ec *ExecutionContext) Result(stepID string) (StepResult, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	res, ok := ec.results[stepID]
	return res, ok
}

// Results returns a copy of all recorded outcomes keyed by step id.
func (ec *ExecutionContext) Results() map[string]StepResult {
	ec.mu.Lock()
	defer ec.mu.Unlock()

	out := make(map[string]StepResult, len(ec.results))
	for id, res := range ec.results {
		out[id] = res
	}
	return out
}
