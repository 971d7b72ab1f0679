// Package workflow drives the fixed step pipeline of a task run:
// research, plan, build, executed strictly in order against one shared
// execution context. Steps decide for themselves whether to run, skip,
// or halt; the runner sequences them and publishes progress events.
package workflow

import "context"

// StepDefinition is the static configuration of one pipeline step.
type StepDefinition struct {
	// ID is the stable step identifier used in results and logs.
	ID string

	// Name is the human-readable step name.
	Name string

	// AgentRole seeds the session's system prompt.
	AgentRole string

	// Model selects the agent model for this step, empty for the default.
	Model string

	// PermissionMode is forwarded to the session when set.
	PermissionMode string

	// Commit stages and commits the step's artifacts when true. Push
	// additionally pushes the branch after a commit.
	Commit bool
	Push   bool
}

// StepStatus describes how a step concluded.
type StepStatus string

const (
	// StepCompleted means the step did its work.
	StepCompleted StepStatus = "completed"

	// StepSkipped means the step found its work already done.
	StepSkipped StepStatus = "skipped"
)

// StepResult is the outcome of one step execution.
type StepResult struct {
	Status StepStatus

	// Halt stops the pipeline after this step without failing the run.
	Halt bool
}

// Step is one phase of the pipeline.
type Step interface {
	Definition() StepDefinition
	Run(ctx context.Context, ec *ExecutionContext) (StepResult, error)
}
