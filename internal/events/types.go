package events

import "time"

// Type identifies event categories
type Type string

const (
	TypeRunStarted    Type = "run_started"
	TypeRunCompleted  Type = "run_completed"
	TypeRunFailed     Type = "run_failed"
	TypeStepStarted   Type = "step_started"
	TypeStepCompleted Type = "step_completed"
	TypeBranchReady   Type = "branch_ready"
	TypeCommitCreated Type = "commit_created"
	TypePRCreated     Type = "pr_created"
	TypeAgentMessage  Type = "agent_message"
	TypeToolCall      Type = "tool_call"
	TypeQuestions     Type = "questions_recorded"
	TypeError         Type = "error"
)

// Event is the base event structure
type Event struct {
	Type      Type
	Timestamp time.Time
	Data      map[string]any
}

// Eventer interface for typed events
type Eventer interface {
	ToEvent() Event
}

// RunStartedEvent when a task run begins
type RunStartedEvent struct {
	TaskID    string
	RunID     string
	Timestamp time.Time
}

func (e RunStartedEvent) ToEvent() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return Event{
		Type:      TypeRunStarted,
		Timestamp: e.Timestamp,
		Data: map[string]any{
			"task_id": e.TaskID,
			"run_id":  e.RunID,
		},
	}
}

// RunCompletedEvent when a task run finishes successfully
type RunCompletedEvent struct {
	TaskID    string
	RunID     string
	PRURL     string
	Timestamp time.Time
}

func (e RunCompletedEvent) ToEvent() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return Event{
		Type:      TypeRunCompleted,
		Timestamp: e.Timestamp,
		Data: map[string]any{
			"task_id": e.TaskID,
			"run_id":  e.RunID,
			"pr_url":  e.PRURL,
		},
	}
}

// RunFailedEvent when a task run fails
type RunFailedEvent struct {
	TaskID    string
	RunID     string
	Error     error
	Timestamp time.Time
}

func (e RunFailedEvent) ToEvent() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	errMsg := ""
	if e.Error != nil {
		errMsg = e.Error.Error()
	}
	return Event{
		Type:      TypeRunFailed,
		Timestamp: e.Timestamp,
		Data: map[string]any{
			"task_id": e.TaskID,
			"run_id":  e.RunID,
			"error":   errMsg,
		},
	}
}

// StepStartedEvent when a workflow step begins
type StepStartedEvent struct {
	TaskID    string
	Step      string
	Timestamp time.Time
}

func (e StepStartedEvent) ToEvent() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return Event{
		Type:      TypeStepStarted,
		Timestamp: e.Timestamp,
		Data: map[string]any{
			"task_id": e.TaskID,
			"step":    e.Step,
		},
	}
}

// StepCompletedEvent when a workflow step finishes, was skipped, or halted
type StepCompletedEvent struct {
	TaskID    string
	Step      string
	Status    string // completed, skipped
	Halted    bool
	Timestamp time.Time
}

func (e StepCompletedEvent) ToEvent() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return Event{
		Type:      TypeStepCompleted,
		Timestamp: e.Timestamp,
		Data: map[string]any{
			"task_id": e.TaskID,
			"step":    e.Step,
			"status":  e.Status,
			"halted":  e.Halted,
		},
	}
}

// BranchReadyEvent when the task branch is checked out
type BranchReadyEvent struct {
	TaskID    string
	Branch    string
	Created   bool // false when an existing branch was reused
	Timestamp time.Time
}

func (e BranchReadyEvent) ToEvent() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return Event{
		Type:      TypeBranchReady,
		Timestamp: e.Timestamp,
		Data: map[string]any{
			"task_id": e.TaskID,
			"branch":  e.Branch,
			"created": e.Created,
		},
	}
}

// CommitCreatedEvent when a step commit lands
type CommitCreatedEvent struct {
	TaskID    string
	Step      string
	Hash      string
	Pushed    bool
	Timestamp time.Time
}

func (e CommitCreatedEvent) ToEvent() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return Event{
		Type:      TypeCommitCreated,
		Timestamp: e.Timestamp,
		Data: map[string]any{
			"task_id": e.TaskID,
			"step":    e.Step,
			"hash":    e.Hash,
			"pushed":  e.Pushed,
		},
	}
}

// PRCreatedEvent when a pull request is created
type PRCreatedEvent struct {
	TaskID    string
	PRNumber  int
	PRURL     string
	Timestamp time.Time
}

func (e PRCreatedEvent) ToEvent() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return Event{
		Type:      TypePRCreated,
		Timestamp: e.Timestamp,
		Data: map[string]any{
			"task_id":   e.TaskID,
			"pr_number": e.PRNumber,
			"pr_url":    e.PRURL,
		},
	}
}

// AgentMessageEvent for streamed agent output
type AgentMessageEvent struct {
	TaskID    string
	SessionID string
	Content   string
	Role      string // assistant, thought, user
	Timestamp time.Time
}

func (e AgentMessageEvent) ToEvent() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return Event{
		Type:      TypeAgentMessage,
		Timestamp: e.Timestamp,
		Data: map[string]any{
			"task_id":    e.TaskID,
			"session_id": e.SessionID,
			"content":    e.Content,
			"role":       e.Role,
		},
	}
}

// ToolCallEvent when the agent starts or updates a tool call
type ToolCallEvent struct {
	TaskID    string
	SessionID string
	Title     string
	Status    string
	Timestamp time.Time
}

func (e ToolCallEvent) ToEvent() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return Event{
		Type:      TypeToolCall,
		Timestamp: e.Timestamp,
		Data: map[string]any{
			"task_id":    e.TaskID,
			"session_id": e.SessionID,
			"title":      e.Title,
			"status":     e.Status,
		},
	}
}

// QuestionsEvent when open questions are extracted from research
type QuestionsEvent struct {
	TaskID    string
	Count     int
	Timestamp time.Time
}

func (e QuestionsEvent) ToEvent() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return Event{
		Type:      TypeQuestions,
		Timestamp: e.Timestamp,
		Data: map[string]any{
			"task_id": e.TaskID,
			"count":   e.Count,
		},
	}
}

// ErrorEvent for errors
type ErrorEvent struct {
	TaskID    string
	Error     error
	Fatal     bool
	Timestamp time.Time
}

func (e ErrorEvent) ToEvent() Event {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	errMsg := ""
	if e.Error != nil {
		errMsg = e.Error.Error()
	}
	return Event{
		Type:      TypeError,
		Timestamp: e.Timestamp,
		Data: map[string]any{
			"task_id": e.TaskID,
			"error":   errMsg,
			"fatal":   e.Fatal,
		},
	}
}
