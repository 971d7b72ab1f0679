package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RunStatus is the lifecycle state of a task run.
type RunStatus string

const (
	RunStarted    RunStatus = "started"
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// TaskRun represents one execution attempt of a task.
type TaskRun struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"task_id"`
	Status    RunStatus      `json:"status"`
	Branch    string         `json:"branch,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
	State     map[string]any `json:"state,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// PRURL returns the pull request URL recorded in the run output, empty
// when none was recorded.
func (r *TaskRun) PRURL() string {
	if r == nil || r.Output == nil {
		return ""
	}
	if u, ok := r.Output["pr_url"].(string); ok {
		return u
	}
	return ""
}

// RunUpdate carries partial updates for a run. Zero-valued fields are
// left unchanged by the service.
type RunUpdate struct {
	Status RunStatus      `json:"status,omitempty"`
	Branch string         `json:"branch,omitempty"`
	Output map[string]any `json:"output,omitempty"`
	State  map[string]any `json:"state,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// CreateRun opens a new run for the task in the started state.
func (c *Client) CreateRun(ctx context.Context, taskID string) (*TaskRun, error) {
	path := "/api/tasks/" + url.PathEscape(taskID) + "/runs"

	body, err := c.doRequest(ctx, http.MethodPost, path, map[string]any{
		"status": RunStarted,
	})
	if err != nil {
		return nil, err
	}

	var run TaskRun
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}

	return &run, nil
}

// UpdateRun applies a partial update to a run.
func (c *Client) UpdateRun(ctx context.Context, runID string, update RunUpdate) (*TaskRun, error) {
	path := "/api/runs/" + url.PathEscape(runID)

	body, err := c.doRequest(ctx, http.MethodPatch, path, update)
	if err != nil {
		return nil, err
	}

	var run TaskRun
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}

	return &run, nil
}

// AppendLog adds a log line to a run. Log appends are fire-and-forget
// for the orchestrator, but the transport error is still reported.
func (c *Client) AppendLog(ctx context.Context, runID, message string) error {
	path := "/api/runs/" + url.PathEscape(runID) + "/logs"

	_, err := c.doRequest(ctx, http.MethodPost, path, map[string]any{
		"message": message,
	})
	return err
}
