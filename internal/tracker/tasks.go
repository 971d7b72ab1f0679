package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Task represents a tracked task.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Repository  string   `json:"repository"`
	Status      string   `json:"status"`
	LatestRun   *TaskRun `json:"latest_run,omitempty"`
}

// TasksResponse wraps a task list response.
type TasksResponse struct {
	Tasks []Task `json:"tasks"`
}

// GetTask fetches a task by ID.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	path := "/api/tasks/" + url.PathEscape(taskID)

	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task: %w", err)
	}

	return &task, nil
}

// ListTasks lists tasks, optionally filtered by status.
func (c *Client) ListTasks(ctx context.Context, status string) ([]Task, error) {
	path := "/api/tasks"
	if status != "" {
		params := url.Values{}
		params.Set("status", status)
		path += "?" + params.Encode()
	}

	body, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp TasksResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal tasks: %w", err)
	}

	return resp.Tasks, nil
}
