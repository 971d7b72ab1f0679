package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// ──────────────────────────────────────────────────────────────────────────────
// NewClient tests
// ──────────────────────────────────────────────────────────────────────────────

func TestNewClient(t *testing.T) {
	c, err := NewClient("http://localhost:9999", "test-token")
	if err != nil {
		t.Fatalf("NewClient error = %v", err)
	}

	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
	if c.token != "test-token" {
		t.Errorf("token = %q, want %q", c.token, "test-token")
	}
	if c.baseURL != "http://localhost:9999" {
		t.Errorf("baseURL = %q, want %q", c.baseURL, "http://localhost:9999")
	}
}

func TestNewClientNoBaseURL(t *testing.T) {
	_, err := NewClient("", "token")
	if !errors.Is(err, ErrNoBaseURL) {
		t.Errorf("error = %v, want %v", err, ErrNoBaseURL)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// ResolveToken tests
// ──────────────────────────────────────────────────────────────────────────────

func TestResolveToken(t *testing.T) {
	t.Run("env priority", func(t *testing.T) {
		t.Setenv("ABLAUF_TRACKER_TOKEN", "env-token")

		if got := ResolveToken("config-token"); got != "env-token" {
			t.Errorf("token = %q, want %q", got, "env-token")
		}
	})

	t.Run("config fallback", func(t *testing.T) {
		t.Setenv("ABLAUF_TRACKER_TOKEN", "")

		if got := ResolveToken("config-token"); got != "config-token" {
			t.Errorf("token = %q, want %q", got, "config-token")
		}
	})
}

// ──────────────────────────────────────────────────────────────────────────────
// HTTP mock tests for API calls
// ──────────────────────────────────────────────────────────────────────────────

// setupMockServer creates a test server with a custom handler
func setupMockServer(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()

	server := httptest.NewServer(handler)

	c := &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    server.URL,
		token:      "test-token",
	}

	return c, func() { server.Close() }
}

func TestGetTask(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("expected GET, got %s", r.Method)
			}
			if r.URL.Path != "/api/tasks/T-17" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer test-token" {
				t.Errorf("missing or incorrect Authorization header")
			}

			_ = json.NewEncoder(w).Encode(Task{
				ID:          "T-17",
				Title:       "Fix login flow",
				Description: "Users get logged out",
				Repository:  "git@example.com:acme/web.git",
				Status:      "open",
			})
		})

		client, cleanup := setupMockServer(t, handler)
		defer cleanup()

		task, err := client.GetTask(context.Background(), "T-17")
		if err != nil {
			t.Fatalf("GetTask error = %v", err)
		}
		if task.ID != "T-17" {
			t.Errorf("task.ID = %q, want %q", task.ID, "T-17")
		}
		if task.Title != "Fix login flow" {
			t.Errorf("task.Title = %q, want %q", task.Title, "Fix login flow")
		}
	})

	t.Run("not found", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Not Found"})
		})

		client, cleanup := setupMockServer(t, handler)
		defer cleanup()

		_, err := client.GetTask(context.Background(), "MISSING")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want %v", err, ErrNotFound)
		}
	})

	t.Run("server error", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("bad request"))
		})

		client, cleanup := setupMockServer(t, handler)
		defer cleanup()

		_, err := client.GetTask(context.Background(), "T-1")
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) {
			t.Fatalf("error = %v, want *HTTPError", err)
		}
		if httpErr.Code != http.StatusBadRequest {
			t.Errorf("Code = %d, want %d", httpErr.Code, http.StatusBadRequest)
		}
	})
}

func TestListTasks(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tasks" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("status"); got != "open" {
			t.Errorf("status filter = %q, want %q", got, "open")
		}

		_ = json.NewEncoder(w).Encode(TasksResponse{
			Tasks: []Task{
				{ID: "T-1", Title: "First"},
				{ID: "T-2", Title: "Second"},
			},
		})
	})

	client, cleanup := setupMockServer(t, handler)
	defer cleanup()

	tasks, err := client.ListTasks(context.Background(), "open")
	if err != nil {
		t.Fatalf("ListTasks error = %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}
	if tasks[1].ID != "T-2" {
		t.Errorf("tasks[1].ID = %q, want %q", tasks[1].ID, "T-2")
	}
}

func TestCreateRun(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/tasks/T-17/runs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var body map[string]any
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		if body["status"] != "started" {
			t.Errorf("status in body = %v, want started", body["status"])
		}

		_ = json.NewEncoder(w).Encode(TaskRun{
			ID:     "run-1",
			TaskID: "T-17",
			Status: RunStarted,
		})
	})

	client, cleanup := setupMockServer(t, handler)
	defer cleanup()

	run, err := client.CreateRun(context.Background(), "T-17")
	if err != nil {
		t.Fatalf("CreateRun error = %v", err)
	}
	if run.ID != "run-1" {
		t.Errorf("run.ID = %q, want %q", run.ID, "run-1")
	}
	if run.Status != RunStarted {
		t.Errorf("run.Status = %q, want %q", run.Status, RunStarted)
	}
}

func TestUpdateRun(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		if r.URL.Path != "/api/runs/run-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var update RunUpdate
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &update)
		if update.Status != RunInProgress {
			t.Errorf("update.Status = %q, want %q", update.Status, RunInProgress)
		}
		if update.Branch != "tasks/t-17-fix-login" {
			t.Errorf("update.Branch = %q, want %q", update.Branch, "tasks/t-17-fix-login")
		}

		_ = json.NewEncoder(w).Encode(TaskRun{
			ID:     "run-1",
			Status: RunInProgress,
			Branch: update.Branch,
		})
	})

	client, cleanup := setupMockServer(t, handler)
	defer cleanup()

	run, err := client.UpdateRun(context.Background(), "run-1", RunUpdate{
		Status: RunInProgress,
		Branch: "tasks/t-17-fix-login",
	})
	if err != nil {
		t.Fatalf("UpdateRun error = %v", err)
	}
	if run.Branch != "tasks/t-17-fix-login" {
		t.Errorf("run.Branch = %q, want %q", run.Branch, "tasks/t-17-fix-login")
	}
}

func TestAppendLog(t *testing.T) {
	var called atomic.Bool
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
		if r.URL.Path != "/api/runs/run-1/logs" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var body map[string]any
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)
		if body["message"] != "research step completed" {
			t.Errorf("message = %v, want 'research step completed'", body["message"])
		}

		w.WriteHeader(http.StatusNoContent)
	})

	client, cleanup := setupMockServer(t, handler)
	defer cleanup()

	if err := client.AppendLog(context.Background(), "run-1", "research step completed"); err != nil {
		t.Fatalf("AppendLog error = %v", err)
	}
	if !called.Load() {
		t.Error("handler was not called")
	}
}

func TestRetryOnServerError(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Task{ID: "T-1"})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "token")
	if err != nil {
		t.Fatal(err)
	}

	task, err := client.GetTask(context.Background(), "T-1")
	if err != nil {
		t.Fatalf("GetTask after retry error = %v", err)
	}
	if task.ID != "T-1" {
		t.Errorf("task.ID = %q, want %q", task.ID, "T-1")
	}
	if attempts.Load() < 2 {
		t.Errorf("attempts = %d, want >= 2 (one retry)", attempts.Load())
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Type helpers
// ──────────────────────────────────────────────────────────────────────────────

func TestPRURL(t *testing.T) {
	tests := []struct {
		name string
		run  *TaskRun
		want string
	}{
		{"nil run", nil, ""},
		{"no output", &TaskRun{}, ""},
		{"pr_url set", &TaskRun{Output: map[string]any{"pr_url": "https://example.com/pr/1"}}, "https://example.com/pr/1"},
		{"pr_url wrong type", &TaskRun{Output: map[string]any{"pr_url": 42}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.run.PRURL(); got != tt.want {
				t.Errorf("PRURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPError(t *testing.T) {
	err := &HTTPError{Code: 502, Message: "bad gateway"}
	if err.Error() != "HTTP 502: bad gateway" {
		t.Errorf("Error() = %q, want %q", err.Error(), "HTTP 502: bad gateway")
	}
	if err.HTTPStatusCode() != 502 {
		t.Errorf("HTTPStatusCode() = %d, want 502", err.HTTPStatusCode())
	}

	bare := &HTTPError{Code: 500}
	if bare.Error() != "HTTP 500" {
		t.Errorf("Error() = %q, want %q", bare.Error(), "HTTP 500")
	}
}
