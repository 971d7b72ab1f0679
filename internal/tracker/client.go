// Package tracker is a client for the task-tracking service that owns
// tasks and their execution runs.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultTimeout = 30 * time.Second
	retryMax       = 3
	retryWaitMin   = 500 * time.Millisecond
	retryWaitMax   = 10 * time.Second
)

var (
	// ErrNoBaseURL indicates the tracking service URL is not configured.
	ErrNoBaseURL = errors.New("tracker base URL not configured")
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
)

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	Message string
	Code    int
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.Code)
}

// HTTPStatusCode returns the HTTP status code.
func (e *HTTPError) HTTPStatusCode() int {
	return e.Code
}

// Client wraps the tracking service API. Transient failures (429, 5xx,
// network errors) are retried with backoff by the underlying client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a tracking service client. baseURL must not have a
// trailing slash.
func NewClient(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, ErrNoBaseURL
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = retryMax
	rc.RetryWaitMin = retryWaitMin
	rc.RetryWaitMax = retryWaitMax
	rc.HTTPClient.Timeout = defaultTimeout
	rc.Logger = nil

	return &Client{
		httpClient: rc.StandardClient(),
		baseURL:    baseURL,
		token:      token,
	}, nil
}

// ResolveToken finds the tracker token from multiple sources
// Priority:
//  1. ABLAUF_TRACKER_TOKEN
//  2. Config value
func ResolveToken(configToken string) string {
	if t := os.Getenv("ABLAUF_TRACKER_TOKEN"); t != "" {
		return t
	}
	return configToken
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	u := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tracker request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return nil, &HTTPError{Code: resp.StatusCode, Message: string(respBody)}
	}

	return respBody, nil
}
