// Package config loads workspace configuration from .ablauf/config.yaml
// and .ablauf/.env.
package config

import "fmt"

// Config holds workspace configuration that users can customize.
type Config struct {
	Agent   AgentSettings           `yaml:"agent"`
	Tracker TrackerSettings         `yaml:"tracker,omitempty"`
	Git     GitSettings             `yaml:"git"`
	Steps   map[string]StepSettings `yaml:"steps,omitempty"`
	Extract ExtractSettings         `yaml:"extract,omitempty"`
	Env     map[string]string       `yaml:"env,omitempty"`
}

// AgentSettings configures the coding agent subprocess.
type AgentSettings struct {
	Command    string   `yaml:"command"`               // Agent executable (default: "claude-code-acp")
	Args       []string `yaml:"args,omitempty"`        // Extra CLI arguments
	MinVersion string   `yaml:"min_version,omitempty"` // Minimum version checked by doctor (semver)
}

// TrackerSettings configures the task-tracking service client.
type TrackerSettings struct {
	BaseURL string `yaml:"base_url,omitempty"` // Tracking service URL
	Token   string `yaml:"token,omitempty"`    // API token (env vars take priority)
}

// GitSettings holds git-related configuration.
type GitSettings struct {
	BaseBranch string `yaml:"base_branch,omitempty"` // PR base override (default: detected)
	DraftPR    bool   `yaml:"draft_pr,omitempty"`    // Create PRs as draft
	Remote     string `yaml:"remote,omitempty"`      // Remote name (default: origin)
}

// StepSettings holds per-step overrides keyed by step id
// (research, plan, build).
type StepSettings struct {
	Model          string `yaml:"model,omitempty"`           // Model identifier for the step
	PermissionMode string `yaml:"permission_mode,omitempty"` // Session permission mode
}

// ExtractSettings configures the question-extraction helper.
type ExtractSettings struct {
	Model    string `yaml:"model,omitempty"` // Extraction model (default: claude-haiku-4-5)
	Disabled bool   `yaml:"disabled,omitempty"`
}

// NewDefault creates a Config with default values.
func NewDefault() *Config {
	return &Config{
		Agent: AgentSettings{
			Command: "claude-code-acp",
		},
		Git: GitSettings{
			Remote: "origin",
		},
		Steps: map[string]StepSettings{
			"research": {PermissionMode: "plan"},
			"plan":     {PermissionMode: "plan"},
			"build":    {PermissionMode: "acceptEdits"},
		},
		Extract: ExtractSettings{
			Model: "claude-haiku-4-5",
		},
		Env: make(map[string]string),
	}
}

// StepFor returns the settings for a step id, zero value when unset.
func (c *Config) StepFor(id string) StepSettings {
	if c.Steps == nil {
		return StepSettings{}
	}
	return c.Steps[id]
}

// Validate performs validation beyond what parsing enforces.
func (c *Config) Validate() error {
	if c.Agent.Command == "" {
		return fmt.Errorf("agent command must not be empty")
	}
	for id, step := range c.Steps {
		switch step.PermissionMode {
		case "", "default", "plan", "acceptEdits", "bypassPermissions":
			// OK
		default:
			return fmt.Errorf("step %s: invalid permission mode %q", id, step.PermissionMode)
		}
	}
	return nil
}
