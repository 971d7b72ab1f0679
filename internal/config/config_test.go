package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()

	if cfg.Agent.Command != "claude-code-acp" {
		t.Errorf("Agent.Command = %q, want %q", cfg.Agent.Command, "claude-code-acp")
	}
	if cfg.Git.Remote != "origin" {
		t.Errorf("Git.Remote = %q, want %q", cfg.Git.Remote, "origin")
	}
	if got := cfg.StepFor("build").PermissionMode; got != "acceptEdits" {
		t.Errorf("StepFor(build).PermissionMode = %q, want %q", got, "acceptEdits")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if cfg.Agent.Command != "claude-code-acp" {
		t.Errorf("missing file should yield defaults, Agent.Command = %q", cfg.Agent.Command)
	}
}

func TestLoadParsesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
agent:
    command: my-agent
    min_version: v1.2.0
tracker:
    base_url: http://localhost:8080
git:
    base_branch: develop
steps:
    build:
        model: claude-sonnet-4-5
        permission_mode: bypassPermissions
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Agent.Command != "my-agent" {
		t.Errorf("Agent.Command = %q, want %q", cfg.Agent.Command, "my-agent")
	}
	if cfg.Agent.MinVersion != "v1.2.0" {
		t.Errorf("Agent.MinVersion = %q, want %q", cfg.Agent.MinVersion, "v1.2.0")
	}
	if cfg.Tracker.BaseURL != "http://localhost:8080" {
		t.Errorf("Tracker.BaseURL = %q, want %q", cfg.Tracker.BaseURL, "http://localhost:8080")
	}
	if cfg.Git.BaseBranch != "develop" {
		t.Errorf("Git.BaseBranch = %q, want %q", cfg.Git.BaseBranch, "develop")
	}
	if got := cfg.StepFor("build").PermissionMode; got != "bypassPermissions" {
		t.Errorf("StepFor(build).PermissionMode = %q, want %q", got, "bypassPermissions")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
tracker:
    base_url: http://from-file
`)

	t.Setenv("ABLAUF_TRACKER_URL", "http://from-env")
	t.Setenv("ABLAUF_AGENT_COMMAND", "env-agent")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Tracker.BaseURL != "http://from-env" {
		t.Errorf("Tracker.BaseURL = %q, want env override %q", cfg.Tracker.BaseURL, "http://from-env")
	}
	if cfg.Agent.Command != "env-agent" {
		t.Errorf("Agent.Command = %q, want env override %q", cfg.Agent.Command, "env-agent")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "agent: [not a mapping")

	if _, err := Load(dir); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidateRejectsBadPermissionMode(t *testing.T) {
	cfg := NewDefault()
	cfg.Steps["build"] = StepSettings{PermissionMode: "yolo"}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "permission mode") {
		t.Errorf("error = %v, want mention of permission mode", err)
	}
}

func TestValidateRejectsEmptyAgentCommand(t *testing.T) {
	cfg := NewDefault()
	cfg.Agent.Command = ""

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for empty agent command")
	}
}

func TestTrackerToken(t *testing.T) {
	cfg := NewDefault()
	cfg.Tracker.Token = "from-config"

	if got := cfg.TrackerToken(); got != "from-config" {
		t.Errorf("TrackerToken = %q, want %q", got, "from-config")
	}

	t.Setenv("ABLAUF_TRACKER_TOKEN", "from-env")
	if got := cfg.TrackerToken(); got != "from-env" {
		t.Errorf("TrackerToken = %q, want env to win: %q", got, "from-env")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := NewDefault()
	cfg.Agent.Command = "saved-agent"
	if err := cfg.Save(dir); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load after Save: %v", err)
	}
	if loaded.Agent.Command != "saved-agent" {
		t.Errorf("Agent.Command after round trip = %q, want %q", loaded.Agent.Command, "saved-agent")
	}
}

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, AblaufDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(Path(dir), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
