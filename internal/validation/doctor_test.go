package validation

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valksor/go-ablauf/internal/config"
)

func TestResultSeverityAccounting(t *testing.T) {
	r := NewResult()
	if !r.Valid {
		t.Error("new result should be valid")
	}

	r.AddInfo("INFO_CODE", "just information", "", "agent")
	if !r.Valid || r.Errors != 0 || r.Warnings != 0 {
		t.Errorf("info changed counts: valid=%v errors=%d warnings=%d", r.Valid, r.Errors, r.Warnings)
	}

	r.AddWarning("WARN_CODE", "a warning", "", "git")
	if !r.Valid {
		t.Error("warning should not invalidate result")
	}
	if r.Warnings != 1 {
		t.Errorf("Warnings = %d, want 1", r.Warnings)
	}

	r.AddError("ERR_CODE", "an error", "", "git")
	if r.Valid {
		t.Error("error should invalidate result")
	}
	if r.Errors != 1 {
		t.Errorf("Errors = %d, want 1", r.Errors)
	}
	if len(r.Findings) != 3 {
		t.Errorf("Findings count = %d, want 3", len(r.Findings))
	}
}

func TestResultMerge(t *testing.T) {
	a := NewResult()
	a.AddWarning("W1", "warning one", "", "git")

	b := NewResult()
	b.AddError("E1", "error one", "", "agent")

	a.Merge(b)
	if a.Valid {
		t.Error("merging an error should invalidate the target")
	}
	if a.Errors != 1 || a.Warnings != 1 {
		t.Errorf("counts after merge: errors=%d warnings=%d", a.Errors, a.Warnings)
	}
	if len(a.Findings) != 2 {
		t.Errorf("Findings count = %d, want 2", len(a.Findings))
	}

	a.Merge(nil) // must not panic
	if len(a.Findings) != 2 {
		t.Error("merging nil changed findings")
	}
}

func TestResultFormatText(t *testing.T) {
	r := NewResult()
	out := r.Format("text")
	if !strings.Contains(out, "Environment is READY") {
		t.Errorf("empty result output = %q, want READY verdict", out)
	}

	r.AddWarningWithSuggestion("GH_NOT_FOUND", "GitHub CLI (gh) is not on PATH", "", "gh", "Install gh")
	out = r.Format("text")
	if !strings.Contains(out, "gh:") {
		t.Error("output should group findings under their subsystem")
	}
	if !strings.Contains(out, "WARNING [GH_NOT_FOUND]") {
		t.Errorf("output missing severity and code: %q", out)
	}
	if !strings.Contains(out, "Suggestion: Install gh") {
		t.Error("output missing suggestion line")
	}
	if !strings.Contains(out, "READY (with warnings)") {
		t.Errorf("warning-only result should still be ready: %q", out)
	}

	r.AddError("GIT_NOT_FOUND", "git is not on PATH", "", "git")
	out = r.Format("text")
	if !strings.Contains(out, "1 error(s), 1 warning(s)") {
		t.Errorf("output missing summary: %q", out)
	}
	if !strings.Contains(out, "NOT READY") {
		t.Errorf("error result should be NOT READY: %q", out)
	}
}

func TestResultFormatJSON(t *testing.T) {
	r := NewResult()
	r.AddError("GIT_NOT_FOUND", "git is not on PATH", "", "git")

	out := r.Format("json")
	for _, want := range []string{`"valid": false`, `"GIT_NOT_FOUND"`, `"errors": 1`} {
		if !strings.Contains(out, want) {
			t.Errorf("json output missing %s: %q", want, out)
		}
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"bare version", "0.5.1", "v0.5.1"},
		{"v prefix", "v1.2.3", "v1.2.3"},
		{"name and version", "claude-code-acp 0.5.1", "v0.5.1"},
		{"trailing build info", "agent 2.0.0 (build 1234)", "v2.0.0"},
		{"short version", "agent 1.2", "v1.2.0"},
		{"no version", "no numbers here", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseVersion(tt.line); got != tt.want {
				t.Errorf("ParseVersion(%q) = %q, want %q", tt.line, got, tt.want)
			}
		})
	}
}

func findingCodes(r *Result) map[string]Severity {
	codes := make(map[string]Severity, len(r.Findings))
	for _, f := range r.Findings {
		codes[f.Code] = f.Severity
	}
	return codes
}

func TestCheckConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	d := New(dir, Options{})

	result := NewResult()
	cfg := d.checkConfig(result)
	if cfg == nil {
		t.Fatal("defaults should load")
	}

	codes := findingCodes(result)
	if codes["CONFIG_NOT_FOUND"] != SeverityInfo {
		t.Errorf("missing config should be info, findings: %v", codes)
	}
	if !result.Valid {
		t.Error("missing config file should not invalidate result")
	}
}

func TestCheckConfigInvalid(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, config.AblaufDir)
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	badYAML := "agent:\n  command: [not, a, string]\n"
	if err := os.WriteFile(filepath.Join(cfgDir, config.ConfigFileName), []byte(badYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	d := New(dir, Options{})
	result := NewResult()
	cfg := d.checkConfig(result)
	if cfg != nil {
		t.Error("broken config should return nil")
	}
	if result.Valid {
		t.Error("broken config should invalidate result")
	}
	if findingCodes(result)["CONFIG_INVALID"] != SeverityError {
		t.Errorf("expected CONFIG_INVALID error, findings: %+v", result.Findings)
	}
}

func TestCheckAgentMissing(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Agent.Command = "ablauf-doctor-no-such-agent"

	d := New(t.TempDir(), Options{})
	result := NewResult()
	d.checkAgent(context.Background(), cfg, result)

	if result.Valid {
		t.Error("missing agent should invalidate result")
	}
	if findingCodes(result)["AGENT_NOT_FOUND"] != SeverityError {
		t.Errorf("expected AGENT_NOT_FOUND error, findings: %+v", result.Findings)
	}
}

func TestCheckTracker(t *testing.T) {
	t.Setenv("ABLAUF_TRACKER_TOKEN", "")
	d := New(t.TempDir(), Options{})

	cfg := config.NewDefault()
	result := NewResult()
	d.checkTracker(cfg, result)
	if findingCodes(result)["TRACKER_NOT_CONFIGURED"] != SeverityInfo {
		t.Errorf("unconfigured tracker should be info, findings: %+v", result.Findings)
	}

	cfg.Tracker.BaseURL = "https://tracker.example.com"
	result = NewResult()
	d.checkTracker(cfg, result)
	if findingCodes(result)["TRACKER_TOKEN_MISSING"] != SeverityWarning {
		t.Errorf("tracker without token should warn, findings: %+v", result.Findings)
	}
	if !result.Valid {
		t.Error("token warning should not invalidate result")
	}

	cfg.Tracker.Token = "secret"
	result = NewResult()
	d.checkTracker(cfg, result)
	if len(result.Findings) != 0 {
		t.Errorf("configured tracker produced findings: %+v", result.Findings)
	}
}

func TestCheckExtraction(t *testing.T) {
	d := New(t.TempDir(), Options{})
	cfg := config.NewDefault()

	t.Setenv("ANTHROPIC_API_KEY", "")
	result := NewResult()
	d.checkExtraction(cfg, result)
	if findingCodes(result)["EXTRACTION_KEY_MISSING"] != SeverityInfo {
		t.Errorf("missing key should be info, findings: %+v", result.Findings)
	}

	cfg.Extract.Disabled = true
	result = NewResult()
	d.checkExtraction(cfg, result)
	if len(result.Findings) != 0 {
		t.Errorf("disabled extraction produced findings: %+v", result.Findings)
	}
}

func TestRunStrictMode(t *testing.T) {
	// A bare temp dir is not a repository, so findings are guaranteed.
	// Strict only changes how warnings count.
	dir := t.TempDir()
	t.Setenv("ABLAUF_TRACKER_TOKEN", "")
	t.Setenv("ABLAUF_AGENT_COMMAND", "ablauf-doctor-no-such-agent")

	result := New(dir, Options{}).Run(context.Background())
	if result.Valid {
		t.Error("non-repository directory should not be ready")
	}

	strict := New(dir, Options{Strict: true}).Run(context.Background())
	if strict.Valid {
		t.Error("strict run should not be ready either")
	}
}

func TestRunInRepository(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	git := func(args ...string) error {
		cmd := exec.CommandContext(ctx, "git", args...)
		cmd.Dir = dir
		return cmd.Run()
	}
	if err := git("init"); err != nil {
		t.Skipf("git not available: %v", err)
	}

	t.Setenv("ABLAUF_AGENT_COMMAND", "ablauf-doctor-no-such-agent")
	result := New(dir, Options{}).Run(ctx)

	codes := findingCodes(result)
	if _, found := codes["NOT_A_REPOSITORY"]; found {
		t.Error("initialized repository flagged as NOT_A_REPOSITORY")
	}
	if codes["REMOTE_MISSING"] != SeverityWarning {
		t.Errorf("repo without remote should warn, findings: %+v", result.Findings)
	}
	if codes["AGENT_NOT_FOUND"] != SeverityError {
		t.Errorf("expected AGENT_NOT_FOUND error, findings: %+v", result.Findings)
	}
}
