package validation

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/valksor/go-ablauf/internal/config"
	"github.com/valksor/go-ablauf/internal/transport"
	"github.com/valksor/go-ablauf/internal/vcs"
)

// Options configures doctor behavior.
type Options struct {
	Strict bool // Treat warnings as errors
}

// Doctor checks whether this directory can run a task end to end.
type Doctor struct {
	workDir string
	opts    Options
}

// New creates a doctor for the given working directory.
func New(workDir string, opts Options) *Doctor {
	return &Doctor{
		workDir: workDir,
		opts:    opts,
	}
}

// Run executes every check and returns the combined result. Checks that
// depend on a loadable config are skipped when loading fails; everything
// else runs regardless of earlier findings.
func (d *Doctor) Run(ctx context.Context) *Result {
	result := NewResult()

	d.checkGit(ctx, result)
	cfg := d.checkConfig(result)
	if cfg != nil {
		d.checkAgent(ctx, cfg, result)
		d.checkTracker(cfg, result)
		d.checkExtraction(cfg, result)
	}
	d.checkPRTooling(result)

	// In strict mode, warnings make the environment unhealthy
	if d.opts.Strict && result.Warnings > 0 {
		result.Valid = false
	}

	return result
}

// checkGit verifies git is installed, the working directory belongs to a
// repository, and a remote exists for pushing.
func (d *Doctor) checkGit(ctx context.Context, result *Result) {
	if _, err := exec.LookPath("git"); err != nil {
		result.AddErrorWithSuggestion("GIT_NOT_FOUND",
			"git is not on PATH", "", "git",
			"Install git; branches and commits are managed through it")
		return
	}

	if !vcs.IsRepo(ctx, d.workDir) {
		result.AddErrorWithSuggestion("NOT_A_REPOSITORY",
			fmt.Sprintf("%s is not inside a git repository", d.workDir), "", "git",
			"Run ablauf from a repository checkout")
		return
	}

	g, err := vcs.Open(ctx, d.workDir)
	if err != nil {
		result.AddError("GIT_OPEN_FAILED",
			fmt.Sprintf("Failed to open repository: %s", err), "", "git")
		return
	}

	if _, err := g.RemoteURL(ctx); err != nil {
		result.AddWarningWithSuggestion("REMOTE_MISSING",
			fmt.Sprintf("No %q remote configured", g.Remote()), "git.remote", "git",
			"Pushing and pull requests need a remote; add one or run with --no-pr")
	}
}

// checkConfig loads the workspace config and reports problems with it.
// Returns nil when the config cannot be loaded.
func (d *Doctor) checkConfig(result *Result) *config.Config {
	configPath := config.Path(d.workDir)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		result.AddInfo("CONFIG_NOT_FOUND",
			"No workspace config found, using defaults", "", configPath)
	}

	cfg, err := config.Load(d.workDir)
	if err != nil {
		result.AddError("CONFIG_INVALID",
			fmt.Sprintf("Failed to load config: %s", err), "", configPath)
		return nil
	}

	return cfg
}

// checkAgent verifies the agent binary exists and meets the configured
// minimum version.
func (d *Doctor) checkAgent(ctx context.Context, cfg *config.Config, result *Result) {
	command := cfg.Agent.Command
	if _, err := exec.LookPath(command); err != nil {
		result.AddErrorWithSuggestion("AGENT_NOT_FOUND",
			fmt.Sprintf("Agent binary %q is not on PATH", command), "agent.command", "agent",
			"Install the agent or point agent.command at an installed one")
		return
	}

	line, err := transport.Version(ctx, command)
	if err != nil {
		result.AddWarning("AGENT_VERSION_UNKNOWN",
			fmt.Sprintf("Could not read agent version: %s", err), "agent.command", "agent")
		return
	}
	result.AddInfo("AGENT_FOUND",
		fmt.Sprintf("%s reports %q", command, line), "agent.command", "agent")

	if cfg.Agent.MinVersion == "" {
		return
	}

	want := canonicalVersion(cfg.Agent.MinVersion)
	if want == "" {
		result.AddWarning("MIN_VERSION_INVALID",
			fmt.Sprintf("min_version %q is not a semantic version", cfg.Agent.MinVersion),
			"agent.min_version", "agent")
		return
	}

	have := ParseVersion(line)
	if have == "" {
		result.AddWarning("AGENT_VERSION_UNPARSED",
			fmt.Sprintf("Could not find a version number in %q", line),
			"agent.command", "agent")
		return
	}

	if semver.Compare(have, want) < 0 {
		result.AddErrorWithSuggestion("AGENT_TOO_OLD",
			fmt.Sprintf("Agent version %s is older than required %s",
				strings.TrimPrefix(have, "v"), strings.TrimPrefix(want, "v")),
			"agent.min_version", "agent",
			"Upgrade the agent")
	}
}

// checkTracker reports how task lookup will behave: local files when no
// tracking service is configured, and a token warning when one is.
func (d *Doctor) checkTracker(cfg *config.Config, result *Result) {
	if cfg.Tracker.BaseURL == "" {
		result.AddInfo("TRACKER_NOT_CONFIGURED",
			"No tracking service configured, tasks are read from local files",
			"tracker.base_url", "tracker")
		return
	}

	if cfg.TrackerToken() == "" {
		result.AddWarningWithSuggestion("TRACKER_TOKEN_MISSING",
			fmt.Sprintf("Tracking service %s has no API token", cfg.Tracker.BaseURL),
			"tracker.token", "tracker",
			"Set ABLAUF_TRACKER_TOKEN or tracker.token in config.yaml")
	}
}

// checkExtraction reports when question extraction will silently skip.
func (d *Doctor) checkExtraction(cfg *config.Config, result *Result) {
	if cfg.Extract.Disabled {
		return
	}
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		result.AddInfo("EXTRACTION_KEY_MISSING",
			"ANTHROPIC_API_KEY is not set, research runs without question extraction",
			"extract", "agent")
	}
}

// checkPRTooling warns when the GitHub CLI is missing. PR creation shells
// out to gh, everything else works without it.
func (d *Doctor) checkPRTooling(result *Result) {
	if _, err := exec.LookPath("gh"); err != nil {
		result.AddWarningWithSuggestion("GH_NOT_FOUND",
			"GitHub CLI (gh) is not on PATH", "", "gh",
			"Install gh to create pull requests, or run with --no-pr")
	}
}

// ParseVersion pulls a semver-looking token out of a --version line such
// as "claude-code-acp 0.5.1 (build 1234)". Returns the canonical form
// with a leading v, or empty when nothing parses.
func ParseVersion(line string) string {
	for _, field := range strings.Fields(line) {
		field = strings.Trim(field, "()[],;")
		if v := canonicalVersion(field); v != "" {
			return v
		}
	}
	return ""
}

// canonicalVersion normalizes a version string to the vMAJOR.MINOR.PATCH
// form the semver package compares.
func canonicalVersion(s string) string {
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "v") {
		s = "v" + s
	}
	if !semver.IsValid(s) {
		return ""
	}
	return semver.Canonical(s)
}
