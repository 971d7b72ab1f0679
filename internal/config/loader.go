package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Path returns the location of the config file under baseDir.
func Path(baseDir string) string {
	return filepath.Join(baseDir, AblaufDir, ConfigFileName)
}

// Load reads .ablauf/config.yaml under baseDir, applies environment
// overrides, and validates the result. A missing file yields defaults.
func Load(baseDir string) (*Config, error) {
	cfg := NewDefault()

	data, err := os.ReadFile(Path(baseDir))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets environment variables win over file values.
// .ablauf/.env is loaded into the environment before this runs, so env
// entries there behave the same way.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ABLAUF_AGENT_COMMAND"); v != "" {
		cfg.Agent.Command = v
	}
	if v := os.Getenv("ABLAUF_TRACKER_URL"); v != "" {
		cfg.Tracker.BaseURL = v
	}
	if v := os.Getenv("ABLAUF_TRACKER_TOKEN"); v != "" {
		cfg.Tracker.Token = v
	}
	if v := os.Getenv("ABLAUF_GIT_REMOTE"); v != "" {
		cfg.Git.Remote = v
	}
}

// TrackerToken resolves the tracking-service token: environment first,
// then the config file. Empty when neither is set.
func (c *Config) TrackerToken() string {
	if v := os.Getenv("ABLAUF_TRACKER_TOKEN"); v != "" {
		return v
	}
	return c.Tracker.Token
}

// Save writes the configuration to .ablauf/config.yaml under baseDir,
// creating the directory when needed.
func (c *Config) Save(baseDir string) error {
	dir := filepath.Join(baseDir, AblaufDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	header := `# Workspace configuration
# Edit this file to customize task execution behavior

`
	content := header + string(data)
	if len(c.Env) == 0 {
		content += `
# Environment variables passed to the agent subprocess
# Example:
# env:
#     ANTHROPIC_API_KEY: your-key
`
	}

	if err := os.WriteFile(Path(baseDir), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}
