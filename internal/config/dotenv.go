package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	// AblaufDir is the name of the workspace configuration directory.
	AblaufDir = ".ablauf"
	// EnvFileName is the name of the environment variables file.
	EnvFileName = ".env"
	// ConfigFileName is the name of the workspace configuration file.
	ConfigFileName = "config.yaml"
)

// LoadDotEnv loads environment variables from .ablauf/.env if it exists.
// It uses godotenv.Load() which respects existing environment variables
// (system env vars take priority over .env values).
// Returns nil if the file doesn't exist (not an error condition).
// Returns error only if the file exists but cannot be parsed.
func LoadDotEnv(baseDir string) error {
	envPath := filepath.Join(baseDir, AblaufDir, EnvFileName)

	// Check if file exists - silently skip if not
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return nil
	}

	// Load the .env file - godotenv.Load() does NOT override existing vars
	return godotenv.Load(envPath)
}

// LoadDotEnvFromCwd loads .env from the current working directory's .ablauf/.env.
func LoadDotEnvFromCwd() error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	return LoadDotEnv(cwd)
}
