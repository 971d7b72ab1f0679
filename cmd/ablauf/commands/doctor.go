package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valksor/go-ablauf/internal/validation"
)

var (
	doctorStrict bool
	doctorFormat string
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	Short:   "Check that this environment can run tasks",
	GroupID: "info",
	Long: `Check the environment a task run depends on.

Performs the following checks:
  - git on PATH and a repository at the current directory
  - a push remote for branches and pull requests
  - the agent binary, and its version against agent.min_version
  - .ablauf/config.yaml loads and validates
  - gh CLI for pull request creation
  - tracking service and question extraction credentials

Examples:
  ablauf doctor                  # Check the environment
  ablauf doctor --strict         # Treat warnings as errors
  ablauf doctor --format json    # JSON output for CI`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().BoolVar(&doctorStrict, "strict", false,
		"Treat warnings as errors (exit code 1 if warnings present)")
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text",
		"Output format: text, json")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	doctor := validation.New(wd, validation.Options{
		Strict: doctorStrict,
	})

	if doctorFormat == "text" {
		fmt.Println("Checking task execution environment...")
		fmt.Println()
	}

	result := doctor.Run(cmd.Context())
	fmt.Print(result.Format(doctorFormat))

	// Return error for exit code handling
	if !result.Valid {
		return errors.New("environment check failed")
	}
	if doctorStrict && result.Warnings > 0 {
		return fmt.Errorf("environment check failed: %d warning(s) in strict mode", result.Warnings)
	}

	return nil
}
