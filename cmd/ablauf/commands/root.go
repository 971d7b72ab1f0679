package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valksor/go-ablauf/internal/config"
	"github.com/valksor/go-ablauf/internal/display"
	"github.com/valksor/go-ablauf/internal/log"
)

// Global flags.
var (
	verbose bool
	noColor bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "ablauf",
	Short: "Agent-driven task execution",
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Long: `Ablauf runs coding tasks through an agent pipeline by Valksor.

Each run researches the task, writes an implementation plan, and builds
the change on its own branch, finishing with a pull request. Artifacts
land under .ablauf/tasks/<slug>/ and commit with the branch, so a rerun
resumes where the last pass stopped.

Quick Start:
  ablauf init            Create .ablauf/config.yaml
  ablauf doctor          Check the environment
  ablauf run task.md     Run a task from a markdown file

For task state:  ablauf list`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load .env FIRST so everything after sees its variables
		if err := config.LoadDotEnvFromCwd(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .ablauf/.env: %v\n", err)
		}

		// Configure logging from CLI flag
		log.Configure(log.Options{
			Verbose: verbose,
		})

		// Initialize color output from CLI flag (also respects NO_COLOR env)
		display.InitColors(noColor)

		log.Debug("initialized", "verbose", verbose)

		return nil
	},
}

// Execute runs the root command with signal handling.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")

	// Add command groups for better help organization
	rootCmd.AddGroup(&cobra.Group{
		ID:    "workflow",
		Title: "Workflow Commands:",
	}, &cobra.Group{
		ID:    "info",
		Title: "Information Commands:",
	}, &cobra.Group{
		ID:    "config",
		Title: "Configuration Commands:",
	})
}
