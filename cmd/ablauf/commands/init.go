package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valksor/go-ablauf/internal/artifacts"
	"github.com/valksor/go-ablauf/internal/config"
	"github.com/valksor/go-ablauf/internal/display"
	"github.com/valksor/go-ablauf/internal/vcs"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Create a new .ablauf/config.yaml file",
	GroupID: "config",
	Long: `Create a workspace configuration file with default settings.

This writes .ablauf/config.yaml at the repository root with the default
agent, step, and git settings, and adds .ablauf/.env to .gitignore so
credentials stay out of the repository.

If a config file already exists it is left alone unless --force is used.

Examples:
  ablauf init            # Create the config
  ablauf init --force    # Overwrite an existing config`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	// Prefer the repository root so the config sits next to .git
	root := cwd
	if git, err := vcs.Open(cmd.Context(), cwd); err == nil {
		root = git.Root()
	}

	configPath := config.Path(root)
	if _, err := os.Stat(configPath); err == nil && !initForce {
		fmt.Println(display.WarningMsg("Config file already exists: %s", configPath))
		fmt.Println()
		fmt.Printf("  %s - View the current config\n", display.Cyan("cat "+configPath))
		fmt.Printf("  %s - Check it against this environment\n", display.Cyan("ablauf doctor"))
		fmt.Printf("  %s - Overwrite it with defaults\n", display.Cyan("ablauf init --force"))
		return nil
	}

	cfg := config.NewDefault()
	if err := cfg.Save(root); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	store, err := artifacts.Open(root)
	if err != nil {
		return err
	}
	if err := store.UpdateGitignore(); err != nil {
		fmt.Println(display.WarningMsg(".gitignore not updated: %v", err))
	}

	fmt.Println(display.SuccessMsg("Configuration created: %s", configPath))
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  %s - Adjust agent and step settings\n", display.Cyan("$EDITOR "+configPath))
	fmt.Printf("  %s - Check the environment\n", display.Cyan("ablauf doctor"))
	fmt.Printf("  %s - Run your first task\n", display.Cyan("ablauf run task.md"))

	return nil
}
