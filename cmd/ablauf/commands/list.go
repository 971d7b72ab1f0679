package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valksor/go-ablauf/internal/artifacts"
	"github.com/valksor/go-ablauf/internal/config"
	"github.com/valksor/go-ablauf/internal/display"
	"github.com/valksor/go-ablauf/internal/tracker"
	"github.com/valksor/go-ablauf/internal/vcs"
)

var (
	listStatus string
	listLocal  bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List tasks and their run state",
	GroupID: "info",
	Long: `List tasks with their pipeline state.

With a tracking service configured the list comes from the service.
Otherwise (or with --local) it shows the task namespaces under
.ablauf/tasks/ in this repository, with the phase each one reached.

Examples:
  ablauf list                    # List tasks
  ablauf list --status open      # Service tasks with a given status
  ablauf list --local            # Local artifact state only`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter service tasks by status")
	listCmd.Flags().BoolVar(&listLocal, "local", false, "List local task namespaces even with a tracking service configured")
}

func runList(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	// Use the repository root when inside one so worktrees and subdirs
	// see the same task list
	root := cwd
	if git, err := vcs.Open(cmd.Context(), cwd); err == nil {
		root = git.Root()
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	if cfg.Tracker.BaseURL != "" && !listLocal {
		return listServiceTasks(cmd, cfg)
	}
	return listLocalTasks(root)
}

// listServiceTasks prints the tracking service's task list.
func listServiceTasks(cmd *cobra.Command, cfg *config.Config) error {
	client, err := tracker.NewClient(cfg.Tracker.BaseURL, cfg.TrackerToken())
	if err != nil {
		return fmt.Errorf("tracker client: %w", err)
	}

	tasks, err := client.ListTasks(cmd.Context(), listStatus)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "TASK ID\tSTATUS\tTITLE\tBRANCH\tPR"); err != nil {
		return fmt.Errorf("print header: %w", err)
	}

	for _, task := range tasks {
		branch := "-"
		pr := "-"
		if task.LatestRun != nil {
			if task.LatestRun.Branch != "" {
				branch = task.LatestRun.Branch
			}
			if url := task.LatestRun.PRURL(); url != "" {
				pr = url
			}
		}

		title := task.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}

		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			task.ID,
			display.ColorRunStatus(task.Status),
			title,
			branch,
			pr); err != nil {
			return fmt.Errorf("print row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush list table: %w", err)
	}
	return nil
}

// listLocalTasks prints the task namespaces stored in this repository.
func listLocalTasks(root string) error {
	store, err := artifacts.Open(root)
	if err != nil {
		return err
	}

	tasks, err := store.ListTasks()
	if err != nil {
		return err
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found in this repository.")
		fmt.Println()
		fmt.Println("Use 'ablauf run <task.md>' to start one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintln(w, "TASK\tPHASE\tQUESTIONS"); err != nil {
		return fmt.Errorf("print header: %w", err)
	}

	for _, task := range tasks {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n",
			task.Slug,
			task.Phase(),
			questionState(store, task)); err != nil {
			return fmt.Errorf("print row: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush list table: %w", err)
	}
	return nil
}

// questionState summarizes the questions artifact for the list table.
func questionState(store *artifacts.Store, task artifacts.TaskState) string {
	if !task.HasQuestions {
		return "-"
	}

	questions, err := store.ReadQuestions(task.Slug)
	if err != nil || len(questions) == 0 {
		return "-"
	}
	if artifacts.Answered(questions) {
		return "answered"
	}
	return display.Warning("pending")
}
