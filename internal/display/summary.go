package display

import (
	"fmt"
	"strings"
)

// RunInfo holds the fields of a finished or paused run for display.
type RunInfo struct {
	TaskID   string
	Title    string
	Status   string
	Branch   string
	WorkDir  string
	PRURL    string
	HaltStep string
}

// FormatRunInfo formats a run summary block. Empty fields are omitted.
func FormatRunInfo(header string, info RunInfo) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s\n", header, Bold(info.TaskID)))

	// Key-value pairs with consistent 10-char alignment
	if info.Title != "" {
		sb.WriteString(fmt.Sprintf("  %-10s%s\n", "Title:", info.Title))
	}
	if info.Status != "" {
		sb.WriteString(fmt.Sprintf("  %-10s%s\n", "Status:", ColorRunStatus(info.Status)))
	}
	if info.Branch != "" {
		sb.WriteString(fmt.Sprintf("  %-10s%s\n", "Branch:", info.Branch))
	}
	if info.WorkDir != "" {
		sb.WriteString(fmt.Sprintf("  %-10s%s\n", "Workdir:", info.WorkDir))
	}
	if info.PRURL != "" {
		sb.WriteString(fmt.Sprintf("  %-10s%s\n", "PR:", info.PRURL))
	}
	if info.HaltStep != "" {
		sb.WriteString(fmt.Sprintf("  %-10s%s\n", "Paused:", Warning("after "+info.HaltStep)))
	}

	return sb.String()
}

// NextStep is a single suggested follow-up command.
type NextStep struct {
	Command     string
	Description string
}

// FormatNextSteps formats the "Next steps:" section consistently.
func FormatNextSteps(steps []NextStep) string {
	if len(steps) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(Muted("Next steps:"))
	sb.WriteString("\n")

	// Find the longest command for alignment
	maxLen := 0
	for _, s := range steps {
		if len(s.Command) > maxLen {
			maxLen = len(s.Command)
		}
	}

	// Format each step: "  command     - description"
	for _, s := range steps {
		sb.WriteString(fmt.Sprintf("  %-*s  %s\n",
			maxLen,
			Cyan(s.Command),
			Muted("- "+s.Description),
		))
	}

	return sb.String()
}
