package orchestrator

import (
	"fmt"
	"strings"

	"github.com/valksor/go-ablauf/internal/artifacts"
	"github.com/valksor/go-ablauf/internal/tracker"
)

// Agent roles per phase; each maps to a session system prompt.
const (
	roleResearcher = "researcher"
	roleArchitect  = "architect"
	roleEngineer   = "engineer"
)

const researcherSystemPrompt = `You are a senior engineer researching a codebase before any changes are made.
You read code and documentation; you do not modify files. Be precise: cite file
paths, function names, and the actual behavior you observed.`

const architectSystemPrompt = `You are a software architect writing an implementation plan. You read code to
verify your assumptions but do not modify files. Plans must be concrete enough
that another engineer can execute them without further research.`

const engineerSystemPrompt = `You are a software engineer implementing a reviewed plan. Follow the plan,
match the existing code style, and keep changes minimal. When the plan and the
code disagree, prefer the code and note the deviation.`

// systemPromptFor returns the session system prompt for an agent role.
func systemPromptFor(role string) string {
	switch role {
	case roleResearcher:
		return researcherSystemPrompt
	case roleArchitect:
		return architectSystemPrompt
	case roleEngineer:
		return engineerSystemPrompt
	}
	return ""
}

// buildResearchPrompt creates the prompt for the research phase.
func buildResearchPrompt(task *tracker.Task) string {
	prompt := fmt.Sprintf(`Research the codebase for the following task.

## Task
%s
`, taskTitle(task))

	if task.Description != "" {
		prompt += fmt.Sprintf(`
## Description
%s
`, task.Description)
	}

	prompt += `
## Instructions
Investigate the parts of the codebase this task touches:
1. Locate the relevant code paths, entry points, and data flow
2. Note existing patterns and conventions the change must follow
3. Identify risks, edge cases, and anything the task description leaves open

Write your findings as a structured research document with clear sections.
List anything that needs a human decision under an "Open Questions" heading.`

	return prompt
}

// buildPlanPrompt creates the prompt for the plan phase. Answered
// questions are carried in as decisions; in cloud mode unanswered ones
// are carried in as open points the plan must call out.
func buildPlanPrompt(task *tracker.Task, research string, questions []artifacts.Question) string {
	prompt := fmt.Sprintf(`Write an implementation plan for the following task.

## Task
%s
`, taskTitle(task))

	if task.Description != "" {
		prompt += fmt.Sprintf(`
## Description
%s
`, task.Description)
	}

	if research != "" {
		prompt += fmt.Sprintf(`
## Research
%s
`, strings.TrimSpace(research))
	}

	if section := questionsSection(questions); section != "" {
		prompt += section
	}

	prompt += `
## Instructions
Create a plan that includes:
1. The approach and why it fits the existing architecture
2. An ordered list of changes with the files each one touches
3. Testing strategy
4. Acceptance criteria

Keep the plan concrete; a separate engineer will execute it as written.`

	return prompt
}

// questionsSection renders answered questions as decisions and open ones
// as items the plan must address.
func questionsSection(questions []artifacts.Question) string {
	if len(questions) == 0 {
		return ""
	}

	var answered, open []artifacts.Question
	for _, q := range questions {
		if q.Answer != "" {
			answered = append(answered, q)
		} else {
			open = append(open, q)
		}
	}

	var b strings.Builder
	if len(answered) > 0 {
		b.WriteString("\n## Decisions\n")
		for _, q := range answered {
			fmt.Fprintf(&b, "- Q: %s\n  A: %s\n", q.Text, q.Answer)
		}
	}
	if len(open) > 0 {
		b.WriteString("\n## Open Questions\n")
		b.WriteString("No answers were provided for these; choose a reasonable default and state it in the plan:\n")
		for _, q := range open {
			fmt.Fprintf(&b, "- %s\n", q.Text)
		}
	}
	return b.String()
}

// buildBuildPrompt creates the prompt for the build phase.
func buildBuildPrompt(task *tracker.Task, plan string) string {
	prompt := fmt.Sprintf(`Implement the following task according to its plan.

## Task
%s
`, taskTitle(task))

	if task.Description != "" {
		prompt += fmt.Sprintf(`
## Description
%s
`, task.Description)
	}

	prompt += fmt.Sprintf(`
## Plan
%s

## Instructions
Execute the plan:
1. Make the code changes it describes, following existing style and patterns
2. Add or update tests per the plan's testing strategy
3. Run the relevant tests and fix what breaks

When done, reply with a summary of what changed, how it was verified, and any
deviations from the plan.`, strings.TrimSpace(plan))

	return prompt
}

func taskTitle(task *tracker.Task) string {
	if task.Title != "" {
		return task.Title
	}
	return task.ID
}
