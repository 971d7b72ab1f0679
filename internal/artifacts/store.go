// Package artifacts manages per-task phase artifacts under .ablauf/tasks.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirName      = ".ablauf"
	tasksDirName = "tasks"
	envFileName  = ".env"

	// Artifact file names within a task namespace.
	ResearchFile  = "research.md"
	PlanFile      = "plan.md"
	QuestionsFile = "questions.yaml"
	BuildFile     = "build.md"
)

// Store manages task artifact storage within a repository.
type Store struct {
	root     string // Repository root
	taskRoot string // .ablauf directory
}

// Open opens a store rooted at the given repository directory.
func Open(repoRoot string) (*Store, error) {
	absRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	return &Store{
		root:     absRoot,
		taskRoot: filepath.Join(absRoot, dirName),
	}, nil
}

// Root returns the repository root path.
func (s *Store) Root() string {
	return s.root
}

// TaskRoot returns the .ablauf directory path.
func (s *Store) TaskRoot() string {
	return s.taskRoot
}

// Namespace returns the task directory path relative to the repository
// root, suitable for git staging (e.g. ".ablauf/tasks/t-1-fix-login").
func (s *Store) Namespace(slug string) string {
	return filepath.Join(dirName, tasksDirName, slug)
}

// TaskDir returns the absolute task directory path.
func (s *Store) TaskDir(slug string) string {
	return filepath.Join(s.taskRoot, tasksDirName, slug)
}

// ArtifactPath returns the absolute path of a named artifact.
func (s *Store) ArtifactPath(slug, name string) string {
	return filepath.Join(s.TaskDir(slug), name)
}

// EnsureTaskDir creates the task namespace directory.
func (s *Store) EnsureTaskDir(slug string) error {
	if err := os.MkdirAll(s.TaskDir(slug), 0o755); err != nil {
		return fmt.Errorf("create task directory: %w", err)
	}
	return nil
}

// HasArtifact reports whether a named artifact exists for the task.
func (s *Store) HasArtifact(slug, name string) bool {
	_, err := os.Stat(s.ArtifactPath(slug, name))
	return err == nil
}

// ReadArtifact returns the content of a named artifact.
func (s *Store) ReadArtifact(slug, name string) (string, error) {
	data, err := os.ReadFile(s.ArtifactPath(slug, name))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return string(data), nil
}

// WriteArtifact writes a named artifact, creating the namespace when needed.
func (s *Store) WriteArtifact(slug, name, content string) error {
	if err := s.EnsureTaskDir(slug); err != nil {
		return err
	}
	if err := os.WriteFile(s.ArtifactPath(slug, name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// TaskState summarizes the artifacts present for one task namespace.
type TaskState struct {
	Slug         string
	HasResearch  bool
	HasPlan      bool
	HasBuild     bool
	HasQuestions bool
}

// Phase returns the furthest phase with a stored artifact, "pending"
// when the namespace is empty.
func (t TaskState) Phase() string {
	switch {
	case t.HasBuild:
		return "built"
	case t.HasPlan:
		return "planned"
	case t.HasResearch:
		return "researched"
	default:
		return "pending"
	}
}

// ListTasks returns the task namespaces under .ablauf/tasks in slug
// order. A missing tasks directory yields an empty list.
func (s *Store) ListTasks() ([]TaskState, error) {
	entries, err := os.ReadDir(filepath.Join(s.taskRoot, tasksDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tasks directory: %w", err)
	}

	states := make([]TaskState, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		slug := entry.Name()
		states = append(states, TaskState{
			Slug:         slug,
			HasResearch:  s.HasArtifact(slug, ResearchFile),
			HasPlan:      s.HasArtifact(slug, PlanFile),
			HasBuild:     s.HasArtifact(slug, BuildFile),
			HasQuestions: s.HasArtifact(slug, QuestionsFile),
		})
	}
	return states, nil
}

// UpdateGitignore adds the .ablauf entries that must never be committed.
// Artifacts themselves are committed with the task branch, so only the
// env file is ignored.
func (s *Store) UpdateGitignore() error {
	gitignorePath := filepath.Join(s.root, ".gitignore")

	var content string
	if _, err := os.Stat(gitignorePath); err == nil {
		data, err := os.ReadFile(gitignorePath)
		if err != nil {
			return fmt.Errorf("read .gitignore: %w", err)
		}
		content = string(data)
	}

	entries := []string{
		dirName + "/" + envFileName,
	}

	modified := false
	lines := strings.Split(content, "\n")

	for _, entry := range entries {
		found := false
		for _, line := range lines {
			if strings.TrimSpace(line) == entry {
				found = true

				break
			}
		}

		if !found {
			if len(content) > 0 && !strings.HasSuffix(content, "\n") {
				content += "\n"
				lines = append(lines, "")
			}
			content += entry + "\n"
			lines = append(lines, entry)
			modified = true
		}
	}

	if modified {
		if err := os.WriteFile(gitignorePath, []byte(content), 0o644); err != nil {
			return fmt.Errorf("write .gitignore: %w", err)
		}
	}

	return nil
}
