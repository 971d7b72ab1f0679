package artifacts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Question is one open question raised during research. Users answer by
// filling the answer field in questions.yaml on the task branch.
type Question struct {
	Text    string `yaml:"text"`
	Context string `yaml:"context,omitempty"`
	Answer  string `yaml:"answer,omitempty"`
}

// WriteQuestions stores the questions artifact for a task.
func (s *Store) WriteQuestions(slug string, questions []Question) error {
	if err := s.EnsureTaskDir(slug); err != nil {
		return err
	}

	data, err := yaml.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}

	header := `# Open questions from research
# Fill in the answer fields, then re-run the task to continue planning

`
	path := s.ArtifactPath(slug, QuestionsFile)
	if err := os.WriteFile(path, []byte(header+string(data)), 0o644); err != nil {
		return fmt.Errorf("write questions: %w", err)
	}
	return nil
}

// ReadQuestions loads the questions artifact. A missing file yields an
// empty slice, not an error.
func (s *Store) ReadQuestions(slug string) ([]Question, error) {
	data, err := os.ReadFile(s.ArtifactPath(slug, QuestionsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read questions: %w", err)
	}

	var questions []Question
	if err := yaml.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	return questions, nil
}

// Answered reports whether every question has a non-empty answer.
// An empty list counts as answered.
func Answered(questions []Question) bool {
	for _, q := range questions {
		if q.Answer == "" {
			return false
		}
	}
	return true
}
