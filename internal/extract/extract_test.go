package extract

import (
	"context"
	"testing"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

func TestNewWithoutKeyIsDisabled(t *testing.T) {
	e := New(Options{})
	if e != nil {
		t.Fatal("expected nil extractor without an API key")
	}
	if e.Enabled() {
		t.Error("nil extractor reports enabled")
	}

	qs, err := e.Questions(context.Background(), "some research")
	if err != nil {
		t.Fatalf("Questions on nil extractor returned error: %v", err)
	}
	if qs != nil {
		t.Errorf("Questions = %v, want nil", qs)
	}
}

func TestNewDefaults(t *testing.T) {
	e := New(Options{APIKey: "sk-test"})
	if !e.Enabled() {
		t.Fatal("expected enabled extractor")
	}
	if e.model != defaultModel {
		t.Errorf("model = %q, want %q", e.model, defaultModel)
	}

	e = New(Options{APIKey: "sk-test", Model: "claude-3-5-sonnet-20241022"})
	if e.model != "claude-3-5-sonnet-20241022" {
		t.Errorf("model = %q, want override", e.model)
	}
}

func TestQuestionsEmptyResearch(t *testing.T) {
	e := New(Options{APIKey: "sk-test"})
	qs, err := e.Questions(context.Background(), "   \n ")
	if err != nil {
		t.Fatalf("Questions returned error: %v", err)
	}
	if len(qs) != 0 {
		t.Errorf("Questions = %v, want none", qs)
	}
}

func TestParseQuestionsToolUse(t *testing.T) {
	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{
				Type:  "tool_use",
				Name:  questionsToolName,
				Input: []byte(`{"questions":[{"text":"Which auth flow?","context":"Two are mentioned"},{"text":"Target branch?"}]}`),
			},
		},
	}

	qs, err := parseQuestions(msg)
	if err != nil {
		t.Fatalf("parseQuestions returned error: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("got %d questions, want 2", len(qs))
	}
	if qs[0].Text != "Which auth flow?" || qs[0].Context != "Two are mentioned" {
		t.Errorf("first question = %+v", qs[0])
	}
	if qs[1].Text != "Target branch?" || qs[1].Context != "" {
		t.Errorf("second question = %+v", qs[1])
	}
}

func TestParseQuestionsEmptyList(t *testing.T) {
	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "tool_use", Name: questionsToolName, Input: []byte(`{"questions":[]}`)},
		},
	}

	qs, err := parseQuestions(msg)
	if err != nil {
		t.Fatalf("parseQuestions returned error: %v", err)
	}
	if len(qs) != 0 {
		t.Errorf("got %d questions, want 0", len(qs))
	}
}

func TestParseQuestionsDropsBlankText(t *testing.T) {
	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{
				Type:  "tool_use",
				Name:  questionsToolName,
				Input: []byte(`{"questions":[{"text":"  "},{"text":" real question "}]}`),
			},
		},
	}

	qs, err := parseQuestions(msg)
	if err != nil {
		t.Fatalf("parseQuestions returned error: %v", err)
	}
	if len(qs) != 1 {
		t.Fatalf("got %d questions, want 1", len(qs))
	}
	if qs[0].Text != "real question" {
		t.Errorf("Text = %q, want trimmed text", qs[0].Text)
	}
}

func TestParseQuestionsBadToolInput(t *testing.T) {
	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "tool_use", Name: questionsToolName, Input: []byte(`not json`)},
		},
	}

	if _, err := parseQuestions(msg); err == nil {
		t.Fatal("expected error for malformed tool input")
	}
}

func TestParseQuestionsTextFallback(t *testing.T) {
	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{
				Type: "text",
				Text: `Here are the open questions: {"questions":[{"text":"Which database?"}]} as requested.`,
			},
		},
	}

	qs, err := parseQuestions(msg)
	if err != nil {
		t.Fatalf("parseQuestions returned error: %v", err)
	}
	if len(qs) != 1 || qs[0].Text != "Which database?" {
		t.Errorf("questions = %+v", qs)
	}
}

func TestParseQuestionsNoData(t *testing.T) {
	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "I could not find anything useful."},
		},
	}

	if _, err := parseQuestions(msg); err == nil {
		t.Fatal("expected error when response has no question data")
	}
}
