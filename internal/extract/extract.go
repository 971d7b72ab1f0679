// Package extract mines research output for open questions through a
// structured model call. Extraction is optional: without an API key the
// extractor is disabled and callers skip it.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/valksor/go-ablauf/internal/artifacts"
)

const (
	defaultModel     = "claude-3-5-haiku-20241022"
	extractMaxTokens = 2048

	questionsToolName = "record_questions"
)

const systemPrompt = `You review research notes written by a coding agent before
implementation planning begins. Find the questions that need a human
answer before a sound plan can be written. Only record questions that
genuinely block planning. If the notes are conclusive, record an empty
list.`

// Extractor asks a model to pull open questions out of free text.
type Extractor struct {
	client anthropic.Client
	model  string
}

// Options configures the extractor.
type Options struct {
	// APIKey enables extraction. Empty disables it.
	APIKey string

	// Model overrides the default extraction model.
	Model string
}

// New returns an extractor, or nil when no API key is configured. A nil
// extractor is safe to use; its methods report it disabled.
func New(opts Options) *Extractor {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	return &Extractor{
		client: anthropic.NewClient(option.WithAPIKey(key)),
		model:  model,
	}
}

// Enabled reports whether extraction can run.
func (e *Extractor) Enabled() bool {
	return e != nil
}

// Questions reads research text and returns the open questions it raises.
// An empty slice means the research was conclusive. Disabled extractors
// return nothing.
func (e *Extractor) Questions(ctx context.Context, research string) ([]artifacts.Question, error) {
	if e == nil || strings.TrimSpace(research) == "" {
		return nil, nil
	}

	tool := &anthropic.ToolParam{
		Name:        questionsToolName,
		Description: anthropic.String("Record the open questions that must be answered before planning can start."),
		InputSchema: anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
			Properties: map[string]any{
				"questions": map[string]any{
					"type":        "array",
					"description": "Questions blocking the plan, empty if none",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"text":    map[string]any{"type": "string", "description": "The question itself"},
							"context": map[string]any{"type": "string", "description": "Why the question matters"},
						},
						"required": []string{"text"},
					},
				},
			},
			Required: []string{"questions"},
		},
		Type: anthropic.ToolTypeCustom,
	}

	msg, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: extractMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{{
			Role:    anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(research)},
		}},
		Tools:      []anthropic.ToolUnionParam{{OfTool: tool}},
		ToolChoice: anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: questionsToolName}},
	})
	if err != nil {
		return nil, fmt.Errorf("question extraction failed: %w", err)
	}

	return parseQuestions(msg)
}

type questionsInput struct {
	Questions []struct {
		Text    string `json:"text"`
		Context string `json:"context"`
	} `json:"questions"`
}

// parseQuestions reads the tool call out of the response, falling back to
// JSON embedded in plain text for models that answer outside the tool.
func parseQuestions(msg *anthropic.Message) ([]artifacts.Question, error) {
	if msg == nil {
		return nil, fmt.Errorf("empty model response")
	}

	for _, block := range msg.Content {
		if block.Type != "tool_use" || block.Name != questionsToolName {
			continue
		}
		var input questionsInput
		if err := json.Unmarshal(block.Input, &input); err != nil {
			return nil, fmt.Errorf("parse %s input: %w", questionsToolName, err)
		}
		return convertQuestions(input), nil
	}

	return parseQuestionsText(collectText(msg))
}

func parseQuestionsText(text string) ([]artifacts.Question, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("model response contained no question data")
	}

	var input questionsInput
	if err := json.Unmarshal([]byte(text[start:end+1]), &input); err != nil {
		return nil, fmt.Errorf("parse questions from text: %w", err)
	}
	return convertQuestions(input), nil
}

func convertQuestions(input questionsInput) []artifacts.Question {
	out := make([]artifacts.Question, 0, len(input.Questions))
	for _, q := range input.Questions {
		text := strings.TrimSpace(q.Text)
		if text == "" {
			continue
		}
		out = append(out, artifacts.Question{
			Text:    text,
			Context: strings.TrimSpace(q.Context),
		})
	}
	return out
}

func collectText(msg *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(block.Text)
	}
	return sb.String()
}
