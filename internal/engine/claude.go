package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// maxStepTokens bounds each step's response. Mailbox generation is the
// largest output and sets the ceiling.
const maxStepTokens = 8192

// ClaudeEngine generates step content with the Anthropic API.
type ClaudeEngine struct {
	client *anthropic.Client
	model  string
	logger *slog.Logger
}

// NewClaudeEngine creates a Claude-backed generation engine.
func NewClaudeEngine(apiKey, model string, logger *slog.Logger) *ClaudeEngine {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeEngine{
		client: &client,
		model:  model,
		logger: logger,
	}
}

// ExecuteStep renders the step prompt, calls the model once, and returns
// the raw response text. Parsing and normalization happen downstream.
func (e *ClaudeEngine) ExecuteStep(ctx context.Context, sc StepContext) (string, error) {
	prompt, err := buildPrompt(sc)
	if err != nil {
		return "", err
	}

	e.logger.Debug("executing generation step", "step", sc.Step, "prompt_bytes", len(prompt))

	resp, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: maxStepTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("calling Claude API for step %s: %w", sc.Step, err)
	}

	var responseText string
	for _, block := range resp.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if responseText == "" {
		return "", fmt.Errorf("empty response from Claude for step %s", sc.Step)
	}

	e.logger.Debug("generation step response", "step", sc.Step, "response_bytes", len(responseText))
	return responseText, nil
}
