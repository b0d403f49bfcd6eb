package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIEvaluator runs evaluation and drafting against an OpenAI-compatible
// chat completion endpoint. Pointing baseURL at a router service works too.
type OpenAIEvaluator struct {
	client openai.Client
	model  string
}

func NewOpenAIEvaluator(apiKey, baseURL, model string) *OpenAIEvaluator {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEvaluator{client: openai.NewClient(opts...), model: model}
}

func (e *OpenAIEvaluator) complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (e *OpenAIEvaluator) Evaluate(ctx context.Context, system, prompt string) (*Evaluation, error) {
	raw, err := e.complete(ctx, system, prompt)
	if err != nil {
		return nil, err
	}
	return parseEvaluation(raw)
}

func (e *OpenAIEvaluator) Draft(ctx context.Context, system, prompt string) (string, error) {
	text, err := e.complete(ctx, system, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// AnthropicEvaluator is the same capability on the Anthropic Messages API.
type AnthropicEvaluator struct {
	client anthropic.Client
	model  string
}

func NewAnthropicEvaluator(apiKey, model string) *AnthropicEvaluator {
	return &AnthropicEvaluator{
		client: anthropic.NewClient(anthropicoption.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (e *AnthropicEvaluator) complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("message returned no text content")
	}
	return sb.String(), nil
}

func (e *AnthropicEvaluator) Evaluate(ctx context.Context, system, prompt string) (*Evaluation, error) {
	raw, err := e.complete(ctx, system, prompt)
	if err != nil {
		return nil, err
	}
	return parseEvaluation(raw)
}

func (e *AnthropicEvaluator) Draft(ctx context.Context, system, prompt string) (string, error) {
	text, err := e.complete(ctx, system, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// parseEvaluation decodes the model's JSON verdict. Models wrap JSON in
// markdown fences often enough that stripping them here beats another retry.
func parseEvaluation(raw string) (*Evaluation, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	eval := &Evaluation{}
	if err := json.Unmarshal([]byte(cleaned), eval); err != nil {
		return nil, fmt.Errorf("malformed evaluation: %w", err)
	}
	return eval, nil
}
