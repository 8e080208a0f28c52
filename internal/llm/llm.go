package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/mocktest/internal/llm/prompts"
	"github.com/pavelanni/mocktest/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// explainResult is the JSON object the model is asked to return.
type explainResult struct {
	Explanation string `json:"explanation"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
}

// Option configures a Client.
type Option func(*Client)

// WithVariant selects the explanation prompt variant.
func WithVariant(v prompts.PromptVariant) Option {
	return func(c *Client) { c.variant = v }
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string, opts ...Option) (*Client, error) {
	if err := prompts.Load(prompts.FS); err != nil {
		return nil, err
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	c := &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.PromptStandard,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Explain asks the model why the correct option of q is right.
func (c *Client) Explain(ctx context.Context, q model.ReviewQuestion) (string, error) {
	systemPrompt, err := prompts.BuildExplainPrompt(c.variant, q)
	if err != nil {
		return "", fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Explain the correct answer."},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "question_id", q.ID, "raw", raw)

	var result explainResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return "", fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	text := strings.TrimSpace(result.Explanation)
	if text == "" {
		return "", fmt.Errorf("LLM returned an empty explanation")
	}
	return text, nil
}

// Ping checks that the endpoint answers and serves the configured model.
func (c *Client) Ping(ctx context.Context) error {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range list.Models {
		if m.ID == c.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not served by endpoint", c.model)
}
