package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/tutorportal/internal/grade"
	"github.com/pavelanni/tutorportal/internal/llm/prompts"
	"github.com/pavelanni/tutorportal/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// ErrInvalidScore is returned when the model's score is off the ten-point scale.
var ErrInvalidScore = errors.New("score outside the 0-10 range")

// Suggestion is a proposed correction for a text answer.
type Suggestion struct {
	Score    float64           `json:"score"`
	Grade    grade.LetterGrade `json:"grade"`
	Feedback string            `json:"feedback"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
}

// New creates a new LLM client. The prompt templates are loaded eagerly so
// a broken build fails at startup rather than on the first suggestion.
func New(baseURL, apiKey, modelName, variant string) (*Client, error) {
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	if err := prompts.Load(); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: prompts.PromptVariant(variant),
	}, nil
}

// Ping checks that the endpoint answers and knows at least one model.
func (c *Client) Ping(ctx context.Context) error {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	if len(list.Models) == 0 {
		return errors.New("endpoint lists no models")
	}
	return nil
}

// SuggestCorrection asks the model to score a text answer on the ten-point
// scale and converts the score to a letter grade.
func (c *Client) SuggestCorrection(ctx context.Context, q model.Question, a model.Answer) (*Suggestion, error) {
	prompt, err := prompts.BuildSuggestPrompt(c.variant, q, a)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM suggestion", "answer_id", a.ID, "raw", raw)
	return parseSuggestion(raw)
}

func parseSuggestion(raw string) (*Suggestion, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var s Suggestion
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	g, ok := grade.FromTenPoint(s.Score)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScore, s.Score)
	}
	s.Grade = g
	s.Feedback = strings.TrimSpace(s.Feedback)
	return &s, nil
}
