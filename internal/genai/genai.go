// Package genai provides the interview scoring client backed by the OpenAI API.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/vocalhire/interviewd/internal/models"
)

// Scorer produces structured feedback from a rendered interview conversation.
type Scorer interface {
	ScoreInterview(ctx context.Context, conversation string) (*models.FeedbackResult, error)
}

// Opts holds configuration options for the scoring client.
type Opts struct {
	APIKey string
	Model  string
}

// Option defines a configuration option for the scoring client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model used for scoring.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// Client wraps the OpenAI chat completion API for interview scoring.
type Client struct {
	client openai.Client
	model  openai.ChatModel
}

// Compile-time check that Client implements Scorer.
var _ Scorer = (*Client)(nil)

// NewClient initializes a scoring client. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	model := openai.ChatModelGPT4oMini
	if cfg.Model != "" {
		model = openai.ChatModel(cfg.Model)
	}

	return &Client{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
	}, nil
}

const scoringSystemPrompt = `You are an expert technical recruiter evaluating an interview transcript.
Respond with a single JSON object of the form:
{"feedback":{"rating":{"technicalSkills":0,"communication":0,"problemSolving":0,"experience":0},"summary":"...","recommendation":"Yes|No|Maybe","recommendationMessage":"...","confidence":0}}
Ratings are integers 0-10, confidence is an integer 0-100. Respond with JSON only.`

// ScoreInterview sends the rendered conversation to the model and parses the
// structured feedback from its reply.
func (c *Client) ScoreInterview(ctx context.Context, conversation string) (*models.FeedbackResult, error) {
	if strings.TrimSpace(conversation) == "" {
		return nil, fmt.Errorf("empty conversation")
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(scoringSystemPrompt),
			openai.UserMessage("Interview transcript:\n\n" + conversation),
		},
		Model: c.model,
	})
	if err != nil {
		slog.Error("Scorer request failed", "error", err)
		return nil, fmt.Errorf("scoring request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	result, err := ParseFeedback(resp.Choices[0].Message.Content)
	if err != nil {
		slog.Warn("Scorer returned unparseable feedback", "error", err)
		return nil, err
	}
	slog.Debug("Scorer produced feedback", "recommendation", result.Recommendation, "confidence", result.Confidence)
	return result, nil
}
