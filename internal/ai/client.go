// Package ai asks a chat completion model to assess a financial statement against a checklist question.
package ai

import (
	"context"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/sashabaranov/go-openai"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DocumentCharLimit is the number of characters of document text sent with a question. Longer documents are
// truncated.
const DocumentCharLimit = 100_000

const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 1500
)

const systemPrompt = "You are a financial expert analyzing financial statements. Examine the content from the PDF " +
	"carefully and provide a detailed answer to the question. Also identify if there needs to be any improvement?"

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	// Timeout bounds the round trip to the API. Zero means no limit.
	Timeout time.Duration
}

type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewClient creates a client for the OpenAI compatible API at cfg.BaseURL.
//
// A client without an API key is valid but every analysis fails with ErrNotConfigured.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	c := &Client{
		client:    nil,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.With(slog.String("source", "ai")),
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if cfg.APIKey != "" {
		config := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			config.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
		}
		config.HTTPClient = &http.Client{Timeout: cfg.Timeout} //nolint:exhaustruct // defaults are fine for the rest.
		c.client = openai.NewClientWithConfig(config)
	}
	return c
}

// Configured reports whether the client has credentials for the remote service.
func (c *Client) Configured() bool {
	return c.client != nil
}

func (c *Client) Model() string {
	return c.model
}

// Analyze makes exactly one chat completion request and returns the answer text.
//
// There are no retries. Errors are ErrNotConfigured or an *Error.
func (c *Client) Analyze(ctx context.Context, documentText string, question string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, BuildRequest(c.model, c.maxTokens, documentText, question))
	if err != nil {
		aiErr := classify(err)
		c.logger.LogAttrs(ctx, slog.LevelWarn, "chat completion failed",
			slog.String("kind", string(aiErr.Kind)), errors.SlogError(err))
		return "", aiErr
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &Error{Kind: KindEmpty, StatusCode: 0, Err: errors.New("no answer in response")}
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "chat completion done",
		slog.Duration("duration", time.Since(start)),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens))
	return resp.Choices[0].Message.Content, nil
}

// BuildRequest constructs the chat completion request. Identical inputs produce identical requests.
func BuildRequest(model string, maxTokens int, documentText string, question string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{ //nolint:exhaustruct // this is better for readability
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(documentText, question)},
		},
	}
}

func userPrompt(documentText string, question string) string {
	return "Analyze this financial statement text and answer this question: " + question +
		"\n\nFinancial Statement Content: " + Truncate(documentText, DocumentCharLimit)
}

// Truncate returns the first limit characters of s.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
