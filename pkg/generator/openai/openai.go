// Package openai completes prompts against any OpenAI-compatible chat
// completions endpoint (OpenAI, Groq, Ollama, vLLM).
package openai

import (
	"context"
	"errors"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
)

// Options configures a Completer.
type Options struct {
	// BaseURL defaults to the OpenAI API.
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// Completer calls the chat completions API.
type Completer struct {
	opts   Options
	client *goopenai.Client
}

// New creates a Completer.
func New(opts Options) *Completer {
	cfg := goopenai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return &Completer{opts: opts, client: goopenai.NewClientWithConfig(cfg)}
}

// Complete sends system and prompt as a two-message conversation.
func (c *Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Temperature: float32(c.opts.Temperature),
		MaxTokens:   c.opts.MaxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	}

	rsp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(rsp.Choices) == 0 || len(rsp.Choices[0].Message.Content) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return rsp.Choices[0].Message.Content, nil
}
