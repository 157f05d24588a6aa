// Package google completes prompts with the Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	genaiopt "google.golang.org/api/option"
)

// Options configures a Completer.
type Options struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	// ClientOptions are appended after the API key, mainly for tests.
	ClientOptions []genaiopt.ClientOption
}

// Completer calls GenerateContent on a Gemini model.
type Completer struct {
	opts   Options
	client *genai.Client
}

// New creates a Completer. Unlike the other providers the Gemini client is
// constructed eagerly, so configuration errors surface here.
func New(ctx context.Context, opts Options) (*Completer, error) {
	clientOpts := append([]genaiopt.ClientOption{genaiopt.WithAPIKey(opts.APIKey)}, opts.ClientOptions...)
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Completer{opts: opts, client: client}, nil
}

// Complete sends prompt with system as the model's system instruction.
func (c *Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.opts.Model)
	model.SetTemperature(float32(c.opts.Temperature))
	if c.opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(c.opts.MaxTokens))
	}
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	rsp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(rsp.Candidates) == 0 || rsp.Candidates[0].Content == nil || len(rsp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Google")
	}

	var b strings.Builder
	for _, part := range rsp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String(), nil
}

// Close releases the underlying client.
func (c *Completer) Close() error {
	return c.client.Close()
}
