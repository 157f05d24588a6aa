// Package anthropic completes prompts with the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultMaxTokens = 1024

// Options configures a Completer.
type Options struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	HTTPClient  *http.Client
}

// Completer calls the Messages API.
type Completer struct {
	opts   Options
	client *sdk.Client
}

// New creates a Completer.
func New(opts Options) *Completer {
	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	client := sdk.NewClient(reqOpts...)
	return &Completer{opts: opts, client: &client}
}

// Complete sends prompt as a single user message with system as the system
// instruction.
func (c *Completer) Complete(ctx context.Context, system, prompt string) (string, error) {
	maxTokens := c.opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	req := sdk.MessageNewParams{
		Model:       sdk.Model(c.opts.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: sdk.Float(c.opts.Temperature),
		System:      []sdk.TextBlockParam{{Text: system}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}

	rsp, err := c.client.Messages.New(ctx, req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, content := range rsp.Content {
		if text, ok := content.AsAny().(sdk.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("no response from Anthropic")
	}
	return b.String(), nil
}
