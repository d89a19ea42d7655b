package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicGenerator only generates text; Anthropic has no embedding
// endpoint, so worlds indexed under this provider use fallback vectors.
type AnthropicGenerator struct {
	options Options
	client  *anthropic.Client
}

func NewAnthropicGenerator(opts ...Option) *AnthropicGenerator {
	options := NewOptions(opts...)
	if options.Model == "" {
		options.Model = defaultAnthropicModel
	}

	client := anthropic.NewClient(
		anthropicopt.WithAPIKey(options.APIKey),
	)

	return &AnthropicGenerator{
		options: options,
		client:  &client,
	}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	system := g.options.SystemPrompt
	if system == "" {
		system = studioSystemPrompt
	}

	rsp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.options.Model),
		MaxTokens:   int64(g.options.MaxTokens),
		Temperature: anthropic.Float(float64(g.options.Temperature)),
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic message request failed: %w", err)
	}

	var b strings.Builder
	for _, content := range rsp.Content {
		if text, ok := content.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(text.Text)
		}
	}

	if b.Len() == 0 {
		return "", errors.New("no response from anthropic")
	}
	return b.String(), nil
}
