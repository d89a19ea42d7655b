// Package ai wraps the generative-language providers behind two small
// interfaces: Embedder turns text into a vector and Generator turns a prompt
// into text.
package ai

import (
	"context"
	"strings"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Option func(*Options)

type Options struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	SystemPrompt   string
	Dimensions     int
	Temperature    float32
	MaxTokens      int
}

func WithAPIKey(key string) Option {
	return func(o *Options) {
		o.APIKey = key
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithEmbeddingModel(model string) Option {
	return func(o *Options) {
		o.EmbeddingModel = model
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(o *Options) {
		o.SystemPrompt = prompt
	}
}

func WithDimensions(dims int) Option {
	return func(o *Options) {
		o.Dimensions = dims
	}
}

func WithTemperature(temp float32) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Dimensions:  768,
		Temperature: 0.9,
		MaxTokens:   2048,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

const studioSystemPrompt = "You are a creative-writing assistant inside a writing studio. " +
	"Write vivid, original material that follows the requested format exactly. " +
	"Never add commentary about being an AI and never wrap answers in apologies."

// ExtractJSON strips a surrounding markdown code fence (```json ... ```) from
// model output so it can be unmarshalled.
func ExtractJSON(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
