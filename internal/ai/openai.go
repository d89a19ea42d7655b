package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIModel          = "gpt-4o-mini"
	defaultOpenAIEmbeddingModel = "text-embedding-3-small"
)

// OpenAIService implements Embedder and Generator against the OpenAI API.
// Embeddings are requested at Options.Dimensions so they line up with the
// local fallback vectors.
type OpenAIService struct {
	options Options
	client  *openai.Client
}

func NewOpenAIService(opts ...Option) *OpenAIService {
	options := NewOptions(opts...)
	if options.Model == "" {
		options.Model = defaultOpenAIModel
	}
	if options.EmbeddingModel == "" {
		options.EmbeddingModel = defaultOpenAIEmbeddingModel
	}

	return &OpenAIService{
		options: options,
		client:  openai.NewClient(options.APIKey),
	}
}

func (s *OpenAIService) Embed(ctx context.Context, text string) ([]float32, error) {
	rsp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      openai.EmbeddingModel(s.options.EmbeddingModel),
		Dimensions: s.options.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding request failed: %w", err)
	}

	if len(rsp.Data) == 0 || len(rsp.Data[0].Embedding) == 0 {
		return nil, errors.New("no embedding data received from openai")
	}
	return rsp.Data[0].Embedding, nil
}

func (s *OpenAIService) Generate(ctx context.Context, prompt string) (string, error) {
	system := s.options.SystemPrompt
	if system == "" {
		system = studioSystemPrompt
	}

	rsp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.options.Model,
		Temperature: s.options.Temperature,
		MaxTokens:   s.options.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion request failed: %w", err)
	}

	if len(rsp.Choices) == 0 || len(rsp.Choices[0].Message.Content) == 0 {
		return "", errors.New("no response from openai")
	}
	return rsp.Choices[0].Message.Content, nil
}
