package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultGeminiModel          = "gemini-1.5-flash-latest"
	defaultGeminiEmbeddingModel = "text-embedding-004"
)

// GeminiService implements both Embedder and Generator on one genai client.
type GeminiService struct {
	options Options
	client  *genai.Client
}

func NewGeminiService(ctx context.Context, opts ...Option) (*GeminiService, error) {
	options := NewOptions(opts...)
	if options.Model == "" {
		options.Model = defaultGeminiModel
	}
	if options.EmbeddingModel == "" {
		options.EmbeddingModel = defaultGeminiEmbeddingModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(options.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiService{
		options: options,
		client:  client,
	}, nil
}

func (s *GeminiService) Close() error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("closing GenAI client: %w", err)
	}
	log.Println("GenAI client closed.")
	return nil
}

func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(s.options.EmbeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}

	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, errors.New("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (s *GeminiService) Generate(ctx context.Context, prompt string) (string, error) {
	model := s.client.GenerativeModel(s.options.Model)

	system := s.options.SystemPrompt
	if system == "" {
		system = studioSystemPrompt
	}
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}
	model.SetTemperature(s.options.Temperature)
	model.SetMaxOutputTokens(int32(s.options.MaxTokens))

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini returned no candidates")
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}

	if out.Len() == 0 {
		return "", errors.New("gemini returned an empty response")
	}
	return out.String(), nil
}
