package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/writing-studio/studio/internal/config"
)

// Provider bundles the collaborators selected by configuration. Embedder is
// nil for providers without an embedding endpoint.
type Provider struct {
	Name      string
	Embedder  Embedder
	Generator Generator

	close func() error
}

func NewProvider(ctx context.Context, cfg config.Config) (*Provider, error) {
	common := []Option{
		WithModel(cfg.GenerationModel),
		WithEmbeddingModel(cfg.EmbeddingModel),
		WithDimensions(cfg.EmbeddingDimensions),
	}

	p := &Provider{Name: cfg.AIProvider}

	switch cfg.AIProvider {
	case config.ProviderGemini:
		svc, err := NewGeminiService(ctx, append(common, WithAPIKey(cfg.GeminiAPIKey))...)
		if err != nil {
			return nil, err
		}
		p.Embedder, p.Generator, p.close = svc, svc, svc.Close
	case config.ProviderOpenAI:
		svc := NewOpenAIService(append(common, WithAPIKey(cfg.OpenAIAPIKey))...)
		p.Embedder, p.Generator = svc, svc
	case config.ProviderAnthropic:
		p.Generator = NewAnthropicGenerator(append(common, WithAPIKey(cfg.AnthropicAPIKey))...)
	case config.ProviderOffline:
		p.Generator = NewOfflineGenerator()
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.AIProvider)
	}

	limiter := NewLimiter(cfg.AIRequestsPerSecond, cfg.AIBurst)
	if p.Embedder != nil {
		p.Embedder = NewThrottledEmbedder(p.Embedder, limiter)
	} else {
		log.Printf("AI provider %q has no embedding endpoint; world search will use local fallback vectors", cfg.AIProvider)
	}
	p.Generator = NewThrottledGenerator(p.Generator, limiter)

	return p, nil
}

func (p *Provider) Close() {
	if p.close == nil {
		return
	}
	if err := p.close(); err != nil {
		log.Printf("Error closing AI provider %q: %v", p.Name, err)
	}
}
