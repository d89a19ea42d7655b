package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// NewLimiter builds the shared outbound limiter. A non-positive rate disables
// throttling.
func NewLimiter(requestsPerSecond float64, burst int) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

type throttledEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewThrottledEmbedder waits on limiter before every call to next.
func NewThrottledEmbedder(next Embedder, limiter *rate.Limiter) Embedder {
	return &throttledEmbedder{next: next, limiter: limiter}
}

func (t *throttledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for provider quota: %w", err)
	}
	return t.next.Embed(ctx, text)
}

type throttledGenerator struct {
	next    Generator
	limiter *rate.Limiter
}

// NewThrottledGenerator waits on limiter before every call to next.
func NewThrottledGenerator(next Generator, limiter *rate.Limiter) Generator {
	return &throttledGenerator{next: next, limiter: limiter}
}

func (t *throttledGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for provider quota: %w", err)
	}
	return t.next.Generate(ctx, prompt)
}
