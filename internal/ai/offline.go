package ai

import (
	"context"
	"fmt"
	"strings"
)

// maxEchoRunes bounds how much of the request the placeholder repeats.
const maxEchoRunes = 240

// OfflineGenerator answers without any network access. It backs
// AI_PROVIDER=offline for local development and demos.
type OfflineGenerator struct{}

func NewOfflineGenerator() *OfflineGenerator { return &OfflineGenerator{} }

func (OfflineGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	request := lastParagraph(prompt)
	if r := []rune(request); len(r) > maxEchoRunes {
		request = string(r[:maxEchoRunes]) + "..."
	}
	return fmt.Sprintf("[offline draft] No AI provider is configured, so here is a placeholder for: %s", request), nil
}

func lastParagraph(s string) string {
	parts := strings.Split(strings.TrimSpace(s), "\n\n")
	for i := len(parts) - 1; i >= 0; i-- {
		if p := strings.TrimSpace(parts[i]); p != "" {
			return strings.Join(strings.Fields(p), " ")
		}
	}
	return ""
}
