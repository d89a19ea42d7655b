package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"AI_PROVIDER", "EMBEDDING_DIMENSIONS", "AI_TIMEOUT", "DATABASE_URL",
		"HTTP_PORT", "LOG_LEVEL", "JWT_TTL", "RATE_LIMIT_CLEANUP_INTERVAL",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("AI_PROVIDER", "gemini")

	cfg := FromEnv()

	assert.Equal(t, ProviderGemini, cfg.AIProvider)
	assert.Equal(t, 768, cfg.EmbeddingDimensions)
	assert.Equal(t, 20*time.Second, cfg.AITimeout)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 5*time.Minute, cfg.RateLimitCleanupInterval)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("AI_PROVIDER", "OpenAI")
	t.Setenv("EMBEDDING_DIMENSIONS", "256")
	t.Setenv("AI_TIMEOUT", "3s")
	t.Setenv("AI_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := FromEnv()

	assert.Equal(t, ProviderOpenAI, cfg.AIProvider)
	assert.Equal(t, 256, cfg.EmbeddingDimensions)
	assert.Equal(t, 3*time.Second, cfg.AITimeout)
	assert.InDelta(t, 0.5, cfg.AIRequestsPerSecond, 1e-9)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	valid := Config{
		AIProvider:          ProviderOffline,
		JWTSecret:           "secret",
		EmbeddingDimensions: 768,
		AITimeout:           time.Second,
	}
	require.NoError(t, Validate(valid))

	missingSecret := valid
	missingSecret.JWTSecret = ""
	assert.ErrorContains(t, Validate(missingSecret), "JWT_SECRET")

	gemini := valid
	gemini.AIProvider = ProviderGemini
	assert.ErrorContains(t, Validate(gemini), "GEMINI_API_KEY")

	unknown := valid
	unknown.AIProvider = "palm"
	assert.ErrorContains(t, Validate(unknown), "unknown AI_PROVIDER")

	badDims := valid
	badDims.EmbeddingDimensions = 0
	assert.ErrorContains(t, Validate(badDims), "EMBEDDING_DIMENSIONS")
}
