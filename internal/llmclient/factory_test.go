package llmclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/config"
)

func TestNewClient(t *testing.T) {
	t.Run("gemini builds a throttled router", func(t *testing.T) {
		cfg := testLLMConfig(config.ProviderGemini, "")
		cfg.Model, cfg.FastModel, cfg.RequestsPerMinute = "gemini-pro", "gemini-flash", 30

		client, err := NewClient(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })

		limited, ok := client.(*RateLimited)
		require.True(t, ok)
		router, ok := limited.next.(*LLMRouter)
		require.True(t, ok)

		fast := router.clients[schemas.TierFast].(*GeminiClient)
		powerful := router.clients[schemas.TierPowerful].(*GeminiClient)
		assert.Equal(t, "gemini-flash", fast.model)
		assert.Equal(t, "gemini-pro", powerful.model)
	})

	t.Run("openai without a fast model reuses the main model", func(t *testing.T) {
		cfg := testLLMConfig(config.ProviderOpenAI, "")
		cfg.Model = "gpt-4o"

		client, err := NewClient(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)

		router := client.(*RateLimited).next.(*LLMRouter)
		assert.Equal(t, "gpt-4o", router.clients[schemas.TierFast].(*OpenAIClient).model)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := testLLMConfig("anthropic-local", "")
		cfg.Model = "m"
		_, err := NewClient(context.Background(), cfg, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "unknown or unsupported LLM provider")
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := testLLMConfig(config.ProviderGemini, "")
		cfg.Model, cfg.APIKey = "m", ""
		_, err := NewClient(context.Background(), cfg, zaptest.NewLogger(t))
		assert.Error(t, err)
	})
}

func TestTemperatureFor(t *testing.T) {
	cfg := config.LLMConfig{Temperature: 0.2}
	assert.Equal(t, 0.2, temperatureFor(schemas.GenerationRequest{}, cfg))
	assert.Equal(t, 0.9, temperatureFor(schemas.GenerationRequest{Options: schemas.GenerationOptions{Temperature: 0.9}}, cfg))
}
