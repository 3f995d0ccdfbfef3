// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/config"
)

// NewClient builds the LLM client every oracle shares: one provider client per
// tier behind a router, throttled by the configured request rate.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	fastModel := cfg.FastModel
	if fastModel == "" {
		fastModel = cfg.Model
	}

	powerful, err := newProviderClient(ctx, cfg, cfg.Model, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create powerful tier client: %w", err)
	}
	fast, err := newProviderClient(ctx, cfg, fastModel, logger)
	if err != nil {
		powerful.Close()
		return nil, fmt.Errorf("failed to create fast tier client: %w", err)
	}

	router, err := NewLLMRouter(logger, fast, powerful)
	if err != nil {
		return nil, err
	}
	return NewRateLimited(router, cfg.RequestsPerMinute, logger), nil
}

func newProviderClient(ctx context.Context, cfg config.LLMConfig, model string, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg, model, logger)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg, model, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderOpenAI)
	}
}

// temperatureFor prefers the request's temperature and falls back to the
// configured default.
func temperatureFor(req schemas.GenerationRequest, cfg config.LLMConfig) float64 {
	if req.Options.Temperature > 0 {
		return req.Options.Temperature
	}
	return cfg.Temperature
}
