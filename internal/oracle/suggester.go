package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/llmutil"
)

// Suggester asks the model for one replacement strategy for an intent that
// no known strategy could locate.
type Suggester struct {
	client schemas.LLMClient
	opts   Options
	logger *zap.Logger
}

var _ schemas.Suggester = (*Suggester)(nil)

func NewSuggester(client schemas.LLMClient, opts Options, logger *zap.Logger) *Suggester {
	return &Suggester{client: client, opts: opts, logger: logger.Named("suggester")}
}

// Suggest returns the cleaned suggestion. It may be empty; judging whether a
// suggestion is usable is left to the caller.
func (s *Suggester) Suggest(ctx context.Context, intent, task, pageContent string) (string, error) {
	req := schemas.GenerationRequest{
		SystemPrompt: suggesterSystemPrompt,
		UserPrompt:   suggesterUser(intent, task, Digest(pageContent, s.opts.ContentLimit)),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: s.opts.Temperature},
	}

	response, err := s.client.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("strategy suggestion failed: %w", err)
	}

	strategy := llmutil.CleanStrategy(response)
	s.logger.Debug("Strategy suggested.", zap.String("intent", intent), zap.String("strategy", strategy))
	return strategy, nil
}
