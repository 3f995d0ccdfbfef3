package llmclient

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/pathwright/api/schemas"
)

// RateLimited throttles calls to the wrapped client. Concurrent tasks share
// one budget so bursts across workers stay inside provider quotas.
type RateLimited struct {
	next    schemas.LLMClient
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRateLimited wraps next with a limit of perMinute requests. A
// non-positive rate disables throttling.
func NewRateLimited(next schemas.LLMClient, perMinute int, logger *zap.Logger) *RateLimited {
	limit := rate.Inf
	burst := 1
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
		burst = max(1, perMinute/10)
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("llm_limiter"),
	}
}

// Generate waits for a token and forwards the request.
func (r *RateLimited) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}
	return r.next.Generate(ctx, req)
}

// Close closes the wrapped client.
func (r *RateLimited) Close() error { return r.next.Close() }
