package oracle

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/llmutil"
)

// Discoverer asks the model to name every actionable element on a page.
type Discoverer struct {
	client schemas.LLMClient
	opts   Options
	logger *zap.Logger
}

var _ schemas.Discoverer = (*Discoverer)(nil)

func NewDiscoverer(client schemas.LLMClient, opts Options, logger *zap.Logger) *Discoverer {
	return &Discoverer{client: client, opts: opts, logger: logger.Named("discoverer")}
}

// Discover returns intent → strategies proposals for pageContent.
func (d *Discoverer) Discover(ctx context.Context, pageContent string) (schemas.Findings, error) {
	req := schemas.GenerationRequest{
		SystemPrompt: discoverySystemPrompt,
		UserPrompt:   discoveryUser(Digest(pageContent, d.opts.ContentLimit)),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: d.opts.Temperature, ForceJSONFormat: true},
	}

	response, err := d.client.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("discovery failed: %w", err)
	}

	findings, err := parseFindings(response)
	if err != nil {
		return nil, fmt.Errorf("discovery returned unusable output: %w", err)
	}
	d.logger.Info("Discovery finished.", zap.Int("intents", len(findings)), zap.Int("strategies", findings.Count()))
	return findings, nil
}

// parseFindings reads a JSON object of intent → strategies. A bare string
// value is taken as a single strategy; other value types are ignored.
func parseFindings(response string) (schemas.Findings, error) {
	raw, err := llmutil.ParseJSONResponse[map[string]any](response)
	if err != nil {
		return nil, err
	}

	findings := make(schemas.Findings, len(*raw))
	for intent, value := range *raw {
		var strategies []string
		switch v := value.(type) {
		case string:
			strategies = appendStrategy(strategies, v)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					strategies = appendStrategy(strategies, s)
				}
			}
		}
		if len(strategies) > 0 {
			findings[intent] = strategies
		}
	}
	return findings, nil
}

func appendStrategy(list []string, s string) []string {
	if s = strings.TrimSpace(s); s == "" {
		return list
	}
	return append(list, s)
}
