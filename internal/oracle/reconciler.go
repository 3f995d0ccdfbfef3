package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
)

// Reconciler asks the model to fold raw findings into the existing intent
// vocabulary.
type Reconciler struct {
	client schemas.LLMClient
	opts   Options
	logger *zap.Logger
}

var _ schemas.Reconciler = (*Reconciler)(nil)

func NewReconciler(client schemas.LLMClient, opts Options, logger *zap.Logger) *Reconciler {
	return &Reconciler{client: client, opts: opts, logger: logger.Named("reconciler")}
}

// Reconcile returns the consolidated findings.
func (r *Reconciler) Reconcile(ctx context.Context, existing []string, findings schemas.Findings) (schemas.Findings, error) {
	encoded, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode findings: %w", err)
	}

	req := schemas.GenerationRequest{
		SystemPrompt: reconcileSystemPrompt,
		UserPrompt:   reconcileUser(existing, string(encoded)),
		Tier:         schemas.TierPowerful,
		Options:      schemas.GenerationOptions{Temperature: r.opts.Temperature, ForceJSONFormat: true},
	}

	response, err := r.client.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("reconciliation failed: %w", err)
	}

	merged, err := parseFindings(response)
	if err != nil {
		return nil, fmt.Errorf("reconciliation returned unusable output: %w", err)
	}
	r.logger.Info("Findings reconciled.",
		zap.Int("proposed_intents", len(findings)),
		zap.Int("final_intents", len(merged)))
	return merged, nil
}
