package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
)

// Gateway is the only writer path into a Store. Inline fixes go through
// Commit; bulk discoveries go through MergeBatch, which first aligns new
// intent names with the vocabulary already in the store.
type Gateway struct {
	store      Store
	reconciler schemas.Reconciler
	log        *zap.Logger
}

// NewGateway creates a gateway. A nil reconciler merges findings unchanged.
func NewGateway(store Store, reconciler schemas.Reconciler, logger *zap.Logger) *Gateway {
	return &Gateway{
		store:      store,
		reconciler: reconciler,
		log:        logger.Named("gateway"),
	}
}

// Store exposes the underlying store for read access.
func (g *Gateway) Store() Store { return g.store }

// Commit records a single verified strategy.
func (g *Gateway) Commit(ctx context.Context, intent, strategy string) (schemas.AddResult, error) {
	return g.store.Add(ctx, intent, strategy)
}

// MergeBatch reconciles findings against the existing intents and adds every
// resulting pair. It returns how many strategies were newly added. Individual
// add failures do not stop the batch; they are joined into the returned error.
func (g *Gateway) MergeBatch(ctx context.Context, findings schemas.Findings) (int, error) {
	if len(findings) == 0 {
		return 0, nil
	}

	existing, err := g.store.ListIntents(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list existing intents: %w", err)
	}

	merged := findings
	if len(existing) > 0 && g.reconciler != nil {
		reconciled, err := g.reconciler.Reconcile(ctx, existing, findings)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			g.log.Warn("Reconciliation failed; merging raw findings.", zap.Error(err))
		case len(reconciled) == 0:
			g.log.Warn("Reconciliation returned nothing; merging raw findings.")
		default:
			merged = reconciled
		}
	}

	intents := make([]string, 0, len(merged))
	for intent := range merged {
		intents = append(intents, intent)
	}
	sort.Strings(intents)

	var (
		added int
		errs  []error
	)
	// Intents and strategies are stored exactly as given; only blank
	// entries are skipped.
	for _, intent := range intents {
		if strings.TrimSpace(intent) == "" {
			continue
		}
		for _, strategy := range merged[intent] {
			if strings.TrimSpace(strategy) == "" {
				continue
			}
			result, err := g.store.Add(ctx, intent, strategy)
			if err != nil {
				errs = append(errs, fmt.Errorf("add %q to %q: %w", strategy, intent, err))
				if ctx.Err() != nil {
					return added, errors.Join(errs...)
				}
				continue
			}
			if result == schemas.Added {
				added++
			}
		}
	}

	g.log.Info("Merged discovery batch.",
		zap.Int("proposed", merged.Count()),
		zap.Int("added", added),
		zap.Int("failed", len(errs)))
	return added, errors.Join(errs...)
}
