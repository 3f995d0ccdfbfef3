// Package knowledge holds the durable intent → strategy record and the gateway
// through which new strategies are committed to it.
package knowledge

import (
	"context"

	"github.com/xkilldash9x/pathwright/api/schemas"
)

// Store is the single source of truth for known strategies. Candidate lists
// are ordered by insertion and never contain duplicates. Implementations are
// append-only and safe for concurrent use.
type Store interface {
	// Get returns the candidates for intent, oldest first. Unknown intents
	// yield an empty list.
	Get(ctx context.Context, intent string) ([]string, error)
	// Add appends strategy to intent's candidates unless it is already there.
	// The whole read-modify-write runs under one critical section. On failure
	// the durable record is unchanged and the result is AddFailed.
	Add(ctx context.Context, intent, strategy string) (schemas.AddResult, error)
	// ListIntents reloads durable storage and returns every known intent.
	ListIntents(ctx context.Context) ([]string, error)
}

// Invalidator is implemented by stores that keep an in-memory mirror.
type Invalidator interface {
	// Invalidate drops the mirror so the next read goes to durable storage.
	Invalidate()
}
