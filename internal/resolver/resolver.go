// Package resolver maps a semantic intent to a concrete element on the page
// currently loaded, using the per-origin cache first and the knowledge store
// second.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/config"
	"github.com/xkilldash9x/pathwright/internal/knowledge"
)

// Reason explains why an intent could not be resolved.
type Reason string

const (
	// NoKnownStrategy means the store holds no candidates for the intent.
	NoKnownStrategy Reason = "no_known_strategy"
	// AllStale means every known candidate failed to locate an element.
	AllStale Reason = "all_stale"
)

// ResolveError reports a classified resolution failure. It unwraps to
// schemas.ErrNotFound.
type ResolveError struct {
	Intent string
	Reason Reason
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("could not resolve %q (%s)", e.Intent, e.Reason)
}

func (e *ResolveError) Unwrap() error { return schemas.ErrNotFound }

// Resolver implements the two-tier lookup. It never retries; a failure is
// reported once and recovery is left to the caller.
type Resolver struct {
	store  knowledge.Store
	cache  *OriginCache
	cfg    config.ResolverConfig
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a resolver over store, sharing cache across sessions.
func New(store knowledge.Store, cache *OriginCache, cfg config.ResolverConfig, logger *zap.Logger) *Resolver {
	if cache == nil {
		cache = NewOriginCache()
	}
	return &Resolver{
		store:  store,
		cache:  cache,
		cfg:    cfg,
		logger: logger.Named("resolver"),
		sleep:  sleepCtx,
	}
}

// Cache exposes the origin cache.
func (r *Resolver) Cache() *OriginCache { return r.cache }

// Resolve finds the element for intent on page. Classified failures are
// returned as *ResolveError; any other error is an actuator fault or a
// canceled context and is returned as is.
func (r *Resolver) Resolve(ctx context.Context, page schemas.Page, intent string) (*schemas.ElementHandle, error) {
	current, err := page.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current url: %w", err)
	}
	origin := Hostname(current)
	log := r.logger.With(zap.String("intent", intent), zap.String("origin", origin))

	if strategy, ok := r.cache.TryFast(origin, intent); ok {
		el, err := page.Locate(ctx, strategy, r.cfg.LocateTimeout)
		if err != nil {
			return nil, err
		}
		if el != nil {
			log.Debug("Origin cache hit.", zap.String("strategy", strategy))
			if err := r.reveal(ctx, page, el); err != nil {
				return nil, err
			}
			return el, nil
		}
		log.Debug("Cached strategy is stale; evicting.", zap.String("strategy", strategy))
		r.cache.Evict(origin, intent)
	}

	candidates, err := r.store.Get(ctx, intent)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	if len(candidates) == 0 {
		log.Info("No known strategy for intent.")
		return nil, &ResolveError{Intent: intent, Reason: NoKnownStrategy}
	}

	for _, strategy := range candidates {
		el, err := page.Locate(ctx, strategy, r.cfg.LocateTimeout)
		if err != nil {
			return nil, err
		}
		if el == nil {
			log.Debug("Candidate did not match.", zap.String("strategy", strategy))
			continue
		}
		if err := r.reveal(ctx, page, el); err != nil {
			return nil, err
		}
		r.cache.Record(origin, intent, strategy)
		log.Info("Resolved intent from knowledge store.", zap.String("strategy", strategy))
		return el, nil
	}

	log.Info("Every known strategy is stale.", zap.Int("candidates", len(candidates)))
	return nil, &ResolveError{Intent: intent, Reason: AllStale}
}

// reveal centers the element and lets the page settle.
func (r *Resolver) reveal(ctx context.Context, page schemas.Page, el *schemas.ElementHandle) error {
	if err := page.ScrollIntoView(ctx, el); err != nil {
		return fmt.Errorf("failed to scroll %q into view: %w", el.Strategy, err)
	}
	return r.sleep(ctx, r.cfg.ScrollSettle)
}

// Hostname extracts the origin key from a page URL. Unparseable input is
// used verbatim so that it still keys the cache consistently.
func Hostname(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}
	return strings.ToLower(u.Hostname())
}

// IsNotFound reports whether err is a classified resolution failure.
func IsNotFound(err error) bool {
	return errors.Is(err, schemas.ErrNotFound)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
