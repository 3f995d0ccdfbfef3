package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/resolver"
)

// PageOpener starts a new browser session.
type PageOpener func(ctx context.Context) (schemas.Page, error)

// Actuator executes tool calls against one lazily opened browser session.
type Actuator struct {
	registry *Registry
	resolver *resolver.Resolver
	open     PageOpener
	opts     Options
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.Mutex
	page   schemas.Page
	closed bool
}

var _ schemas.Actuator = (*Actuator)(nil)

// NewActuator creates an actuator. No browser is started until a call needs one.
func NewActuator(registry *Registry, res *resolver.Resolver, open PageOpener, opts Options, logger *zap.Logger) *Actuator {
	return &Actuator{
		registry: registry,
		resolver: res,
		open:     open,
		opts:     opts,
		logger:   logger.Named("actuator"),
		now:      time.Now,
	}
}

// session returns the page, opening it on first use.
func (a *Actuator) session(ctx context.Context) (schemas.Page, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, schemas.ErrSessionClosed
	}
	if a.page != nil {
		return a.page, nil
	}
	page, err := a.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	a.page = page
	return page, nil
}

// current returns the page if one is open.
func (a *Actuator) current() schemas.Page {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	return a.page
}

// Invoke validates and runs call. Failures that leave the browser dead are
// reported as Unresponsive; panics inside a tool become errors.
func (a *Actuator) Invoke(ctx context.Context, call schemas.ToolCall) (result schemas.ToolResult, err error) {
	tool, args, err := a.registry.Bind(call)
	if err != nil {
		return schemas.ToolResult{}, err
	}

	page, err := a.session(ctx)
	if err != nil {
		return schemas.ToolResult{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Tool panicked.", zap.String("tool", tool.Name), zap.Any("panic", r), zap.Stack("stack"))
			result = schemas.ToolResult{}
			err = fmt.Errorf("tool %s panicked: %v", tool.Name, r)
		}
	}()

	env := &Env{
		Page:     page,
		Resolver: a.resolver,
		Options:  a.opts,
		Logger:   a.logger.With(zap.String("tool", tool.Name)),
		Now:      a.now,
	}

	a.logger.Debug("Invoking tool.", zap.Stringer("call", call))
	result, err = tool.Run(ctx, env, args)
	if err == nil {
		return result, nil
	}

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return schemas.ToolResult{}, err
	}
	if errors.Is(err, schemas.ErrSessionClosed) || !page.Alive(ctx) {
		a.logger.Warn("Browser unresponsive after tool failure.", zap.String("tool", tool.Name), zap.Error(err))
		return schemas.Unresponsive("browser stopped responding during %s: %v", tool.Name, err), nil
	}
	return schemas.ToolResult{}, fmt.Errorf("%s failed: %w", tool.Name, err)
}

// IsAlive reports whether an open session still answers.
func (a *Actuator) IsAlive(ctx context.Context) bool {
	page := a.current()
	if page == nil {
		return false
	}
	return page.Alive(ctx)
}

// CapturePage returns the full HTML of the current page.
func (a *Actuator) CapturePage(ctx context.Context) (string, error) {
	page, err := a.session(ctx)
	if err != nil {
		return "", err
	}
	return page.Content(ctx)
}

// CurrentURL returns the URL of the current page.
func (a *Actuator) CurrentURL(ctx context.Context) (string, error) {
	page, err := a.session(ctx)
	if err != nil {
		return "", err
	}
	return page.CurrentURL(ctx)
}

// Locate probes strategy on the current page.
func (a *Actuator) Locate(ctx context.Context, strategy string, wait time.Duration) (*schemas.ElementHandle, error) {
	page, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	return page.Locate(ctx, strategy, wait)
}

// Close tears the session down if one was opened.
func (a *Actuator) Close(ctx context.Context) error {
	a.mu.Lock()
	page := a.page
	a.page = nil
	a.closed = true
	a.mu.Unlock()

	if page == nil {
		return nil
	}
	return page.Close(ctx)
}

// Factory hands out one actuator per orchestrator attempt.
type Factory struct {
	Registry *Registry
	Resolver *resolver.Resolver
	Open     PageOpener
	Options  Options
	Logger   *zap.Logger
}

var _ schemas.ActuatorFactory = (*Factory)(nil)

// NewActuator returns a fresh actuator sharing the registry and resolver.
func (f *Factory) NewActuator(_ context.Context) (schemas.Actuator, error) {
	if f.Open == nil {
		return nil, fmt.Errorf("actuator factory has no page opener")
	}
	return NewActuator(f.Registry, f.Resolver, f.Open, f.Options, f.Logger), nil
}
