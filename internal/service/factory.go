// File: internal/service/factory.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/browser"
	"github.com/xkilldash9x/pathwright/internal/config"
	"github.com/xkilldash9x/pathwright/internal/knowledge"
	"github.com/xkilldash9x/pathwright/internal/learning"
	"github.com/xkilldash9x/pathwright/internal/observer"
	"github.com/xkilldash9x/pathwright/internal/oracle"
	"github.com/xkilldash9x/pathwright/internal/orchestrator"
	"github.com/xkilldash9x/pathwright/internal/resolver"
	"github.com/xkilldash9x/pathwright/internal/tools"
)

// ComponentFactory builds the set of components a command runs against.
// Commands depend on the interface so tests can substitute their own wiring.
type ComponentFactory interface {
	Create(ctx context.Context, cfg *config.Config, logger *zap.Logger, sinks ...observer.Sink) (*Components, error)
}

// concreteFactory is the production implementation of the ComponentFactory.
type concreteFactory struct{}

// NewComponentFactory creates a new production-ready component factory.
func NewComponentFactory() ComponentFactory {
	return &concreteFactory{}
}

// Create wires the store, browser, oracles, learner and orchestrator. Every
// progress event goes to sinks, a log sink, and the websocket hub if one is
// configured. No browser is launched until the first task opens a session.
func (f *concreteFactory) Create(ctx context.Context, cfg *config.Config, logger *zap.Logger, sinks ...observer.Sink) (c *Components, initializationErr error) {
	c = &Components{Config: cfg}

	defer func() {
		if initializationErr != nil {
			logger.Warn("Component initialization failed, cleaning up.", zap.Error(initializationErr))
			c.Shutdown()
			c = nil
		}
	}()

	// 1. Knowledge store and its gateway.
	store, storeCleanup, err := InitializeStore(ctx, cfg.Knowledge, logger)
	c.storeCleanup = storeCleanup
	if err != nil {
		return c, fmt.Errorf("failed to initialize knowledge store: %w", err)
	}
	c.Store = store

	// 2. Progress sinks.
	hub, hubCleanup, err := StartObserverHub(ctx, cfg.Observer, logger)
	c.hubCleanup = hubCleanup
	if err != nil {
		return c, fmt.Errorf("failed to start progress server: %w", err)
	}
	c.Hub = hub
	c.Sinks = append(append([]observer.Sink{}, sinks...), observer.LogSink(logger))
	if hub != nil {
		c.Sinks = append(c.Sinks, hub)
	}

	// 3. LLM client and oracles.
	llm, err := InitializeLLMClient(ctx, cfg.LLM, logger)
	if err != nil {
		return c, err
	}
	c.LLM = llm

	c.Registry = tools.Builtins()
	c.Planner = oracle.NewPlanner(llm, c.Registry, oracle.Options{
		Temperature: cfg.LLM.Temperature,
	}, logger)
	c.Suggester = oracle.NewSuggester(llm, oracle.Options{
		Temperature:  cfg.LLM.Temperature,
		ContentLimit: cfg.Orchestrator.PageContentLimit,
	}, logger)
	c.Discoverer = oracle.NewDiscoverer(llm, oracle.Options{
		Temperature:  cfg.LLM.Temperature,
		ContentLimit: cfg.Orchestrator.DiscoveryContentLimit,
	}, logger)
	c.Reconciler = oracle.NewReconciler(llm, oracle.Options{
		Temperature: cfg.LLM.Temperature,
	}, logger)
	c.Gateway = knowledge.NewGateway(store, c.Reconciler, logger)

	// 4. Browser and actuators. The allocator outlives a canceled command
	// context; Shutdown releases it.
	c.Browser = browser.NewManager(context.WithoutCancel(ctx), cfg.Browser, logger)
	c.Resolver = resolver.New(store, resolver.NewOriginCache(), cfg.Resolver, logger)

	toolOpts, err := toolOptions(cfg)
	if err != nil {
		return c, err
	}
	manager := c.Browser
	c.Actuators = &tools.Factory{
		Registry: c.Registry,
		Resolver: c.Resolver,
		Open: func(ctx context.Context) (schemas.Page, error) {
			session, err := manager.NewSession(ctx)
			if err != nil {
				return nil, err
			}
			return session, nil
		},
		Options: toolOpts,
		Logger:  logger,
	}

	// 5. Learner and orchestrator.
	captureDir, err := expandOptional(cfg.Browser.CaptureDir)
	if err != nil {
		return c, err
	}
	c.Learner = learning.New(c.Discoverer, c.Gateway, learning.Config{
		CaptureDir: captureDir,
		MinContent: cfg.Orchestrator.MinPageContent,
	}, c.Observe("learner"), logger)

	orch, err := orchestrator.New(orchestrator.Dependencies{
		Planner:   c.Planner,
		Actuators: c.Actuators,
		Suggester: c.Suggester,
		Committer: c.Gateway,
		Learner:   c.Learner,
	}, orchestrator.NewConfig(cfg), logger)
	if err != nil {
		return c, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	c.Orchestrator = orch

	logger.Debug("Components initialized.",
		zap.String("knowledge_backend", cfg.Knowledge.Backend),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.Bool("progress_server", hub != nil))
	return c, nil
}

func toolOptions(cfg *config.Config) (tools.Options, error) {
	screenshotDir, err := expandOptional(cfg.Browser.ScreenshotDir)
	if err != nil {
		return tools.Options{}, err
	}
	return tools.Options{
		SearchBoxIntent:    cfg.Orchestrator.SearchBoxIntent,
		SearchButtonIntent: cfg.Orchestrator.SearchButtonIntent,
		ScreenshotDir:      screenshotDir,
		PageContentLimit:   cfg.Orchestrator.PageContentLimit,
	}, nil
}

func expandOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return config.ExpandPath(path)
}
