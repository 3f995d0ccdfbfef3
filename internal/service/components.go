// File: internal/service/components.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/browser"
	"github.com/xkilldash9x/pathwright/internal/config"
	"github.com/xkilldash9x/pathwright/internal/knowledge"
	"github.com/xkilldash9x/pathwright/internal/learning"
	"github.com/xkilldash9x/pathwright/internal/observability"
	"github.com/xkilldash9x/pathwright/internal/observer"
	"github.com/xkilldash9x/pathwright/internal/oracle"
	"github.com/xkilldash9x/pathwright/internal/orchestrator"
	"github.com/xkilldash9x/pathwright/internal/resolver"
	"github.com/xkilldash9x/pathwright/internal/tools"
)

const shutdownTimeout = 30 * time.Second

// Components holds everything a command needs to run tasks or learn pages,
// and owns their lifecycle.
type Components struct {
	Config *config.Config

	Store     knowledge.Store
	Gateway   *knowledge.Gateway
	Browser   *browser.Manager
	Resolver  *resolver.Resolver
	Registry  *tools.Registry
	Actuators *tools.Factory
	LLM       schemas.LLMClient

	Planner    *oracle.Planner
	Suggester  *oracle.Suggester
	Discoverer *oracle.Discoverer
	Reconciler *oracle.Reconciler
	Learner    *learning.Learner

	Orchestrator *orchestrator.Orchestrator

	// Hub is nil unless a websocket address is configured.
	Hub *observer.Hub
	// Sinks receive every progress event.
	Sinks []observer.Sink

	storeCleanup func()
	hubCleanup   func()
}

// Observe returns the observer for one task, fanned out to every sink.
func (c *Components) Observe(taskID string) *observer.Task {
	return observer.ForTask(taskID, c.Sinks...)
}

// Shutdown releases every component in reverse order of creation. It is safe
// to call on partially built Components.
func (c *Components) Shutdown() {
	logger := observability.GetLogger()
	logger.Debug("Beginning components shutdown sequence.")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if c.Browser != nil {
		if err := c.Browser.Shutdown(ctx); err != nil {
			logger.Warn("Error during browser manager shutdown.", zap.Error(err))
		}
	}

	if c.LLM != nil {
		if err := c.LLM.Close(); err != nil {
			logger.Warn("Error closing LLM client.", zap.Error(err))
		}
	}

	if c.hubCleanup != nil {
		c.hubCleanup()
		logger.Debug("Progress server stopped.")
	}

	if c.storeCleanup != nil {
		c.storeCleanup()
		logger.Debug("Knowledge store closed.")
	}

	logger.Info("All components shut down.")
}
