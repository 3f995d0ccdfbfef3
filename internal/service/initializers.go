// File: internal/service/initializers.go
package service

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/config"
	"github.com/xkilldash9x/pathwright/internal/knowledge"
	"github.com/xkilldash9x/pathwright/internal/llmclient"
	"github.com/xkilldash9x/pathwright/internal/observer"
)

// InitializeStore opens the knowledge store selected by cfg.Backend. The
// returned cleanup is never nil and releases whatever the store holds open.
func InitializeStore(ctx context.Context, cfg config.KnowledgeConfig, logger *zap.Logger) (knowledge.Store, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.BackendFile, "":
		if cfg.Path == "" {
			return nil, noop, fmt.Errorf("knowledge file path is required")
		}
		path, err := config.ExpandPath(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Initializing file knowledge store.", zap.String("path", path))
		store, err := knowledge.NewFileStore(path, logger)
		if err != nil {
			return nil, noop, err
		}
		if !cfg.Watch {
			return store, noop, nil
		}

		watcher, err := knowledge.NewWatcher(path, store, logger)
		if err != nil {
			return nil, noop, err
		}
		cleanup := func() {
			if err := watcher.Close(); err != nil {
				logger.Warn("Failed to close knowledge file watcher.", zap.Error(err))
			}
		}
		return store, cleanup, nil

	case config.BackendPostgres:
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("unable to parse PGX pool config: %w", err)
		}
		poolConfig.MaxConns = 10
		poolConfig.MinConns = 2
		poolConfig.MaxConnLifetime = 1 * time.Hour
		poolConfig.MaxConnIdleTime = 30 * time.Minute

		logger.Info("Initializing PostgreSQL knowledge store.", zap.String("host", poolConfig.ConnConfig.Host))
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, noop, fmt.Errorf("unable to create PGX connection pool: %w", err)
		}

		store, err := knowledge.NewPostgresStore(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		cleanup := func() {
			logger.Info("Closing PostgreSQL connection pool.")
			pool.Close()
		}
		return store, cleanup, nil
	}

	return nil, noop, fmt.Errorf("unsupported knowledge backend: %s", cfg.Backend)
}

// InitializeLLMClient creates the client shared by every oracle.
func InitializeLLMClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	llmClient, err := llmclient.NewClient(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize LLM client.", zap.Error(err))
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return llmClient, nil
}

// StartObserverHub serves progress events over websocket when an address is
// configured. It returns a nil hub otherwise. The cleanup stops the server and
// waits for it to exit.
func StartObserverHub(ctx context.Context, cfg config.ObserverConfig, logger *zap.Logger) (*observer.Hub, func(), error) {
	if cfg.WebSocketAddr == "" {
		return nil, func() {}, nil
	}

	ln, err := net.Listen("tcp", cfg.WebSocketAddr)
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to listen on %s: %w", cfg.WebSocketAddr, err)
	}

	hub := observer.NewHub(cfg.BufferSize, logger)
	if cfg.TokenSecret != "" {
		hub.RequireToken(observer.NewTokenAuth(cfg.TokenSecret))
	}
	serveCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := hub.Serve(serveCtx, ln); err != nil {
			logger.Error("Progress server stopped with error.", zap.Error(err))
		}
	}()

	cleanup := func() {
		cancel()
		<-done
	}
	return hub, cleanup, nil
}
