package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
)

// DBPool abstracts pgxpool.Pool so the store can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS intent_strategies (
	id         BIGSERIAL PRIMARY KEY,
	intent     TEXT NOT NULL,
	strategy   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (intent, strategy)
)`
	selectStrategiesSQL = `SELECT strategy FROM intent_strategies WHERE intent = $1 ORDER BY id`
	selectIntentsSQL    = `SELECT DISTINCT intent FROM intent_strategies ORDER BY intent`
	lockSQL             = `SELECT pg_advisory_xact_lock($1)`
	insertStrategySQL   = `INSERT INTO intent_strategies (intent, strategy) VALUES ($1, $2) ON CONFLICT (intent, strategy) DO NOTHING`
)

// writerLockKey serializes writers across processes sharing one database.
const writerLockKey int64 = 0x70617468

// PostgresStore keeps the knowledge base in a single table. Insertion order
// is the serial id; the unique constraint rules out duplicates.
type PostgresStore struct {
	pool DBPool
	log  *zap.Logger
	mu   sync.Mutex
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore verifies the connection and creates the table if needed.
func NewPostgresStore(ctx context.Context, pool DBPool, logger *zap.Logger) (*PostgresStore, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create intent_strategies table: %w", err)
	}
	return &PostgresStore{
		pool: pool,
		log:  logger.Named("knowledge.postgres"),
	}, nil
}

// Get returns the strategies for intent in insertion order.
func (s *PostgresStore) Get(ctx context.Context, intent string) ([]string, error) {
	rows, err := s.pool.Query(ctx, selectStrategiesSQL, intent)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies: %w", err)
	}
	strategies, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read strategies: %w", err)
	}
	return strategies, nil
}

// Add inserts the pair inside a transaction holding the writer lock.
func (s *PostgresStore) Add(ctx context.Context, intent, strategy string) (result schemas.AddResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return schemas.AddFailed, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, lockSQL, writerLockKey); err != nil {
		return schemas.AddFailed, fmt.Errorf("failed to acquire writer lock: %w", err)
	}
	tag, err := tx.Exec(ctx, insertStrategySQL, intent, strategy)
	if err != nil {
		return schemas.AddFailed, fmt.Errorf("failed to insert strategy: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return schemas.AddFailed, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return schemas.AlreadyPresent, nil
	}
	s.log.Info("Strategy committed.", zap.String("intent", intent), zap.String("strategy", strategy))
	return schemas.Added, nil
}

// ListIntents returns every distinct intent in lexical order.
func (s *PostgresStore) ListIntents(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, selectIntentsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query intents: %w", err)
	}
	intents, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read intents: %w", err)
	}
	return intents, nil
}
