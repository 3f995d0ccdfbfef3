package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileStore keeps the knowledge base as one JSON document:
//
//	{"search box": ["#q", "input[name=q]"], "login": ["#login-btn"]}
//
// Reads are served from a lazily loaded mirror. Every successful write drops
// the mirror. A single mutex guards the mirror and every touch of the file, so
// readers never see a half-written document and writers never lose updates.
type FileStore struct {
	path string
	log  *zap.Logger

	mu     sync.Mutex
	mirror map[string][]string // nil until loaded
}

var (
	_ Store       = (*FileStore)(nil)
	_ Invalidator = (*FileStore)(nil)
)

// NewFileStore prepares a store backed by the file at path. The file does not
// need to exist; its parent directory is created if missing.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("knowledge file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create knowledge directory: %w", err)
	}
	return &FileStore{
		path: path,
		log:  logger.Named("knowledge.file").With(zap.String("path", path)),
	}, nil
}

// Path returns the location of the backing document.
func (s *FileStore) Path() string { return s.path }

// Get returns a copy of the candidates for intent.
func (s *FileStore) Get(ctx context.Context, intent string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mirror == nil {
		s.mirror = s.readLocked()
	}
	return slices.Clone(s.mirror[intent]), nil
}

// Add appends strategy to intent's list and rewrites the document.
func (s *FileStore) Add(ctx context.Context, intent, strategy string) (schemas.AddResult, error) {
	if err := ctx.Err(); err != nil {
		return schemas.AddFailed, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Always start from disk; the mirror may predate another process's write.
	kb := s.readLocked()
	existing := kb[intent]
	if slices.Contains(existing, strategy) {
		s.log.Debug("Strategy already known.", zap.String("intent", intent), zap.String("strategy", strategy))
		return schemas.AlreadyPresent, nil
	}
	kb[intent] = append(existing, strategy)

	if err := s.writeLocked(kb); err != nil {
		s.log.Error("Failed to persist knowledge base.", zap.String("intent", intent), zap.Error(err))
		return schemas.AddFailed, err
	}
	s.mirror = nil

	s.log.Info("Strategy committed.", zap.String("intent", intent), zap.String("strategy", strategy))
	return schemas.Added, nil
}

// ListIntents reloads the document and returns its intents in sorted order.
func (s *FileStore) ListIntents(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mirror = s.readLocked()
	intents := make([]string, 0, len(s.mirror))
	for intent := range s.mirror {
		intents = append(intents, intent)
	}
	sort.Strings(intents)
	return intents, nil
}

// Invalidate drops the mirror.
func (s *FileStore) Invalidate() {
	s.mu.Lock()
	s.mirror = nil
	s.mu.Unlock()
}

// readLocked loads the document. A missing or corrupt file is an empty store.
func (s *FileStore) readLocked() map[string][]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("Knowledge file unreadable; treating as empty.", zap.Error(err))
		}
		return make(map[string][]string)
	}

	kb := make(map[string][]string)
	if err := json.Unmarshal(data, &kb); err != nil {
		s.log.Warn("Knowledge file is corrupt; treating as empty.", zap.Error(err))
		return make(map[string][]string)
	}
	return kb
}

// writeLocked replaces the document atomically: the new content goes to a
// temp file in the same directory which is then renamed over the original.
func (s *FileStore) writeLocked(kb map[string][]string) (err error) {
	data, err := json.MarshalIndent(kb, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode knowledge base: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace knowledge file: %w", err)
	}
	return nil
}
