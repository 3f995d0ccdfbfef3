package knowledge

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher drops a store's mirror whenever its backing file changes on disk.
// The parent directory is watched because writes replace the file by rename.
type Watcher struct {
	target  Invalidator
	file    string
	fsw     *fsnotify.Watcher
	log     *zap.Logger
	done    chan struct{}
	wg      sync.WaitGroup
	closeMu sync.Once
}

// NewWatcher starts watching path and invalidating target on every change.
func NewWatcher(path string, target Invalidator, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		target: target,
		file:   filepath.Clean(path),
		fsw:    fsw,
		log:    logger.Named("knowledge.watcher"),
		done:   make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.file {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				w.log.Debug("Knowledge file changed; dropping mirror.", zap.String("op", event.Op.String()))
				w.target.Invalidate()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("File watcher error.", zap.Error(err))
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeMu.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}
