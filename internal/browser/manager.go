// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/internal/browser/stealth"
	"github.com/xkilldash9x/pathwright/internal/config"
)

const shutdownGracePeriod = 15 * time.Second

// Manager owns the chromedp allocator and every session created from it.
// Each session gets its own browser process so that tearing one down never
// disturbs a concurrent task.
type Manager struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.RWMutex
	wg       sync.WaitGroup // tracks open sessions so Shutdown can wait for them
}

// NewManager prepares an allocator. No browser is started until the first
// session is requested.
func NewManager(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg)...)
	m := &Manager{
		cfg:         cfg,
		logger:      logger.Named("browser_manager"),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		sessions:    make(map[string]*Session),
	}
	m.logger.Debug("Browser manager created (launch deferred).", zap.Bool("headless", cfg.Headless))
	return m
}

// AllocatorOptions translates browser configuration into chromedp options.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	// Copy so appends never touch chromedp's package-level defaults.
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.NoSandbox)

	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	for _, f := range browserFlags(cfg) {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	return opts
}

type browserFlag struct {
	name  string
	value any
}

// browserFlags lists the command line switches derived from cfg. Later
// entries win over earlier ones and over chromedp's defaults.
func browserFlags(cfg config.BrowserConfig) []browserFlag {
	flags := []browserFlag{
		{"disable-dev-shm-usage", true},
		// Overrides the headless flag set by the defaults.
		{"headless", cfg.Headless},
	}
	for _, arg := range cfg.Args {
		key, value, found := strings.Cut(strings.TrimLeft(strings.TrimSpace(arg), "-"), "=")
		if key == "" {
			continue
		}
		if found {
			flags = append(flags, browserFlag{key, value})
		} else {
			flags = append(flags, browserFlag{key, true})
		}
	}
	return flags
}

// NewSession launches a browser and opens a tab in it. The session is
// detached from ctx's cancellation; it lives until Close or Shutdown.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	m.mu.RLock()
	stopped := m.sessions == nil
	m.mu.RUnlock()
	if stopped {
		return nil, fmt.Errorf("browser manager is shut down")
	}

	sugar := m.logger.Sugar()
	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	// The first Run launches the browser process and binds its lifetime to
	// the context it runs on, so it must run on tabCtx itself.
	if err := ctx.Err(); err != nil {
		tabCancel()
		return nil, err
	}
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	if m.cfg.Stealth {
		if err := chromedp.Run(tabCtx, stealth.Apply(stealth.PersonaFromConfig(m.cfg), m.logger)); err != nil {
			tabCancel()
			return nil, fmt.Errorf("failed to apply browser persona: %w", err)
		}
	}

	session := newSession(tabCtx, tabCancel, m.cfg, m.logger)

	m.mu.Lock()
	if m.sessions == nil {
		m.mu.Unlock()
		session.Close(context.Background())
		return nil, fmt.Errorf("browser manager is shut down")
	}
	m.wg.Add(1)
	session.onClose = func() {
		m.mu.Lock()
		if m.sessions != nil {
			delete(m.sessions, session.ID())
		}
		m.mu.Unlock()
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", session.ID()))
	}
	m.sessions[session.ID()] = session
	m.mu.Unlock()

	m.logger.Info("New browser session created.", zap.String("session_id", session.ID()))
	return session, nil
}

// ActiveSessions reports the number of open sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every open session and releases the allocator.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	m.mu.Lock()
	toClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		toClose = append(toClose, s)
	}
	m.mu.Unlock()

	for _, s := range toClose {
		if err := s.Close(ctx); err != nil {
			m.logger.Warn("Error during session close in shutdown.", zap.String("session_id", s.ID()), zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	graceCtx, cancel := context.WithTimeout(ctx, shutdownGracePeriod)
	defer cancel()
	select {
	case <-done:
		m.logger.Debug("All sessions closed gracefully.")
	case <-graceCtx.Done():
		m.logger.Warn("Timeout waiting for sessions to close. Proceeding with forceful shutdown.", zap.Error(graceCtx.Err()))
	}

	m.mu.Lock()
	m.sessions = nil
	m.mu.Unlock()

	m.allocCancel()
	m.logger.Info("Browser manager shutdown complete.")
	return nil
}
