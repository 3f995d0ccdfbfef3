// Package learning runs bulk discovery: snapshot a page, ask the discovery
// oracle for every actionable intent on it, and merge the result into the
// knowledge store through the gateway.
package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/browser"
	"github.com/xkilldash9x/pathwright/internal/knowledge"
	"github.com/xkilldash9x/pathwright/internal/tools"
)

const teardownTimeout = 10 * time.Second

// ErrPageTooSmall is returned when the captured page has too little content
// to be worth analysing.
var ErrPageTooSmall = errors.New("captured page too small to analyse")

// urlReporter is implemented by actuators that can report the page URL. It is
// only used to name snapshots.
type urlReporter interface {
	CurrentURL(ctx context.Context) (string, error)
}

// Config tunes a Learner.
type Config struct {
	// CaptureDir receives a copy of every analysed page. Empty disables snapshots.
	CaptureDir string
	// MinContent is the shortest page worth sending to discovery.
	MinContent int
}

// Learner implements schemas.Learner.
type Learner struct {
	discoverer schemas.Discoverer
	gateway    *knowledge.Gateway
	cfg        Config
	observer   schemas.Observer
	logger     *zap.Logger
	now        func() time.Time
}

var _ schemas.Learner = (*Learner)(nil)

// New creates a learner. observer may be nil.
func New(discoverer schemas.Discoverer, gateway *knowledge.Gateway, cfg Config, observer schemas.Observer, logger *zap.Logger) *Learner {
	if observer == nil {
		observer = schemas.ObserverFunc(func(string) {})
	}
	return &Learner{
		discoverer: discoverer,
		gateway:    gateway,
		cfg:        cfg,
		observer:   observer,
		logger:     logger.Named("learner"),
		now:        time.Now,
	}
}

// LearnFromPage analyses whatever act currently shows and returns how many
// strategies were newly committed.
func (l *Learner) LearnFromPage(ctx context.Context, act schemas.Actuator) (int, error) {
	content, err := act.CapturePage(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to capture page: %w", err)
	}
	if len(content) < l.cfg.MinContent {
		return 0, fmt.Errorf("%w (%d bytes)", ErrPageTooSmall, len(content))
	}

	l.snapshot(ctx, act, content)

	l.observer.Emit("Analysing the full page for stable element strategies...")
	findings, err := l.discoverer.Discover(ctx, content)
	if err != nil {
		return 0, err
	}
	l.observer.Emit(fmt.Sprintf("Discovery proposed %d intents (%d strategies).", len(findings), findings.Count()))
	if len(findings) == 0 {
		return 0, nil
	}

	added, err := l.gateway.MergeBatch(ctx, findings)
	if err != nil {
		l.logger.Warn("Some discoveries could not be committed.", zap.Error(err))
	}
	if added > 0 {
		l.observer.Emit(fmt.Sprintf("Knowledge base grew by %d strategies.", added))
	} else {
		l.observer.Emit("Discovery found nothing new.")
	}
	return added, err
}

// LearnFromURL opens a fresh session from factory, navigates to url, learns
// from the page and tears the session down again.
func (l *Learner) LearnFromURL(ctx context.Context, factory schemas.ActuatorFactory, url string) (added int, err error) {
	act, err := factory.NewActuator(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to start session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(browser.Detach(ctx), teardownTimeout)
		defer cancel()
		if closeErr := act.Close(closeCtx); closeErr != nil {
			l.logger.Warn("Failed to close learning session.", zap.Error(closeErr))
		}
	}()

	l.observer.Emit(fmt.Sprintf("Opening %s for learning...", url))
	result, err := act.Invoke(ctx, schemas.ToolCall{Name: tools.NavigateToURL, Args: map[string]any{"url": url}})
	if err != nil {
		return 0, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if result.Status != schemas.StatusSuccess {
		return 0, fmt.Errorf("failed to navigate to %s: %s", url, result.Message)
	}
	return l.LearnFromPage(ctx, act)
}

// snapshot keeps a copy of the analysed page. Failures are logged only.
func (l *Learner) snapshot(ctx context.Context, act schemas.Actuator, content string) {
	if l.cfg.CaptureDir == "" {
		return
	}
	var pageURL string
	if r, ok := act.(urlReporter); ok {
		pageURL, _ = r.CurrentURL(ctx)
	}
	path, err := browser.WriteCapture(l.cfg.CaptureDir, browser.SnapshotName(pageURL, l.now()), []byte(content))
	if err != nil {
		l.logger.Warn("Failed to save page snapshot.", zap.Error(err))
		return
	}
	l.logger.Info("Page snapshot saved.", zap.String("path", path))
}
