// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/config"
	"github.com/xkilldash9x/pathwright/internal/resolver"
)

const screenshotQuality = 90

// centerElementJS is called with the target node bound to this.
const centerElementJS = `function() { this.scrollIntoView({block: "center", inline: "center"}); }`

// Session is one browser tab driven over CDP. It implements schemas.Page.
type Session struct {
	id     string
	ctx    context.Context // chromedp tab context
	cancel context.CancelFunc
	cfg    config.BrowserConfig
	logger *zap.Logger

	closed    atomic.Bool
	closeOnce sync.Once
	onClose   func()
}

var _ schemas.Page = (*Session)(nil)

func newSession(tabCtx context.Context, cancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:     id,
		ctx:    tabCtx,
		cancel: cancel,
		cfg:    cfg,
		logger: logger.Named("session").With(zap.String("session_id", id)),
	}
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// run executes actions on the tab, honoring both the tab lifetime and ctx.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.closed.Load() {
		return schemas.ErrSessionClosed
	}
	opCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

func (s *Session) settle() chromedp.Action {
	return chromedp.Sleep(s.cfg.PostActionWait)
}

// Navigate loads url and waits for the page to settle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.NavigationTimeout)
		defer cancel()
	}
	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := s.run(ctx, chromedp.Navigate(url), s.settle()); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// CurrentURL returns the location of the loaded document.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var location string
	if err := s.run(ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

// Locate waits up to wait for strategy to match a visible element. Strategies
// that look like XPath are evaluated with a DOM search; everything else is a
// CSS selector. A timeout or a selector the page rejects means absent.
func (s *Session) Locate(ctx context.Context, strategy string, wait time.Duration) (*schemas.ElementHandle, error) {
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	err := s.run(waitCtx, chromedp.WaitVisible(strategy, queryOption(strategy)))
	if err != nil {
		// The wait expired while the caller is still interested: not found yet.
		if waitCtx.Err() != nil && ctx.Err() == nil {
			return nil, nil
		}
		var cdpErr *cdproto.Error
		if errors.As(err, &cdpErr) {
			s.logger.Debug("Strategy rejected by the page.", zap.String("strategy", strategy), zap.Error(err))
			return nil, nil
		}
		return nil, err
	}

	location, err := s.CurrentURL(ctx)
	if err != nil {
		return nil, err
	}
	return &schemas.ElementHandle{Strategy: strategy, Origin: resolver.Hostname(location)}, nil
}

// ScrollIntoView centers the element in the viewport.
func (s *Session) ScrollIntoView(ctx context.Context, el *schemas.ElementHandle) error {
	center := chromedp.QueryAfter(el.Strategy, func(ctx context.Context, _ runtime.ExecutionContextID, nodes ...*cdp.Node) error {
		if len(nodes) == 0 {
			return fmt.Errorf("no node matches %q", el.Strategy)
		}
		obj, err := dom.ResolveNode().WithBackendNodeID(nodes[0].BackendNodeID).Do(ctx)
		if err != nil {
			return err
		}
		_, exc, err := runtime.CallFunctionOn(centerElementJS).WithObjectID(obj.ObjectID).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		return nil
	}, queryOption(el.Strategy), chromedp.AtLeast(1))

	return s.run(ctx, center)
}

// Click clicks the element and lets the page settle.
func (s *Session) Click(ctx context.Context, el *schemas.ElementHandle) error {
	return s.run(ctx,
		chromedp.Click(el.Strategy, queryOption(el.Strategy), chromedp.NodeVisible),
		s.settle(),
	)
}

// Type replaces the element's value with text.
func (s *Session) Type(ctx context.Context, el *schemas.ElementHandle, text string) error {
	return s.run(ctx,
		chromedp.Clear(el.Strategy, queryOption(el.Strategy)),
		chromedp.SendKeys(el.Strategy, text, queryOption(el.Strategy)),
	)
}

// PressEnter sends Enter to the element and lets the page settle.
func (s *Session) PressEnter(ctx context.Context, el *schemas.ElementHandle) error {
	return s.run(ctx,
		chromedp.SendKeys(el.Strategy, kb.Enter, queryOption(el.Strategy)),
		s.settle(),
	)
}

// Content returns the outer HTML of the document.
func (s *Session) Content(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, screenshotQuality)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Alive reports whether the tab answers a title probe in time.
func (s *Session) Alive(ctx context.Context) bool {
	if s.closed.Load() {
		return false
	}
	timeout := s.cfg.LivenessTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var title string
	if err := s.run(probeCtx, chromedp.Title(&title)); err != nil {
		s.logger.Warn("Browser liveness probe failed.", zap.Error(err))
		return false
	}
	return true
}

// Close shuts the tab and its browser down. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		// Cancel asks the browser to close gracefully before the context is
		// torn down.
		if cerr := chromedp.Cancel(s.ctx); cerr != nil && !errors.Is(cerr, context.Canceled) {
			err = cerr
		}
		s.cancel()
		if s.onClose != nil {
			s.onClose()
		}
		s.logger.Debug("Session closed.")
	})
	return err
}

// queryOption picks the chromedp query strategy for a locator.
func queryOption(strategy string) chromedp.QueryOption {
	if isXPath(strategy) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func isXPath(strategy string) bool {
	s := strings.TrimSpace(strategy)
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "(/") || strings.HasPrefix(s, "./")
}
