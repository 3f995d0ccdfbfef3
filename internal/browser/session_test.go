// internal/browser/session_test.go
package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
	"github.com/xkilldash9x/pathwright/internal/config"
)

func TestSession_ClosedRejectsActions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSession(ctx, cancel, config.BrowserConfig{}, zap.NewNop())
	require.NotEmpty(t, s.ID())

	closes := 0
	s.onClose = func() { closes++ }
	_ = s.Close(context.Background())
	_ = s.Close(context.Background())
	assert.Equal(t, 1, closes, "close hooks run once")
	assert.Error(t, ctx.Err(), "the tab context is canceled")

	bg := context.Background()
	el := &schemas.ElementHandle{Strategy: "#q"}

	assert.ErrorIs(t, s.Navigate(bg, "https://example.com"), schemas.ErrSessionClosed)
	_, err := s.CurrentURL(bg)
	assert.ErrorIs(t, err, schemas.ErrSessionClosed)
	_, err = s.Locate(bg, "#q", time.Second)
	assert.ErrorIs(t, err, schemas.ErrSessionClosed)
	assert.ErrorIs(t, s.ScrollIntoView(bg, el), schemas.ErrSessionClosed)
	assert.ErrorIs(t, s.Click(bg, el), schemas.ErrSessionClosed)
	assert.ErrorIs(t, s.Type(bg, el, "x"), schemas.ErrSessionClosed)
	assert.ErrorIs(t, s.PressEnter(bg, el), schemas.ErrSessionClosed)
	_, err = s.Content(bg)
	assert.ErrorIs(t, err, schemas.ErrSessionClosed)
	_, err = s.Screenshot(bg)
	assert.ErrorIs(t, err, schemas.ErrSessionClosed)
	assert.False(t, s.Alive(bg))
}
