package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/rankwatch/config"
	"github.com/use-agent/rankwatch/engine"
	"github.com/use-agent/rankwatch/models"
)

type fakeSession struct {
	openErr error
	htmlErr error
	html    string
	opened  *engine.RenderRequest
	closed  int
}

func (f *fakeSession) Open(_ context.Context, req *engine.RenderRequest) error {
	f.opened = req
	return f.openErr
}

func (f *fakeSession) HTML() (string, error) { return f.html, f.htmlErr }

func (f *fakeSession) Close() error {
	f.closed++
	return nil
}

func rendererFor(s *fakeSession, launchErr error) *Renderer {
	launch := func(context.Context) (session, error) {
		if launchErr != nil {
			return nil, launchErr
		}
		return s, nil
	}
	return newRenderer(launch, config.ScrapingConfig{RenderDelayMin: time.Second, RenderDelayMax: 3 * time.Second}, engine.NoDelay())
}

func TestRender_ReturnsHTMLAndReleases(t *testing.T) {
	s := &fakeSession{html: "<html>ok</html>"}
	r := rendererFor(s, nil)
	req := &engine.RenderRequest{URL: "https://www.google.com/search?q=x", WaitSelector: "#search"}

	page, err := r.Render(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", page)
	assert.Same(t, req, s.opened)
	assert.Equal(t, 1, s.closed)
	assert.Equal(t, 0, r.Active())
}

func TestRender_ReleasesOnEveryFailure(t *testing.T) {
	cases := map[string]*fakeSession{
		"open":    {openErr: errors.New("wait for #search: timeout")},
		"extract": {htmlErr: errors.New("target closed")},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			r := rendererFor(s, nil)
			_, err := r.Render(context.Background(), &engine.RenderRequest{URL: "u"})
			require.Error(t, err)
			assert.True(t, models.IsKind(err, models.KindNetwork))
			assert.Equal(t, 1, s.closed)
			assert.Equal(t, 0, r.Active())
		})
	}
}

func TestRender_CanceledDuringDelay(t *testing.T) {
	s := &fakeSession{html: "x"}
	r := rendererFor(s, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Render(ctx, &engine.RenderRequest{URL: "u"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, s.closed)
}

func TestRender_LaunchFailure(t *testing.T) {
	r := rendererFor(nil, errors.New("chromium not found"))
	_, err := r.Render(context.Background(), &engine.RenderRequest{URL: "u"})
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNetwork))
	assert.Equal(t, 0, r.Active())
}

func TestIsTrackerHost(t *testing.T) {
	assert.True(t, isTrackerHost("doubleclick.net"))
	assert.True(t, isTrackerHost("stats.g.doubleclick.net"))
	assert.True(t, isTrackerHost("PAGEAD2.googlesyndication.com"))
	assert.False(t, isTrackerHost("www.google.com"))
	assert.False(t, isTrackerHost("example.com"))
}

func TestBlockedSet(t *testing.T) {
	set := blockedSet([]string{"Image", "Font", "Bogus"})
	assert.Len(t, set, 2)
	assert.Contains(t, set, proto.NetworkResourceTypeImage)
	assert.Contains(t, set, proto.NetworkResourceTypeFont)
}
