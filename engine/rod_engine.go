package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/use-agent/rankwatch/models"
)

// RenderRequest is what the browser needs to render one results page.
type RenderRequest struct {
	URL          string
	UserAgent    string
	WaitSelector string
	WaitTimeout  time.Duration
}

// RenderFunc renders a page in a headless browser and returns its HTML.
// It is injected by cmd/rankwatch so engine/ never imports scraper/.
// Implementations own the browser for the duration of one call and must
// release it on every return path.
type RenderFunc func(ctx context.Context, req *RenderRequest) (string, error)

// RodEngine is the rendered-browser strategy.
type RodEngine struct {
	render      RenderFunc
	searchURL   string
	identity    IdentitySource
	waitTimeout time.Duration
}

// NewRodEngine creates a RodEngine around render.
func NewRodEngine(render RenderFunc, searchURL string, identity IdentitySource, waitTimeout time.Duration) *RodEngine {
	if waitTimeout <= 0 {
		waitTimeout = 10 * time.Second
	}
	return &RodEngine{
		render:      render,
		searchURL:   searchURL,
		identity:    identity,
		waitTimeout: waitTimeout,
	}
}

func (e *RodEngine) Name() string { return "browser" }

func (e *RodEngine) Search(ctx context.Context, keyword, domain string, numResults int) (*models.Observation, error) {
	if e.render == nil {
		return nil, models.NewScrapeError(models.KindConfiguration, "browser: render function not configured", nil)
	}

	req := &RenderRequest{
		URL:          SearchURL(e.searchURL, keyword, numResults),
		WaitSelector: "#search",
		WaitTimeout:  e.waitTimeout,
	}
	if e.identity != nil {
		req.UserAgent = e.identity.UserAgent()
	}

	page, err := e.render(ctx, req)
	if err != nil {
		var se *models.ScrapeError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, models.NewScrapeError(models.KindNetwork, fmt.Sprintf("%s: render failed", e.Name()), err)
	}
	return observe(e.Name(), page, keyword, domain), nil
}
