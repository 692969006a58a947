package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/use-agent/rankwatch/config"
	"github.com/use-agent/rankwatch/engine"
	"github.com/use-agent/rankwatch/models"
)

// session is one browser instance holding one results page.
type session interface {
	// Open navigates to req.URL and waits for req.WaitSelector.
	Open(ctx context.Context, req *engine.RenderRequest) error

	// HTML returns the current document.
	HTML() (string, error)

	// Close releases the page, the browser and its process.
	Close() error
}

// launchFunc starts a fresh browser session.
type launchFunc func(ctx context.Context) (session, error)

// Renderer launches a stealth browser per render and always tears it down,
// whatever the outcome. It is safe for concurrent use; each call owns its
// own browser.
type Renderer struct {
	launch   launchFunc
	pacer    *engine.Pacer
	delayMin time.Duration
	delayMax time.Duration
	active   atomic.Int32
}

// NewRenderer creates a Renderer that launches Chromium through rod.
func NewRenderer(browserCfg config.BrowserConfig, scrapingCfg config.ScrapingConfig, pacer *engine.Pacer) *Renderer {
	return newRenderer(rodLauncher(browserCfg), scrapingCfg, pacer)
}

func newRenderer(launch launchFunc, scrapingCfg config.ScrapingConfig, pacer *engine.Pacer) *Renderer {
	if pacer == nil {
		pacer = engine.NewPacer(nil, nil)
	}
	return &Renderer{
		launch:   launch,
		pacer:    pacer,
		delayMin: scrapingCfg.RenderDelayMin,
		delayMax: scrapingCfg.RenderDelayMax,
	}
}

// Active returns the number of browsers currently running.
func (r *Renderer) Active() int {
	return int(r.active.Load())
}

// Render implements engine.RenderFunc.
//
// Lifecycle:
//
//  1. Launch        – fresh browser with stealth page
//  2. DEFER: close  – page, browser and process, on every return path
//  3. Open          – navigate and wait for the results container
//  4. Human delay   – randomized pause before reading the DOM
//  5. Extract       – document HTML
func (r *Renderer) Render(ctx context.Context, req *engine.RenderRequest) (string, error) {
	// ── 1. Launch ─────────────────────────────────────────────────────
	s, err := r.launch(ctx)
	if err != nil {
		return "", categorizeError(err, "failed to launch browser")
	}
	r.active.Add(1)

	// ── 2. Guaranteed release ─────────────────────────────────────────
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			slog.Warn("browser cleanup failed", "error", closeErr)
		}
		r.active.Add(-1)
	}()

	// ── 3. Navigate + wait ────────────────────────────────────────────
	if err := s.Open(ctx, req); err != nil {
		return "", categorizeError(err, "results page did not load")
	}

	// ── 4. Human delay ────────────────────────────────────────────────
	if err := r.pacer.Pause(ctx, r.delayMin, r.delayMax); err != nil {
		return "", categorizeError(err, "render delay interrupted")
	}

	// ── 5. Extract ────────────────────────────────────────────────────
	page, err := s.HTML()
	if err != nil {
		return "", categorizeError(err, "failed to extract page HTML")
	}
	return page, nil
}

// categorizeError wraps browser failures as network errors. Every one of
// them is transient from the tracker's point of view.
func categorizeError(err error, msg string) *models.ScrapeError {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, context.Canceled) {
		return models.NewScrapeError(models.KindNetwork, "render canceled", err)
	}
	return models.NewScrapeError(models.KindNetwork, msg, err)
}
