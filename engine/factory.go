package engine

import (
	"fmt"

	"github.com/use-agent/rankwatch/config"
	"github.com/use-agent/rankwatch/models"
)

// Strategy selectors accepted in configuration.
const (
	StrategyHTTP    = "http"
	StrategyBrowser = "browser"
	StrategyAPI     = "api"
)

// Deps are the collaborators New wires into the selected strategy.
type Deps struct {
	// Render backs the browser strategy. Required when it is selected.
	Render RenderFunc

	// Identity supplies user agents; defaults to a rotation over the
	// configured agents, or the built-in list.
	Identity IdentitySource

	// Pacer supplies randomized delays; defaults to a real-time pacer.
	Pacer *Pacer

	// Limiter is shared across strategies; built from config when nil.
	Limiter *HostLimiter
}

// New selects the configured strategy once and wraps it with the per-host
// limiter and circuit breaker. Configuration errors are returned before any
// request is made so the caller can abort the run.
func New(cfg *config.Config, deps Deps) (Strategy, error) {
	if deps.Pacer == nil {
		deps.Pacer = NewPacer(nil, nil)
	}
	if deps.Identity == nil {
		deps.Identity = NewRotation(deps.Pacer, cfg.Scraping.UserAgents...)
	}
	if deps.Limiter == nil {
		deps.Limiter = NewHostLimiter(cfg.Tracker.HostRPS, cfg.Tracker.HostBurst, cfg.Tracker.HostConcurrency)
	}

	sc := cfg.Scraping
	var (
		s    Strategy
		host = Host(sc.SearchURL)
	)
	switch sc.Strategy {
	case StrategyHTTP, "":
		s = NewHTTPEngine(HTTPOptions{
			SearchURL: sc.SearchURL,
			Proxy:     cfg.Browser.Proxy,
			DelayMin:  sc.FetchDelayMin,
			DelayMax:  sc.FetchDelayMax,
			Timeout:   sc.RequestTimeout,
			Identity:  deps.Identity,
			Pacer:     deps.Pacer,
		})
	case StrategyBrowser:
		if deps.Render == nil {
			return nil, models.NewScrapeError(models.KindConfiguration, "browser strategy selected but no renderer available", nil)
		}
		s = NewRodEngine(deps.Render, sc.SearchURL, deps.Identity, cfg.Browser.WaitTimeout)
	case StrategyAPI:
		api, err := NewAPIEngine(APIOptions{
			APIURL:    sc.APIURL,
			APIKey:    sc.APIKey,
			SearchURL: sc.SearchURL,
			Timeout:   sc.APITimeout,
		})
		if err != nil {
			return nil, err
		}
		s = api
		host = Host(sc.APIURL)
	default:
		return nil, models.NewScrapeError(models.KindConfiguration,
			fmt.Sprintf("unknown strategy %q (want http, browser or api)", sc.Strategy), nil)
	}

	s = Limit(s, deps.Limiter, host)
	return Guard(s, cfg.Tracker.BreakerFailures, cfg.Tracker.BreakerCooldown), nil
}
