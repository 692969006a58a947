package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/rankwatch/api/handler"
	"github.com/use-agent/rankwatch/api/middleware"
	"github.com/use-agent/rankwatch/config"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	// Base is the lifetime of background runs started over HTTP.
	Base context.Context

	Store    handler.Reader
	Runner   handler.Runner
	Strategy string
	Breaker  handler.BreakerState
	Gatherer prometheus.Gatherer
	Started  time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and /metrics sit outside auth so probes and scrapers always work.
func NewRouter(cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	if d.Base == nil {
		d.Base = context.Background()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(d.Store, d.Runner, d.Strategy, d.Breaker, d.Started))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.GET("/clients", handler.Clients(d.Runner))
	client := protected.Group("/clients/:id", handler.RequireClient(d.Runner))
	client.GET("/rankings", handler.Rankings(d.Store))
	client.GET("/stats", handler.Stats(d.Store))
	client.GET("/history", handler.History(d.Store))

	protected.GET("/alerts", handler.Alerts(d.Store))
	protected.POST("/alerts/ack", handler.Acknowledge(d.Store))

	protected.GET("/runs", handler.Runs(d.Store))
	protected.POST("/track", handler.Track(d.Base, d.Runner))

	return r
}
