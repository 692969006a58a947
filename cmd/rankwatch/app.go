package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/use-agent/rankwatch/config"
	"github.com/use-agent/rankwatch/engine"
	"github.com/use-agent/rankwatch/metrics"
	"github.com/use-agent/rankwatch/notify"
	"github.com/use-agent/rankwatch/scraper"
	"github.com/use-agent/rankwatch/store"
	"github.com/use-agent/rankwatch/tracker"
)

type rootOptions struct {
	clientsPath string
	dbPath      string
}

// app holds what every command needs: configuration, clients and the store.
type app struct {
	cfg     *config.Config
	clients *config.File
	store   *store.Store
}

func loadApp(opts *rootOptions) (*app, error) {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	if opts.dbPath != "" {
		cfg.Database.Path = opts.dbPath
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)

	// ── 3. Load clients ─────────────────────────────────────────────
	clients, err := config.LoadClients(opts.clientsPath)
	if err != nil {
		return nil, fmt.Errorf("load clients from %s: %w", opts.clientsPath, err)
	}
	clients.Apply(cfg)

	// ── 4. Open store ───────────────────────────────────────────────
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, clients: clients, store: st}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("closing store", "error", err)
	}
}

// newTracker builds the configured strategy and a tracker over it. A
// configuration error is returned before any request is made.
func (a *app) newTracker(reg prometheus.Registerer) (*tracker.Tracker, engine.Strategy, error) {
	pacer := engine.NewPacer(nil, nil)

	// The renderer stays idle unless the browser strategy is selected.
	renderer := scraper.NewRenderer(a.cfg.Browser, a.cfg.Scraping, pacer)

	strategy, err := engine.New(a.cfg, engine.Deps{
		Render: renderer.Render,
		Pacer:  pacer,
	})
	if err != nil {
		return nil, nil, err
	}

	options := []tracker.Option{tracker.WithPacer(pacer)}
	if reg != nil {
		options = append(options, tracker.WithMetrics(metrics.New(reg)))
	}
	if a.cfg.Notify.WebhookURL != "" {
		options = append(options, tracker.WithNotifier(notify.NewWebhook(a.cfg.Notify.WebhookURL, a.cfg.Notify.WebhookSecret)))
	}

	slog.Info("strategy selected",
		"strategy", strategy.Name(),
		"workers", a.cfg.Tracker.Workers,
		"clients", len(a.clients.Clients),
	)
	t := tracker.New(a.clients.Clients, strategy, a.store, tracker.OptionsFrom(a.cfg), options...)
	return t, strategy, nil
}

// initLogger configures slog based on the LogConfig. Logs go to stderr so
// command output on stdout stays clean.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}
