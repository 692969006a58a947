package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/use-agent/rankwatch/api"
	"github.com/use-agent/rankwatch/api/handler"
	"github.com/use-agent/rankwatch/scheduler"
	"github.com/use-agent/rankwatch/tracker"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the reporting API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), root, false, "")
		},
	}
}

func newDaemonCmd(root *rootOptions) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Track on a cron schedule and serve the reporting API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), root, true, schedule)
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "five-field cron spec (overrides RANKWATCH_SCHEDULE)")
	return cmd
}

// serve runs the API server until SIGINT or SIGTERM. With scheduled set it
// also starts periodic full runs on schedule, or the configured spec.
func serve(parent context.Context, root *rootOptions, scheduled bool, schedule string) error {
	a, err := loadApp(root)
	if err != nil {
		return err
	}
	defer a.Close()
	if scheduled && schedule == "" {
		schedule = a.cfg.Schedule.Cron
	}

	base, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 1. Metrics & tracker ────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	t, strategy, err := a.newTracker(reg)
	if err != nil {
		return fmt.Errorf("cannot start tracking: %w", err)
	}
	breaker, _ := strategy.(handler.BreakerState)

	// ── 2. Schedule ─────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if scheduled {
		sched, err = scheduler.New(schedule, func(ctx context.Context) {
			if _, err := t.TrackAll(ctx, false); err != nil {
				if errors.Is(err, tracker.ErrRunInProgress) {
					slog.Warn("scheduled run skipped, another run is in progress")
					return
				}
				slog.Error("scheduled run failed", "error", err)
			}
		})
		if err != nil {
			return err
		}
		sched.Start()
		slog.Info("schedule started", "cron", schedule, "next", sched.Next())
	}

	// ── 3. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(a.cfg, api.Deps{
		Base:     base,
		Store:    a.store,
		Runner:   t,
		Strategy: strategy.Name(),
		Breaker:  breaker,
		Gatherer: reg,
		Started:  time.Now(),
	})

	// ── 4. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ── 5. Graceful shutdown ────────────────────────────────────────
	select {
	case <-base.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}
	}
	stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	if sched != nil {
		if err := sched.Stop(ctx); err != nil {
			slog.Warn("scheduled run did not stop in time", "error", err)
		}
	}

	// Runs started over HTTP see base canceled and write their partial log.
	waitIdle(ctx, t)
	slog.Info("rankwatch stopped")
	return nil
}

func waitIdle(ctx context.Context, t *tracker.Tracker) {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for t.Running() {
		select {
		case <-ctx.Done():
			slog.Warn("tracking run still active at exit")
			return
		case <-tick.C:
		}
	}
}
