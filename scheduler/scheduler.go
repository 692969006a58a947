// Package scheduler fires tracking runs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work. ctx is canceled when the scheduler stops.
type Job func(ctx context.Context)

// Scheduler runs a single Job on a standard five-field cron spec. A firing
// that arrives while the previous one is still running is skipped.
type Scheduler struct {
	cron   *cron.Cron
	entry  cron.EntryID
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec and registers job. The scheduler does not fire until Start.
func New(spec string, job Job) (*Scheduler, error) {
	logger := slogLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{cron: c, ctx: ctx, cancel: cancel}

	id, err := c.AddFunc(spec, func() { job(s.ctx) })
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Next returns the next fire time, or the zero time before Start.
func (s *Scheduler) Next() time.Time { return s.cron.Entry(s.entry).Next }

// Stop prevents further firings, cancels a running job and waits for it to
// return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// slogLogger adapts cron's logr-style logger to slog.
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
