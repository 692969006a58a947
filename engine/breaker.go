package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/use-agent/rankwatch/models"
)

// Guarded wraps a Strategy with a circuit breaker. Consecutive network
// failures open the breaker; while open, searches fail fast with a network
// error instead of hammering a host that is already blocking us.
type Guarded struct {
	next Strategy
	cb   *gobreaker.CircuitBreaker
}

// Guard returns next behind a breaker that opens after failures consecutive
// network errors and half-opens after cooldown.
func Guard(next Strategy, failures uint32, cooldown time.Duration) *Guarded {
	if failures == 0 {
		failures = 5
	}
	st := gobreaker.Settings{
		Name:    next.Name(),
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only transport-level failures say anything about the host.
		IsSuccessful: func(err error) bool {
			return err == nil || !models.IsKind(err, models.KindNetwork) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("scrape circuit breaker state change",
				"strategy", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &Guarded{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

func (g *Guarded) Name() string { return g.next.Name() }

// State reports the breaker state, for health output.
func (g *Guarded) State() string { return g.cb.State().String() }

func (g *Guarded) Search(ctx context.Context, keyword, domain string, numResults int) (*models.Observation, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Search(ctx, keyword, domain, numResults)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, models.NewScrapeError(models.KindNetwork, "circuit open, search skipped", err)
		}
		return nil, err
	}
	return res.(*models.Observation), nil
}
