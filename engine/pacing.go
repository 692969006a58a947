package engine

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Pacer owns the randomness and clock used for request pacing, so tests can
// run with deterministic or zero delays. It is safe for concurrent use.
type Pacer struct {
	mu    sync.Mutex
	rng   *rand.Rand
	sleep SleepFunc
}

// NewPacer creates a Pacer. A nil src seeds from the current time and a nil
// sleep waits on a timer.
func NewPacer(src rand.Source, sleep SleepFunc) *Pacer {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>1)
	}
	if sleep == nil {
		sleep = timerSleep
	}
	return &Pacer{rng: rand.New(src), sleep: sleep}
}

// NoDelay returns a Pacer that never waits. Cancellation is still honoured.
func NoDelay() *Pacer {
	return NewPacer(rand.NewPCG(1, 2), func(ctx context.Context, _ time.Duration) error {
		return ctx.Err()
	})
}

// Uniform returns a duration drawn uniformly from [min, max].
func (p *Pacer) Uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return min + time.Duration(p.rng.Int64N(int64(max-min)+1))
}

// Jitter returns base plus a uniform extra in [0, max].
func (p *Pacer) Jitter(base, max time.Duration) time.Duration {
	return base + p.Uniform(0, max)
}

// Intn returns a random int in [0, n).
func (p *Pacer) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.IntN(n)
}

// Sleep waits for d unless ctx ends first.
func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

// Pause sleeps for a uniform duration in [min, max].
func (p *Pacer) Pause(ctx context.Context, min, max time.Duration) error {
	return p.Sleep(ctx, p.Uniform(min, max))
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
