package engine

import (
	"context"
	"sync"

	"github.com/use-agent/rankwatch/models"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

type hostEntry struct {
	limiter *rate.Limiter
	sem     *semaphore.Weighted
}

// HostLimiter caps per-host request rate (token bucket) and the number of
// in-flight requests per host. It is safe for concurrent use.
type HostLimiter struct {
	mu          sync.Mutex
	hosts       map[string]*hostEntry
	rps         rate.Limit
	burst       int
	concurrency int64
}

// NewHostLimiter creates a HostLimiter. rps <= 0 disables the rate cap.
func NewHostLimiter(rps float64, burst, concurrency int) *HostLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &HostLimiter{
		hosts:       make(map[string]*hostEntry),
		rps:         limit,
		burst:       burst,
		concurrency: int64(concurrency),
	}
}

func (l *HostLimiter) entry(host string) *hostEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.hosts[host]
	if !ok {
		e = &hostEntry{
			limiter: rate.NewLimiter(l.rps, l.burst),
			sem:     semaphore.NewWeighted(l.concurrency),
		}
		l.hosts[host] = e
	}
	return e
}

// Acquire blocks until host has a free slot and a token. The returned
// release must be called once the request is done.
func (l *HostLimiter) Acquire(ctx context.Context, host string) (func(), error) {
	e := l.entry(host)
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := e.limiter.Wait(ctx); err != nil {
		e.sem.Release(1)
		return nil, err
	}
	return func() { e.sem.Release(1) }, nil
}

// Limited wraps a Strategy with a HostLimiter keyed on one target host.
type Limited struct {
	next    Strategy
	limiter *HostLimiter
	host    string
}

// Limit returns next guarded by limiter for host.
func Limit(next Strategy, limiter *HostLimiter, host string) *Limited {
	return &Limited{next: next, limiter: limiter, host: host}
}

func (l *Limited) Name() string { return l.next.Name() }

func (l *Limited) Search(ctx context.Context, keyword, domain string, numResults int) (*models.Observation, error) {
	release, err := l.limiter.Acquire(ctx, l.host)
	if err != nil {
		return nil, models.NewScrapeError(models.KindNetwork, "rate limit wait interrupted", err)
	}
	defer release()
	return l.next.Search(ctx, keyword, domain, numResults)
}
