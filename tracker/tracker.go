// Package tracker drives keyword checks across the configured clients and
// records the outcome of every run.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/use-agent/rankwatch/config"
	"github.com/use-agent/rankwatch/engine"
	"github.com/use-agent/rankwatch/metrics"
	"github.com/use-agent/rankwatch/models"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrClientNotFound is returned by TrackClient for an unknown client id.
	ErrClientNotFound = errors.New("client not found")

	// ErrKeywordNotConfigured is returned by TrackKeyword when no client
	// tracks the keyword.
	ErrKeywordNotConfigured = errors.New("keyword not found in any configuration")

	// ErrRunInProgress is returned when a run is requested while another
	// one is still executing.
	ErrRunInProgress = errors.New("a tracking run is already in progress")
)

// Store is the persistence the tracker needs.
type Store interface {
	Record(ctx context.Context, rec *models.RankingRecord) (*models.AlertRecord, error)
	AppendRun(ctx context.Context, run *models.TrackingRun) error
	OutstandingAlerts(ctx context.Context) ([]models.AlertRecord, error)
}

// Notifier receives the alerts emitted during a run.
type Notifier interface {
	Notify(ctx context.Context, runID string, alerts []models.AlertRecord) error
}

// Options are the run parameters.
type Options struct {
	ResultsPerPage int
	Delay          time.Duration
	JitterMax      time.Duration
	Workers        int
}

// OptionsFrom extracts run parameters from cfg.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		ResultsPerPage: cfg.Scraping.ResultsPerPage,
		Delay:          cfg.Scraping.DelayBetweenRequests,
		JitterMax:      cfg.Scraping.JitterMax,
		Workers:        cfg.Tracker.Workers,
	}
}

// Summary is what a run reports back to its caller.
type Summary struct {
	Run models.TrackingRun `json:"run"`

	// Emitted are the alerts created by this run.
	Emitted []models.AlertRecord `json:"emitted"`

	// Outstanding are all unacknowledged alerts after the run.
	Outstanding []models.AlertRecord `json:"outstanding"`

	// Canceled is set when the run stopped before every check ran.
	Canceled bool `json:"canceled"`
}

// Tracker orchestrates runs. At most one run executes at a time.
type Tracker struct {
	clients  []config.Client
	strategy engine.Strategy
	store    Store
	opts     Options
	pacer    *engine.Pacer
	metrics  *metrics.Metrics
	notifier Notifier
	now      func() time.Time
	running  atomic.Bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithPacer overrides the pacer used between checks.
func WithPacer(p *engine.Pacer) Option { return func(t *Tracker) { t.pacer = p } }

// WithMetrics records run metrics into m.
func WithMetrics(m *metrics.Metrics) Option { return func(t *Tracker) { t.metrics = m } }

// WithNotifier forwards emitted alerts to n after each run.
func WithNotifier(n Notifier) Option { return func(t *Tracker) { t.notifier = n } }

// WithClock overrides the clock used for check dates and durations.
func WithClock(now func() time.Time) Option { return func(t *Tracker) { t.now = now } }

// New creates a Tracker over clients in their configured order.
func New(clients []config.Client, strategy engine.Strategy, store Store, opts Options, options ...Option) *Tracker {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ResultsPerPage < 1 {
		opts.ResultsPerPage = 100
	}
	t := &Tracker{
		clients:  clients,
		strategy: strategy,
		store:    store,
		opts:     opts,
		now:      time.Now,
	}
	for _, o := range options {
		o(t)
	}
	if t.pacer == nil {
		t.pacer = engine.NewPacer(nil, nil)
	}
	return t
}

// Clients returns the configured clients.
func (t *Tracker) Clients() []config.Client { return t.clients }

// Running reports whether a run is executing.
func (t *Tracker) Running() bool { return t.running.Load() }

type check struct {
	client  config.Client
	keyword string
}

// TrackAll checks every keyword of every client. In test mode only the
// first keyword of each client is checked and no pacing is applied.
func (t *Tracker) TrackAll(ctx context.Context, testMode bool) (*Summary, error) {
	return t.track(ctx, models.TrackRequest{TestMode: testMode})
}

// TrackClient checks every keyword of one client.
func (t *Tracker) TrackClient(ctx context.Context, clientID string) (*Summary, error) {
	return t.track(ctx, models.TrackRequest{ClientID: clientID})
}

// TrackKeyword checks one keyword for every client that tracks it.
func (t *Tracker) TrackKeyword(ctx context.Context, keyword string) (*Summary, error) {
	return t.track(ctx, models.TrackRequest{Keyword: keyword})
}

// Outcome is the result of a run started with Start.
type Outcome struct {
	Summary *Summary
	Err     error
}

// Start claims the run slot and executes req in the background under ctx.
// It returns ErrRunInProgress, ErrClientNotFound or ErrKeywordNotConfigured
// without starting anything. Once Start returns nil the run is committed:
// any later caller sees ErrRunInProgress until it finishes. The channel
// receives the outcome after the slot is released, and may be ignored.
func (t *Tracker) Start(ctx context.Context, req models.TrackRequest) (<-chan Outcome, error) {
	checks, pace, err := t.plan(req)
	if err != nil {
		return nil, err
	}
	if !t.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}

	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		summary, err := t.execute(ctx, checks, pace)
		t.running.Store(false)
		if err != nil {
			slog.Error("background tracking run failed", "scope", req.Scope(), "error", err)
		}
		out <- Outcome{Summary: summary, Err: err}
	}()
	return out, nil
}

func (t *Tracker) track(ctx context.Context, req models.TrackRequest) (*Summary, error) {
	checks, pace, err := t.plan(req)
	if err != nil {
		return nil, err
	}
	if !t.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer t.running.Store(false)
	return t.execute(ctx, checks, pace)
}

// plan expands req into the ordered checks of one run and reports whether
// the run is paced.
func (t *Tracker) plan(req models.TrackRequest) ([]check, bool, error) {
	var checks []check
	switch {
	case req.ClientID != "":
		for _, c := range t.clients {
			if c.ID != req.ClientID {
				continue
			}
			for _, kw := range c.Keywords {
				checks = append(checks, check{client: c, keyword: kw})
			}
			return checks, true, nil
		}
		return nil, false, fmt.Errorf("%w: %s", ErrClientNotFound, req.ClientID)

	case req.Keyword != "":
		for _, c := range t.clients {
			for _, kw := range c.Keywords {
				if kw == req.Keyword {
					checks = append(checks, check{client: c, keyword: kw})
					break
				}
			}
		}
		if len(checks) == 0 {
			return nil, false, fmt.Errorf("%w: %q", ErrKeywordNotConfigured, req.Keyword)
		}
		return checks, true, nil
	}

	for _, c := range t.clients {
		keywords := c.Keywords
		if req.TestMode && len(keywords) > 1 {
			keywords = keywords[:1]
		}
		for _, kw := range keywords {
			checks = append(checks, check{client: c, keyword: kw})
		}
	}
	return checks, !req.TestMode, nil
}

// tally aggregates per-check outcomes across workers.
type tally struct {
	mu         sync.Mutex
	successful int
	failed     int
	errs       []string
	emitted    []models.AlertRecord
}

func (a *tally) fail(keyword string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed++
	a.errs = append(a.errs, fmt.Sprintf("%s: %v", keyword, err))
}

func (a *tally) succeed(alert *models.AlertRecord) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.successful++
	if alert != nil {
		a.emitted = append(a.emitted, *alert)
	}
}

// execute runs checks and appends the run log. The log is written even if
// ctx is canceled part-way, so a partial run still leaves an audit row.
// The caller holds the run slot.
func (t *Tracker) execute(ctx context.Context, checks []check, pace bool) (*Summary, error) {
	start := t.now()
	t.metrics.RunStarted()
	slog.Info("tracking run started",
		"checks", len(checks),
		"strategy", t.strategy.Name(),
		"workers", t.opts.Workers,
	)

	var (
		agg     tally
		skipped atomic.Bool
		g       errgroup.Group
	)
	g.SetLimit(t.opts.Workers)
	for i, c := range checks {
		if ctx.Err() != nil {
			skipped.Store(true)
			break
		}
		g.Go(func() error {
			if i > 0 && pace {
				if err := t.pacer.Sleep(ctx, t.pacer.Jitter(t.opts.Delay, t.opts.JitterMax)); err != nil {
					skipped.Store(true)
					return nil
				}
			}
			if ctx.Err() != nil {
				skipped.Store(true)
				return nil
			}
			if !t.check(ctx, c, &agg) {
				skipped.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary := &Summary{
		Run: models.TrackingRun{
			ID:               ulid.MustNew(ulid.Timestamp(start), ulid.DefaultEntropy()).String(),
			RunDate:          start,
			TotalKeywords:    len(checks),
			SuccessfulChecks: agg.successful,
			FailedChecks:     agg.failed,
			DurationSeconds:  t.now().Sub(start).Seconds(),
			Errors:           agg.errs,
		},
		Emitted:  agg.emitted,
		Canceled: skipped.Load(),
	}
	t.metrics.RunFinished(summary.Run.DurationSeconds, agg.successful, len(checks))

	persist := context.WithoutCancel(ctx)
	if err := t.store.AppendRun(persist, &summary.Run); err != nil {
		return summary, fmt.Errorf("append run log: %w", err)
	}

	outstanding, err := t.store.OutstandingAlerts(persist)
	if err != nil {
		slog.Warn("could not load outstanding alerts", "error", err)
	}
	summary.Outstanding = outstanding

	if t.notifier != nil && len(summary.Emitted) > 0 {
		if err := t.notifier.Notify(persist, summary.Run.ID, summary.Emitted); err != nil {
			slog.Warn("alert notification failed", "run_id", summary.Run.ID, "error", err)
		}
	}

	slog.Info("tracking run finished",
		"run_id", summary.Run.ID,
		"total", summary.Run.TotalKeywords,
		"successful", summary.Run.SuccessfulChecks,
		"failed", summary.Run.FailedChecks,
		"alerts", len(summary.Emitted),
		"canceled", summary.Canceled,
		"duration", time.Duration(summary.Run.DurationSeconds*float64(time.Second)).Round(time.Millisecond),
	)
	return summary, nil
}

// check runs one keyword check. It returns false when the check was
// abandoned because ctx ended, in which case nothing is counted.
func (t *Tracker) check(ctx context.Context, c check, agg *tally) bool {
	strategy := t.strategy.Name()
	obs, err := t.strategy.Search(ctx, c.keyword, c.client.Domain, t.opts.ResultsPerPage)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		agg.fail(c.keyword, err)
		t.metrics.Check(strategy, metrics.OutcomeFailed)
		slog.Warn("keyword check failed",
			"client", c.client.ID,
			"keyword", c.keyword,
			"error", err,
		)
		return true
	}
	if obs.LayoutUnrecognized {
		t.metrics.UnrecognizedLayout()
	}

	rec := &models.RankingRecord{
		ClientID:  c.client.ID,
		Domain:    c.client.Domain,
		Keyword:   c.keyword,
		Position:  obs.Position,
		URL:       obs.URL,
		Title:     obs.Title,
		Snippet:   obs.Snippet,
		CheckDate: models.Day(t.now()),
	}
	// A finished observation is persisted even if the run is being canceled.
	alert, err := t.store.Record(context.WithoutCancel(ctx), rec)
	if err != nil {
		agg.fail(c.keyword, err)
		t.metrics.Check(strategy, metrics.OutcomeFailed)
		slog.Error("failed to record ranking",
			"client", c.client.ID,
			"keyword", c.keyword,
			"error", err,
		)
		return true
	}

	agg.succeed(alert)
	outcome := metrics.OutcomeNotFound
	if obs.Found() {
		outcome = metrics.OutcomeFound
	}
	t.metrics.Check(strategy, outcome)
	if alert != nil {
		t.metrics.Alert(string(alert.Type))
	}

	attrs := []any{"client", c.client.ID, "keyword", c.keyword, "position", "not found"}
	if obs.Found() {
		attrs[len(attrs)-1] = *obs.Position
	}
	if alert != nil {
		attrs = append(attrs, "alert", alert.Type, "change", alert.Change)
	}
	slog.Info("keyword checked", attrs...)
	return true
}
