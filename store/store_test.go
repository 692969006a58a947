package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/rankwatch/models"
)

var today = time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *clock) set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	c := &clock{now: today.Add(12 * time.Hour)}
	s, err := Open(filepath.Join(t.TempDir(), "data", "rankings.db"), WithClock(c.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ranking(client, keyword string, daysAgo int, pos *int) *models.RankingRecord {
	return &models.RankingRecord{
		ClientID:  client,
		Domain:    "example.com",
		Keyword:   keyword,
		Position:  pos,
		CheckDate: today.AddDate(0, 0, -daysAgo),
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(context.Background(), ranking("acme", "kw", 0, models.IntPtr(4))))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	current, err := s.CurrentRankings(context.Background(), "acme")
	require.NoError(t, err)
	require.Len(t, current, 1)
}

func TestUpsert_ReplacesSameDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := ranking("acme", "crm software", 0, models.IntPtr(8))
	first.URL = "https://example.com/a"
	require.NoError(t, s.Upsert(ctx, first))
	second := ranking("acme", "crm software", 0, models.IntPtr(6))
	second.URL = "https://example.com/b"
	require.NoError(t, s.Upsert(ctx, second))

	current, err := s.CurrentRankings(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, 6, *current[0].Position)
	assert.Equal(t, "https://example.com/b", current[0].URL)
	assert.Equal(t, today, current[0].CheckDate)
}

func TestUpsert_ZeroDateMeansToday(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := &models.RankingRecord{ClientID: "acme", Domain: "example.com", Keyword: "kw"}
	require.NoError(t, s.Upsert(ctx, rec))
	assert.Equal(t, today, rec.CheckDate)
}

func TestRecord_FirstObservationHasNoAlert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	alert, err := s.Record(ctx, ranking("acme", "kw", 0, models.IntPtr(50)))
	require.NoError(t, err)
	assert.Nil(t, alert)

	alerts, err := s.OutstandingAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestRecord_Transitions(t *testing.T) {
	p := models.IntPtr
	tests := []struct {
		name       string
		prev, curr *int
		want       models.AlertType
		change     int
	}{
		{"major movement beats boundary", p(20), p(10), models.AlertMajorMovement, 10},
		{"entered top 10", p(11), p(9), models.AlertEnteredTop10, 2},
		{"new entry", nil, p(5), models.AlertNewEntry, -5},
		{"dropped out", p(5), nil, models.AlertDroppedOut, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newTestStore(t)

			_, err := s.Record(ctx, ranking("acme", "kw", 1, tt.prev))
			require.NoError(t, err)
			alert, err := s.Record(ctx, ranking("acme", "kw", 0, tt.curr))
			require.NoError(t, err)
			require.NotNil(t, alert)

			assert.Equal(t, tt.want, alert.Type)
			assert.Equal(t, tt.change, alert.Change)
			assert.Equal(t, tt.prev, alert.OldPosition)
			assert.Equal(t, tt.curr, alert.NewPosition)
			assert.NotZero(t, alert.ID)

			stored, err := s.OutstandingAlerts(ctx)
			require.NoError(t, err)
			require.Len(t, stored, 1)
			assert.Equal(t, alert.ID, stored[0].ID)
			assert.Equal(t, tt.want, stored[0].Type)
			assert.Equal(t, tt.change, stored[0].Change)
			assert.False(t, stored[0].Acknowledged)
		})
	}
}

func TestRecord_NoAlertCases(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Record(ctx, ranking("acme", "small", 1, models.IntPtr(15)))
	require.NoError(t, err)
	alert, err := s.Record(ctx, ranking("acme", "small", 0, models.IntPtr(17)))
	require.NoError(t, err)
	assert.Nil(t, alert)

	_, err = s.Record(ctx, ranking("acme", "never", 1, nil))
	require.NoError(t, err)
	alert, err = s.Record(ctx, ranking("acme", "never", 0, nil))
	require.NoError(t, err)
	assert.Nil(t, alert)
}

func TestRecord_ComparesAgainstMostRecentEarlierDay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Record(ctx, ranking("acme", "kw", 5, models.IntPtr(40)))
	require.NoError(t, err)
	_, err = s.Record(ctx, ranking("acme", "kw", 2, models.IntPtr(12)))
	require.NoError(t, err)

	alert, err := s.Record(ctx, ranking("acme", "kw", 0, models.IntPtr(9)))
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, models.AlertEnteredTop10, alert.Type)
	assert.Equal(t, 12, *alert.OldPosition)

	// A same-day re-check never compares with itself.
	alert, err = s.Record(ctx, ranking("acme", "kw", 0, models.IntPtr(10)))
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, 12, *alert.OldPosition)
	assert.Equal(t, 2, alert.Change)
}

func TestRecord_CheckDateFollowsClockLocation(t *testing.T) {
	ctx := context.Background()
	pacific := time.FixedZone("PST", -8*60*60)
	c := &clock{now: time.Date(2026, 3, 10, 22, 59, 0, 0, pacific)}
	s, err := Open(filepath.Join(t.TempDir(), "r.db"), WithClock(c.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	// 23:00 local is already the next day in UTC.
	first := &models.RankingRecord{ClientID: "acme", Domain: "example.com", Keyword: "kw", Position: models.IntPtr(20)}
	alert, err := s.Record(ctx, first)
	require.NoError(t, err)
	assert.Nil(t, alert)
	assert.Equal(t, "2026-03-10", first.CheckDate.Format(models.DateLayout))

	c.set(time.Date(2026, 3, 11, 15, 0, 0, 0, pacific))
	second := &models.RankingRecord{ClientID: "acme", Domain: "example.com", Keyword: "kw", Position: models.IntPtr(5)}
	alert, err = s.Record(ctx, second)
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, models.AlertMajorMovement, alert.Type)
	assert.Equal(t, 20, *alert.OldPosition)

	history, err := s.History(ctx, "acme", "kw", 30)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2026-03-11", history[0].CheckDate.Format(models.DateLayout))
	assert.Equal(t, "2026-03-10", history[1].CheckDate.Format(models.DateLayout))
}

func TestRecord_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Record(ctx, ranking("acme", "kw", 1, models.IntPtr(30)))
	require.NoError(t, err)

	const writers = 10
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		alerts []*models.AlertRecord
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(pos int) {
			defer wg.Done()
			alert, err := s.Record(ctx, ranking("acme", "kw", 0, models.IntPtr(pos)))
			assert.NoError(t, err)
			mu.Lock()
			alerts = append(alerts, alert)
			mu.Unlock()
		}(i + 1)
	}
	wg.Wait()

	require.Len(t, alerts, writers)
	var last *models.AlertRecord
	for _, a := range alerts {
		require.NotNil(t, a)
		// Always classified against the prior day, never a same-day row.
		assert.Equal(t, 30, *a.OldPosition)
		assert.Equal(t, models.AlertMajorMovement, a.Type)
		assert.Equal(t, 30-*a.NewPosition, a.Change)
		if last == nil || a.ID > last.ID {
			last = a
		}
	}

	history, err := s.History(ctx, "acme", "kw", 30)
	require.NoError(t, err)
	require.Len(t, history, 2, "one row per day")
	assert.Equal(t, *last.NewPosition, *history[0].Position, "the row holds the last committed write")
	assert.Equal(t, 30, *history[1].Position)

	stored, err := s.OutstandingAlerts(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, writers)
}

func TestRecord_KeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Record(ctx, ranking("acme", "kw", 1, models.IntPtr(30)))
	require.NoError(t, err)
	alert, err := s.Record(ctx, ranking("globex", "kw", 0, models.IntPtr(2)))
	require.NoError(t, err)
	assert.Nil(t, alert, "other clients' history is not a prior")
}

func TestRecord_ConcurrentDistinctKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kw := fmt.Sprintf("kw-%d", i)
			_, err := s.Record(ctx, ranking("acme", kw, 1, models.IntPtr(30)))
			assert.NoError(t, err)
			_, err = s.Record(ctx, ranking("acme", kw, 0, models.IntPtr(1)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	alerts, err := s.OutstandingAlerts(ctx)
	require.NoError(t, err)
	assert.Len(t, alerts, 20)
	for _, a := range alerts {
		assert.Equal(t, models.AlertMajorMovement, a.Type)
		assert.Equal(t, 29, a.Change)
	}
}

func TestRecord_CanceledContextIsStorageError(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Record(ctx, ranking("acme", "kw", 0, models.IntPtr(1)))
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindStorage))
}

func TestCurrentRankings_Ordering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, ranking("acme", "zeta", 0, models.IntPtr(4))))
	require.NoError(t, s.Upsert(ctx, ranking("acme", "alpha", 0, nil)))
	require.NoError(t, s.Upsert(ctx, ranking("acme", "beta", 0, models.IntPtr(4))))
	require.NoError(t, s.Upsert(ctx, ranking("acme", "gamma", 0, models.IntPtr(1))))
	// Older rows of a keyword are not part of the snapshot.
	require.NoError(t, s.Upsert(ctx, ranking("acme", "gamma", 3, models.IntPtr(60))))
	// A keyword last checked earlier still shows its latest row.
	require.NoError(t, s.Upsert(ctx, ranking("acme", "stale", 4, models.IntPtr(2))))
	require.NoError(t, s.Upsert(ctx, ranking("other", "gamma", 0, models.IntPtr(3))))

	current, err := s.CurrentRankings(ctx, "acme")
	require.NoError(t, err)

	var got []string
	for _, r := range current {
		got = append(got, r.Keyword)
	}
	assert.Equal(t, []string{"gamma", "stale", "beta", "zeta", "alpha"}, got)
	assert.Nil(t, current[4].Position)
	assert.Equal(t, today.AddDate(0, 0, -4), current[1].CheckDate)
}

func TestHistory_WindowAndOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, daysAgo := range []int{0, 1, 7, 30, 31, 45} {
		require.NoError(t, s.Upsert(ctx, ranking("acme", "kw", daysAgo, models.IntPtr(daysAgo+1))))
	}

	points, err := s.History(ctx, "acme", "kw", 30)
	require.NoError(t, err)
	require.Len(t, points, 4)
	assert.Equal(t, today, points[0].CheckDate)
	assert.Equal(t, 1, *points[0].Position)
	assert.Equal(t, today.AddDate(0, 0, -30), points[3].CheckDate)

	points, err = s.History(ctx, "acme", "kw", 7)
	require.NoError(t, err)
	assert.Len(t, points, 3)

	points, err = s.History(ctx, "acme", "missing", 7)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestAcknowledgeAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, kw := range []string{"a", "b", "c"} {
		_, err := s.Record(ctx, ranking("acme", kw, 1, nil))
		require.NoError(t, err)
		_, err = s.Record(ctx, ranking("acme", kw, 0, models.IntPtr(3)))
		require.NoError(t, err)
	}

	alerts, err := s.OutstandingAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, "c", alerts[0].Keyword, "most recent first")

	n, err := s.AcknowledgeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	alerts, err = s.OutstandingAlerts(ctx)
	require.NoError(t, err)
	assert.Empty(t, alerts)

	n, err = s.AcknowledgeAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	older := &models.TrackingRun{
		ID:               "01J0000000000000000000000A",
		RunDate:          today.Add(6 * time.Hour),
		TotalKeywords:    10,
		SuccessfulChecks: 7,
		FailedChecks:     3,
		DurationSeconds:  42.5,
		Errors:           []string{"kw1: network: timeout", "kw2: network: 503"},
	}
	newer := &models.TrackingRun{
		ID:            "01J0000000000000000000000B",
		RunDate:       today.Add(7 * time.Hour),
		TotalKeywords: 1,
	}
	require.NoError(t, s.AppendRun(ctx, older))
	require.NoError(t, s.AppendRun(ctx, newer))
	assert.Error(t, s.AppendRun(ctx, newer), "run log is append-only")

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Empty(t, runs[0].Errors)
	assert.Equal(t, older.Errors, runs[1].Errors)
	assert.Equal(t, 7, runs[1].SuccessfulChecks)
	assert.Equal(t, 3, runs[1].FailedChecks)
	assert.InDelta(t, 42.5, runs[1].DurationSeconds, 0.001)
	assert.True(t, older.RunDate.Equal(runs[1].RunDate))

	runs, err = s.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stats, err := s.Stats(ctx, "acme")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalKeywords)
	assert.Nil(t, stats.AvgPosition)

	for kw, pos := range map[string]*int{
		"a": models.IntPtr(1),
		"b": models.IntPtr(3),
		"c": models.IntPtr(8),
		"d": models.IntPtr(25),
		"e": nil,
	} {
		require.NoError(t, s.Upsert(ctx, ranking("acme", kw, 0, pos)))
	}

	stats, err = s.Stats(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalKeywords)
	assert.Equal(t, 4, stats.RankingKeywords)
	assert.Equal(t, 3, stats.Top10)
	assert.Equal(t, 2, stats.Top3)
	require.NotNil(t, stats.AvgPosition)
	assert.Equal(t, 9.3, *stats.AvgPosition)
}
