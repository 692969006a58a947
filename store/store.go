// Package store persists ranking history, classified alerts and the run
// log in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/use-agent/rankwatch/models"
	"github.com/use-agent/rankwatch/store/migrations"
	_ "modernc.org/sqlite"
)

// timestampLayout is fixed width so TEXT ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// defaultHistoryDays is used when History is called with a non-positive window.
const defaultHistoryDays = 30

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Store is the SQLite-backed ranking store. It is safe for concurrent use;
// writes for one (client, keyword) key are serialized.
type Store struct {
	db    *sqlx.DB
	locks keyLocks
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for alert dates and history windows.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at path and applies all
// pending migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storageErr("create database directory", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, storageErr("open database", err)
	}
	// SQLite has one writer; a single connection avoids SQLITE_BUSY between
	// our own transactions.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return storageErr("load migrations", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return storageErr("init migration driver", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return storageErr("create migrator", err)
	}
	// m.Close would close db as well; only the source is released here.
	defer src.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return storageErr("apply migrations", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func storageErr(msg string, err error) error {
	return models.NewScrapeError(models.KindStorage, msg, err)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertRanking = `
	INSERT INTO rankings
		(client_id, domain, keyword, position, url, title, snippet, check_date, search_volume)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (client_id, keyword, check_date) DO UPDATE SET
		domain        = excluded.domain,
		position      = excluded.position,
		url           = excluded.url,
		title         = excluded.title,
		snippet       = excluded.snippet,
		search_volume = excluded.search_volume`

func (s *Store) checkDay(rec *models.RankingRecord) string {
	if rec.CheckDate.IsZero() {
		rec.CheckDate = models.Day(s.now())
	}
	return models.Day(rec.CheckDate).Format(models.DateLayout)
}

func upsert(ctx context.Context, ex execer, rec *models.RankingRecord, day string) error {
	_, err := ex.ExecContext(ctx, upsertRanking,
		rec.ClientID, rec.Domain, rec.Keyword,
		nullInt(rec.Position), nullString(rec.URL), nullString(rec.Title), nullString(rec.Snippet),
		day, nullInt(rec.SearchVolume),
	)
	return err
}

// Upsert saves rec, replacing any row with the same client, keyword and
// check date. A zero CheckDate means today.
func (s *Store) Upsert(ctx context.Context, rec *models.RankingRecord) error {
	day := s.checkDay(rec)
	unlock := s.locks.lock(rec.ClientID, rec.Keyword)
	defer unlock()

	if err := upsert(ctx, s.db, rec, day); err != nil {
		return storageErr(fmt.Sprintf("upsert ranking %s/%s", rec.ClientID, rec.Keyword), err)
	}
	return nil
}

// Record saves rec and, when a strictly earlier check exists for the same
// key, classifies the change against the most recent one. The alert, if
// any, is persisted in the same transaction and returned.
//
// An upsert failure is returned as a storage error and nothing is
// classified.
func (s *Store) Record(ctx context.Context, rec *models.RankingRecord) (*models.AlertRecord, error) {
	day := s.checkDay(rec)
	unlock := s.locks.lock(rec.ClientID, rec.Keyword)
	defer unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := upsert(ctx, tx, rec, day); err != nil {
		return nil, storageErr(fmt.Sprintf("upsert ranking %s/%s", rec.ClientID, rec.Keyword), err)
	}

	var prior sql.NullInt64
	err = tx.GetContext(ctx, &prior, `
		SELECT position FROM rankings
		WHERE client_id = ? AND keyword = ? AND check_date < ?
		ORDER BY check_date DESC
		LIMIT 1`, rec.ClientID, rec.Keyword, day)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// First observation of this key.
		return nil, commit(tx)
	case err != nil:
		return nil, storageErr("load prior ranking", err)
	}

	alertType, change, ok := Classify(intPtr(prior), rec.Position)
	if !ok {
		return nil, commit(tx)
	}

	alert := &models.AlertRecord{
		ClientID:    rec.ClientID,
		Keyword:     rec.Keyword,
		Type:        alertType,
		OldPosition: intPtr(prior),
		NewPosition: rec.Position,
		Change:      change,
		AlertDate:   s.now().UTC(),
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO alerts
			(client_id, keyword, alert_type, old_position, new_position, change, alert_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alert.ClientID, alert.Keyword, string(alert.Type),
		nullInt(alert.OldPosition), nullInt(alert.NewPosition), alert.Change,
		alert.AlertDate.Format(timestampLayout),
	)
	if err != nil {
		return nil, storageErr("insert alert", err)
	}
	if alert.ID, err = res.LastInsertId(); err != nil {
		return nil, storageErr("read alert id", err)
	}
	if err := commit(tx); err != nil {
		return nil, err
	}
	return alert, nil
}

func commit(tx *sqlx.Tx) error {
	if err := tx.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

type rankingRow struct {
	ClientID     string         `db:"client_id"`
	Domain       string         `db:"domain"`
	Keyword      string         `db:"keyword"`
	Position     sql.NullInt64  `db:"position"`
	URL          sql.NullString `db:"url"`
	Title        sql.NullString `db:"title"`
	Snippet      sql.NullString `db:"snippet"`
	CheckDate    string         `db:"check_date"`
	SearchVolume sql.NullInt64  `db:"search_volume"`
}

func (r rankingRow) record() models.RankingRecord {
	day, _ := time.Parse(models.DateLayout, r.CheckDate)
	return models.RankingRecord{
		ClientID:     r.ClientID,
		Domain:       r.Domain,
		Keyword:      r.Keyword,
		Position:     intPtr(r.Position),
		URL:          r.URL.String,
		Title:        r.Title.String,
		Snippet:      r.Snippet.String,
		CheckDate:    day,
		SearchVolume: intPtr(r.SearchVolume),
	}
}

// CurrentRankings returns the latest row of every keyword tracked for
// clientID, best position first, unranked keywords last.
func (s *Store) CurrentRankings(ctx context.Context, clientID string) ([]models.RankingRecord, error) {
	var rows []rankingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT r.client_id, r.domain, r.keyword, r.position, r.url, r.title,
		       r.snippet, r.check_date, r.search_volume
		FROM rankings r
		JOIN (
			SELECT keyword, MAX(check_date) AS latest
			FROM rankings
			WHERE client_id = ?
			GROUP BY keyword
		) l ON l.keyword = r.keyword AND l.latest = r.check_date
		WHERE r.client_id = ?
		ORDER BY r.position IS NULL, r.position, r.keyword`, clientID, clientID)
	if err != nil {
		return nil, storageErr("load current rankings", err)
	}

	out := make([]models.RankingRecord, len(rows))
	for i, r := range rows {
		out[i] = r.record()
	}
	return out, nil
}

// History returns the dated positions of one keyword over the trailing
// window of days, most recent first.
func (s *Store) History(ctx context.Context, clientID, keyword string, days int) ([]models.HistoryPoint, error) {
	if days <= 0 {
		days = defaultHistoryDays
	}
	cutoff := models.Day(s.now()).AddDate(0, 0, -days).Format(models.DateLayout)

	var rows []struct {
		CheckDate string        `db:"check_date"`
		Position  sql.NullInt64 `db:"position"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT check_date, position
		FROM rankings
		WHERE client_id = ? AND keyword = ? AND check_date >= ?
		ORDER BY check_date DESC`, clientID, keyword, cutoff)
	if err != nil {
		return nil, storageErr("load ranking history", err)
	}

	out := make([]models.HistoryPoint, len(rows))
	for i, r := range rows {
		day, _ := time.Parse(models.DateLayout, r.CheckDate)
		out[i] = models.HistoryPoint{CheckDate: day, Position: intPtr(r.Position)}
	}
	return out, nil
}

type alertRow struct {
	ID           int64         `db:"id"`
	ClientID     string        `db:"client_id"`
	Keyword      string        `db:"keyword"`
	Type         string        `db:"alert_type"`
	OldPosition  sql.NullInt64 `db:"old_position"`
	NewPosition  sql.NullInt64 `db:"new_position"`
	Change       int           `db:"change"`
	AlertDate    string        `db:"alert_date"`
	Acknowledged bool          `db:"acknowledged"`
}

// OutstandingAlerts returns every unacknowledged alert, most recent first.
func (s *Store) OutstandingAlerts(ctx context.Context) ([]models.AlertRecord, error) {
	var rows []alertRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, client_id, keyword, alert_type, old_position, new_position,
		       change, alert_date, acknowledged
		FROM alerts
		WHERE acknowledged = 0
		ORDER BY alert_date DESC, id DESC`)
	if err != nil {
		return nil, storageErr("load outstanding alerts", err)
	}

	out := make([]models.AlertRecord, len(rows))
	for i, r := range rows {
		at, _ := time.Parse(timestampLayout, r.AlertDate)
		out[i] = models.AlertRecord{
			ID:           r.ID,
			ClientID:     r.ClientID,
			Keyword:      r.Keyword,
			Type:         models.AlertType(r.Type),
			OldPosition:  intPtr(r.OldPosition),
			NewPosition:  intPtr(r.NewPosition),
			Change:       r.Change,
			AlertDate:    at,
			Acknowledged: r.Acknowledged,
		}
	}
	return out, nil
}

// AcknowledgeAll marks every outstanding alert acknowledged and returns how
// many were flipped.
func (s *Store) AcknowledgeAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE alerts SET acknowledged = 1 WHERE acknowledged = 0`)
	if err != nil {
		return 0, storageErr("acknowledge alerts", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("acknowledge alerts", err)
	}
	return n, nil
}

// AppendRun writes one run-log row. Rows are never updated.
func (s *Store) AppendRun(ctx context.Context, run *models.TrackingRun) error {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	errorLog, err := json.Marshal(errs)
	if err != nil {
		return storageErr("encode run errors", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tracking_runs
			(id, run_date, total_keywords, successful_checks, failed_checks, duration_seconds, error_log)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.RunDate.UTC().Format(timestampLayout),
		run.TotalKeywords, run.SuccessfulChecks, run.FailedChecks, run.DurationSeconds,
		string(errorLog),
	)
	if err != nil {
		return storageErr("append tracking run", err)
	}
	return nil
}

// Runs returns up to limit run-log rows, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]models.TrackingRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []struct {
		ID               string  `db:"id"`
		RunDate          string  `db:"run_date"`
		TotalKeywords    int     `db:"total_keywords"`
		SuccessfulChecks int     `db:"successful_checks"`
		FailedChecks     int     `db:"failed_checks"`
		DurationSeconds  float64 `db:"duration_seconds"`
		ErrorLog         string  `db:"error_log"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, run_date, total_keywords, successful_checks, failed_checks,
		       duration_seconds, error_log
		FROM tracking_runs
		ORDER BY run_date DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, storageErr("load tracking runs", err)
	}

	out := make([]models.TrackingRun, len(rows))
	for i, r := range rows {
		at, _ := time.Parse(timestampLayout, r.RunDate)
		run := models.TrackingRun{
			ID:               r.ID,
			RunDate:          at,
			TotalKeywords:    r.TotalKeywords,
			SuccessfulChecks: r.SuccessfulChecks,
			FailedChecks:     r.FailedChecks,
			DurationSeconds:  r.DurationSeconds,
		}
		if err := json.Unmarshal([]byte(r.ErrorLog), &run.Errors); err != nil {
			return nil, storageErr(fmt.Sprintf("decode errors of run %s", r.ID), err)
		}
		out[i] = run
	}
	return out, nil
}

// Stats summarizes the current-rankings snapshot of clientID.
func (s *Store) Stats(ctx context.Context, clientID string) (*models.ClientStats, error) {
	current, err := s.CurrentRankings(ctx, clientID)
	if err != nil {
		return nil, err
	}

	stats := &models.ClientStats{TotalKeywords: len(current)}
	sum := 0
	for _, r := range current {
		if r.Position == nil {
			continue
		}
		p := *r.Position
		stats.RankingKeywords++
		sum += p
		if p <= 10 {
			stats.Top10++
		}
		if p <= 3 {
			stats.Top3++
		}
	}
	if stats.RankingKeywords > 0 {
		avg := math.Round(float64(sum)/float64(stats.RankingKeywords)*10) / 10
		stats.AvgPosition = &avg
	}
	return stats, nil
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
