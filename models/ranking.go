package models

import "time"

// DateLayout is the calendar-day format used for check dates.
const DateLayout = "2006-01-02"

// Observation is the ephemeral outcome of one scrape.
// A nil Position means the domain was not found in the fetched window,
// which is a valid result and not a failure.
type Observation struct {
	Keyword  string
	Domain   string
	Position *int
	URL      string
	Title    string
	Snippet  string

	// LayoutUnrecognized is set when the page had no result containers at
	// all. The position is still reported as not found.
	LayoutUnrecognized bool
}

// Found reports whether the target domain was located.
func (o *Observation) Found() bool {
	return o != nil && o.Position != nil
}

// RankingRecord is one persisted daily check for a client keyword.
type RankingRecord struct {
	ClientID     string    `json:"client_id"`
	Domain       string    `json:"domain"`
	Keyword      string    `json:"keyword"`
	Position     *int      `json:"position"`
	URL          string    `json:"url,omitempty"`
	Title        string    `json:"title,omitempty"`
	Snippet      string    `json:"snippet,omitempty"`
	CheckDate    time.Time `json:"check_date"`
	SearchVolume *int      `json:"search_volume,omitempty"`
}

// Day truncates t to its calendar day in t's own location, so a clock in
// local time yields the local day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AlertType names a classified ranking transition.
type AlertType string

const (
	AlertNewEntry      AlertType = "new_entry"
	AlertDroppedOut    AlertType = "dropped_out"
	AlertMajorMovement AlertType = "major_movement"
	AlertExitedTop10   AlertType = "exited_top_10"
	AlertEnteredTop10  AlertType = "entered_top_10"
	AlertExitedTop3    AlertType = "exited_top_3"
	AlertEnteredTop3   AlertType = "entered_top_3"
)

// AlertRecord is a persisted, classified change between two dated checks.
// Change is old minus new, so a positive value is an improvement.
type AlertRecord struct {
	ID           int64     `json:"id"`
	ClientID     string    `json:"client_id"`
	Keyword      string    `json:"keyword"`
	Type         AlertType `json:"alert_type"`
	OldPosition  *int      `json:"old_position"`
	NewPosition  *int      `json:"new_position"`
	Change       int       `json:"change"`
	AlertDate    time.Time `json:"alert_date"`
	Acknowledged bool      `json:"acknowledged"`
}

// TrackingRun is the audit row written once per orchestration run.
type TrackingRun struct {
	ID               string    `json:"id"`
	RunDate          time.Time `json:"run_date"`
	TotalKeywords    int       `json:"total_keywords"`
	SuccessfulChecks int       `json:"successful_checks"`
	FailedChecks     int       `json:"failed_checks"`
	DurationSeconds  float64   `json:"duration_seconds"`
	Errors           []string  `json:"errors,omitempty"`
}

// HistoryPoint is one dated position in a keyword's series.
type HistoryPoint struct {
	CheckDate time.Time `json:"check_date"`
	Position  *int      `json:"position"`
}

// ClientStats aggregates a client's current snapshot.
type ClientStats struct {
	TotalKeywords   int      `json:"total_keywords"`
	RankingKeywords int      `json:"ranking_keywords"`
	Top10           int      `json:"top_10"`
	Top3            int      `json:"top_3"`
	AvgPosition     *float64 `json:"avg_position"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
