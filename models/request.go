package models

// TrackRequest is the payload for POST /api/v1/track. With neither field
// set every client is tracked; ClientID and Keyword are mutually exclusive.
type TrackRequest struct {
	// ClientID restricts the run to one client.
	ClientID string `json:"client_id,omitempty"`

	// Keyword restricts the run to one keyword across every client that
	// tracks it.
	Keyword string `json:"keyword,omitempty"`

	// TestMode checks only the first keyword of each client, without
	// pacing. Only valid for a full run.
	TestMode bool `json:"test_mode,omitempty"`
}

// Scope names what a TrackRequest covers, for logs and responses.
func (r *TrackRequest) Scope() string {
	switch {
	case r.ClientID != "":
		return "client:" + r.ClientID
	case r.Keyword != "":
		return "keyword:" + r.Keyword
	case r.TestMode:
		return "all:test"
	default:
		return "all"
	}
}

// HistoryQuery is the query string of GET /api/v1/clients/:id/history.
type HistoryQuery struct {
	Keyword string `form:"keyword" binding:"required"`

	// Days is the trailing window. Default: 30. Max: 365.
	Days int `form:"days" binding:"omitempty,min=1,max=365"`
}

// Defaults applies default values to unset fields.
func (q *HistoryQuery) Defaults() {
	if q.Days == 0 {
		q.Days = 30
	}
}

// RunsQuery is the query string of GET /api/v1/runs.
type RunsQuery struct {
	// Limit caps the number of runs returned. Default: 20. Max: 200.
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// Defaults applies default values to unset fields.
func (q *RunsQuery) Defaults() {
	if q.Limit == 0 {
		q.Limit = 20
	}
}
