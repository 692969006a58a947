package models

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	Version       string `json:"version"`
	Strategy      string `json:"strategy"`
	Breaker       string `json:"breaker,omitempty"`
	Database      string `json:"database"`
	RunInProgress bool   `json:"run_in_progress"`
}

// ClientInfo describes one configured client.
type ClientInfo struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Domain   string   `json:"domain"`
	Keywords []string `json:"keywords"`
}

// ClientsResponse is the response for GET /api/v1/clients.
type ClientsResponse struct {
	Success bool         `json:"success"`
	Clients []ClientInfo `json:"clients"`
}

// RankingsResponse is the response for GET /api/v1/clients/:id/rankings.
type RankingsResponse struct {
	Success  bool            `json:"success"`
	ClientID string          `json:"client_id"`
	Rankings []RankingRecord `json:"rankings"`
}

// StatsResponse is the response for GET /api/v1/clients/:id/stats.
type StatsResponse struct {
	Success  bool         `json:"success"`
	ClientID string       `json:"client_id"`
	Stats    *ClientStats `json:"stats"`
}

// HistoryResponse is the response for GET /api/v1/clients/:id/history.
type HistoryResponse struct {
	Success  bool           `json:"success"`
	ClientID string         `json:"client_id"`
	Keyword  string         `json:"keyword"`
	Days     int            `json:"days"`
	History  []HistoryPoint `json:"history"`
}

// AlertsResponse is the response for GET /api/v1/alerts.
type AlertsResponse struct {
	Success bool          `json:"success"`
	Alerts  []AlertRecord `json:"alerts"`
}

// AcknowledgeResponse is the response for POST /api/v1/alerts/ack.
type AcknowledgeResponse struct {
	Success      bool  `json:"success"`
	Acknowledged int64 `json:"acknowledged"`
}

// RunsResponse is the response for GET /api/v1/runs.
type RunsResponse struct {
	Success bool          `json:"success"`
	Runs    []TrackingRun `json:"runs"`
}

// TrackResponse is the response for POST /api/v1/track. The run executes
// in the background; its audit row appears under /api/v1/runs.
type TrackResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Scope   string `json:"scope"`
}
