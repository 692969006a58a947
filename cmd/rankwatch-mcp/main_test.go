package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestGetRankings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/clients/acme/rankings", r.URL.Path)
		assert.Equal(t, "k1", r.Header.Get("X-API-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"client_id":"acme","rankings":[
			{"keyword":"crm","position":4,"url":"https://acme.example/crm","check_date":"2026-03-02T00:00:00Z"},
			{"keyword":"erp","position":null,"check_date":"2026-03-02T00:00:00Z"}]}`)
	}))
	defer srv.Close()

	res, err := handleGetRankings(newClient(srv.URL, "k1"))(context.Background(), toolRequest(map[string]any{"client_id": "acme"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	text := resultText(t, res)
	assert.Contains(t, text, "crm: #4 (https://acme.example/crm)")
	assert.Contains(t, text, "erp: not found")
}

func TestGetRankings_RequiresClient(t *testing.T) {
	res, err := handleGetRankings(newClient("http://127.0.0.1:1", ""))(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAPIErrorIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"success":false,"error":{"code":"RUN_IN_PROGRESS","message":"a tracking run is already in progress"}}`)
	}))
	defer srv.Close()

	res, err := handleTrack(newClient(srv.URL, ""))(context.Background(), toolRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "[RUN_IN_PROGRESS] a tracking run is already in progress", resultText(t, res))
}

func TestTrack_SendsScope(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"success":true,"status":"accepted","scope":"keyword:crm"}`)
	}))
	defer srv.Close()

	res, err := handleTrack(newClient(srv.URL, ""))(context.Background(), toolRequest(map[string]any{"keyword": "crm"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "crm", got["keyword"])
	assert.Contains(t, resultText(t, res), "keyword:crm")
}

func TestGetHistory_PassesDays(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "crm", r.URL.Query().Get("keyword"))
		assert.Equal(t, "7", r.URL.Query().Get("days"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"success":true,"client_id":"acme","keyword":"crm","days":7,"history":[
			{"check_date":"2026-03-01T00:00:00Z","position":12},
			{"check_date":"2026-03-02T00:00:00Z","position":null}]}`)
	}))
	defer srv.Close()

	res, err := handleGetHistory(newClient(srv.URL, ""))(context.Background(),
		toolRequest(map[string]any{"client_id": "acme", "keyword": "crm", "days": float64(7)}))
	require.NoError(t, err)
	text := resultText(t, res)
	assert.Contains(t, text, "2026-03-01  #12")
	assert.Contains(t, text, "2026-03-02  not found")
}

func TestServerRegistersTools(t *testing.T) {
	s := newServer(newClient("http://127.0.0.1:1", ""))
	tools := s.ListTools()
	for _, name := range []string{
		"list_clients", "get_rankings", "get_stats", "get_history",
		"get_alerts", "acknowledge_alerts", "track_keywords", "list_runs",
	} {
		assert.Contains(t, tools, name)
	}
}
