package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/rankwatch/api/handler"
)

func main() {
	apiURL := os.Getenv("RANKWATCH_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	// Optional: the API may run with auth disabled.
	apiKey := os.Getenv("RANKWATCH_API_KEY")

	if err := server.ServeStdio(newServer(newClient(apiURL, apiKey))); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newClient(apiURL, apiKey string) *resty.Client {
	c := resty.New().
		SetBaseURL(apiURL).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return c
}

func newServer(c *resty.Client) *server.MCPServer {
	s := server.NewMCPServer(
		"rankwatch",
		handler.Version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("list_clients",
		mcp.WithDescription("List the tracked clients with their domains and keywords."),
	), handleListClients(c))

	s.AddTool(mcp.NewTool("get_rankings",
		mcp.WithDescription("Get the latest search position of every keyword tracked for a client. A missing position means the domain was not found in the checked results."),
		mcp.WithString("client_id",
			mcp.Required(),
			mcp.Description("The client id from list_clients"),
		),
	), handleGetRankings(c))

	s.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Summarize a client's current rankings: keywords tracked, ranking, top 10, top 3 and average position."),
		mcp.WithString("client_id",
			mcp.Required(),
			mcp.Description("The client id from list_clients"),
		),
	), handleGetStats(c))

	s.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("Get the daily position history of one keyword for a client."),
		mcp.WithString("client_id",
			mcp.Required(),
			mcp.Description("The client id from list_clients"),
		),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("The tracked keyword"),
		),
		mcp.WithNumber("days",
			mcp.Description("Window size in days (default: 30, max: 365)"),
			mcp.Min(1),
			mcp.Max(365),
		),
	), handleGetHistory(c))

	s.AddTool(mcp.NewTool("get_alerts",
		mcp.WithDescription("List unacknowledged ranking alerts, newest first."),
	), handleGetAlerts(c))

	s.AddTool(mcp.NewTool("acknowledge_alerts",
		mcp.WithDescription("Acknowledge every outstanding alert."),
	), handleAcknowledge(c))

	s.AddTool(mcp.NewTool("track_keywords",
		mcp.WithDescription("Start a tracking run in the background. Without arguments every keyword of every client is checked. Results appear in get_rankings and list_runs once the run finishes."),
		mcp.WithString("client_id",
			mcp.Description("Only track this client's keywords"),
		),
		mcp.WithString("keyword",
			mcp.Description("Only track this keyword, for every client that tracks it"),
		),
		mcp.WithBoolean("test_mode",
			mcp.Description("Check only the first keyword of each client, without pacing"),
		),
	), handleTrack(c))

	s.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent tracking runs with their success and failure counts."),
		mcp.WithNumber("limit",
			mcp.Description("Number of runs (default: 20, max: 200)"),
			mcp.Min(1),
			mcp.Max(200),
		),
	), handleListRuns(c))

	return s
}
