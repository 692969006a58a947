package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/rankwatch/models"
)

// call performs one API request, decoding the success body into out. The
// returned error is already phrased for the tool caller.
func call(ctx context.Context, c *resty.Client, method, path string, query map[string]string, body, out any) error {
	var apiErr models.ErrorResponse
	req := c.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(out).
		SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error != nil {
			return fmt.Errorf("[%s] %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("API returned status %d", resp.StatusCode())
	}
	return nil
}

func position(p *int) string {
	if p == nil {
		return "not found"
	}
	return "#" + strconv.Itoa(*p)
}

func handleListClients(c *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var resp models.ClientsResponse
		if err := call(ctx, c, resty.MethodGet, "/api/v1/clients", nil, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var sb strings.Builder
		for _, cl := range resp.Clients {
			fmt.Fprintf(&sb, "%s: %s (%s)\n  keywords: %s\n", cl.ID, cl.Name, cl.Domain, strings.Join(cl.Keywords, ", "))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleGetRankings(c *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("client_id")
		if err != nil {
			return mcp.NewToolResultError("client_id is required"), nil
		}

		var resp models.RankingsResponse
		if err := call(ctx, c, resty.MethodGet, "/api/v1/clients/"+id+"/rankings", nil, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(resp.Rankings) == 0 {
			return mcp.NewToolResultText("No rankings recorded yet for " + id + "."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Current rankings for %s:\n\n", id)
		for _, r := range resp.Rankings {
			fmt.Fprintf(&sb, "- %s: %s", r.Keyword, position(r.Position))
			if r.URL != "" {
				fmt.Fprintf(&sb, " (%s)", r.URL)
			}
			fmt.Fprintf(&sb, " checked %s\n", r.CheckDate.Format("2006-01-02"))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleGetStats(c *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("client_id")
		if err != nil {
			return mcp.NewToolResultError("client_id is required"), nil
		}

		var resp models.StatsResponse
		if err := call(ctx, c, resty.MethodGet, "/api/v1/clients/"+id+"/stats", nil, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		st := resp.Stats
		if st == nil {
			st = &models.ClientStats{}
		}
		avg := "n/a"
		if st.AvgPosition != nil {
			avg = strconv.FormatFloat(*st.AvgPosition, 'f', 1, 64)
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"%s: %d keywords, %d ranking, %d in top 10, %d in top 3, average position %s",
			id, st.TotalKeywords, st.RankingKeywords, st.Top10, st.Top3, avg,
		)), nil
	}
}

func handleGetHistory(c *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("client_id")
		if err != nil {
			return mcp.NewToolResultError("client_id is required"), nil
		}
		keyword, err := request.RequireString("keyword")
		if err != nil {
			return mcp.NewToolResultError("keyword is required"), nil
		}
		query := map[string]string{"keyword": keyword}
		if days := request.GetInt("days", 0); days > 0 {
			query["days"] = strconv.Itoa(days)
		}

		var resp models.HistoryResponse
		if err := call(ctx, c, resty.MethodGet, "/api/v1/clients/"+id+"/history", query, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "History of %q for %s over %d days:\n\n", keyword, id, resp.Days)
		if len(resp.History) == 0 {
			sb.WriteString("No observations in this window.\n")
		}
		for _, p := range resp.History {
			fmt.Fprintf(&sb, "%s  %s\n", p.CheckDate.Format("2006-01-02"), position(p.Position))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleGetAlerts(c *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var resp models.AlertsResponse
		if err := call(ctx, c, resty.MethodGet, "/api/v1/alerts", nil, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(resp.Alerts) == 0 {
			return mcp.NewToolResultText("No unacknowledged alerts."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "%d unacknowledged alert(s):\n\n", len(resp.Alerts))
		for _, a := range resp.Alerts {
			fmt.Fprintf(&sb, "- [%s] %s / %s: %s -> %s (%+d) on %s\n",
				a.Type, a.ClientID, a.Keyword,
				position(a.OldPosition), position(a.NewPosition), a.Change,
				a.AlertDate.Format("2006-01-02"))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleAcknowledge(c *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var resp models.AcknowledgeResponse
		if err := call(ctx, c, resty.MethodPost, "/api/v1/alerts/ack", nil, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Acknowledged %d alert(s).", resp.Acknowledged)), nil
	}
}

func handleTrack(c *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		body := models.TrackRequest{
			ClientID: request.GetString("client_id", ""),
			Keyword:  request.GetString("keyword", ""),
			TestMode: request.GetBool("test_mode", false),
		}

		var resp models.TrackResponse
		if err := call(ctx, c, resty.MethodPost, "/api/v1/track", nil, body, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"Tracking run (%s) %s. Check list_runs for the outcome.", resp.Scope, resp.Status,
		)), nil
	}
}

func handleListRuns(c *resty.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := map[string]string{}
		if limit := request.GetInt("limit", 0); limit > 0 {
			query["limit"] = strconv.Itoa(limit)
		}

		var resp models.RunsResponse
		if err := call(ctx, c, resty.MethodGet, "/api/v1/runs", query, nil, &resp); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(resp.Runs) == 0 {
			return mcp.NewToolResultText("No tracking runs yet."), nil
		}

		var sb strings.Builder
		for _, r := range resp.Runs {
			fmt.Fprintf(&sb, "%s  %s  %d/%d ok, %d failed, %.1fs\n",
				r.ID, r.RunDate.Format("2006-01-02 15:04"),
				r.SuccessfulChecks, r.TotalKeywords, r.FailedChecks, r.DurationSeconds)
			for _, e := range r.Errors {
				fmt.Fprintf(&sb, "    %s\n", e)
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
