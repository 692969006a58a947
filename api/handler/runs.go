package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rankwatch/models"
	"github.com/use-agent/rankwatch/tracker"
)

// Runs returns a handler for GET /api/v1/runs.
func Runs(store Reader) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q models.RunsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			abort(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
			return
		}
		q.Defaults()

		runs, err := store.Runs(c.Request.Context(), q.Limit)
		if err != nil {
			respondError(c, err)
			return
		}
		if runs == nil {
			runs = []models.TrackingRun{}
		}
		c.JSON(http.StatusOK, models.RunsResponse{Success: true, Runs: runs})
	}
}

// Track returns a handler for POST /api/v1/track.
//
// The request is validated synchronously and the run is started in the
// background under base, which outlives the HTTP request. Only one run
// executes at a time; the slot is claimed before the response, so of two
// concurrent requests exactly one gets 202 and the other 409.
func Track(base context.Context, runner Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse & validate ─────────────────────────────────────
		var req models.TrackRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			abort(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
			return
		}
		if req.ClientID != "" && req.Keyword != "" {
			abort(c, http.StatusBadRequest, models.ErrCodeInvalidInput, "client_id and keyword are mutually exclusive")
			return
		}
		if req.TestMode && (req.ClientID != "" || req.Keyword != "") {
			abort(c, http.StatusBadRequest, models.ErrCodeInvalidInput, "test_mode applies to full runs only")
			return
		}
		if req.ClientID != "" {
			if _, ok := findClient(runner, req.ClientID); !ok {
				respondError(c, tracker.ErrClientNotFound)
				return
			}
		}
		if req.Keyword != "" && !tracksKeyword(runner, req.Keyword) {
			respondError(c, tracker.ErrKeywordNotConfigured)
			return
		}

		// ── 2. Claim the run slot & launch ──────────────────────────
		if _, err := runner.Start(base, req); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, models.TrackResponse{Success: true, Status: "accepted", Scope: req.Scope()})
	}
}

func tracksKeyword(runner Runner, keyword string) bool {
	for _, c := range runner.Clients() {
		for _, kw := range c.Keywords {
			if kw == keyword {
				return true
			}
		}
	}
	return false
}
