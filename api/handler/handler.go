// Package handler implements the reporting API endpoints.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rankwatch/config"
	"github.com/use-agent/rankwatch/models"
	"github.com/use-agent/rankwatch/tracker"
)

// Reader is the read side of the ranking store.
type Reader interface {
	CurrentRankings(ctx context.Context, clientID string) ([]models.RankingRecord, error)
	Stats(ctx context.Context, clientID string) (*models.ClientStats, error)
	History(ctx context.Context, clientID, keyword string, days int) ([]models.HistoryPoint, error)
	OutstandingAlerts(ctx context.Context) ([]models.AlertRecord, error)
	AcknowledgeAll(ctx context.Context) (int64, error)
	Runs(ctx context.Context, limit int) ([]models.TrackingRun, error)
	Ping(ctx context.Context) error
}

// Runner starts tracking runs.
type Runner interface {
	Clients() []config.Client
	Running() bool
	Start(ctx context.Context, req models.TrackRequest) (<-chan tracker.Outcome, error)
}

func findClient(r Runner, id string) (config.Client, bool) {
	for _, c := range r.Clients() {
		if c.ID == id {
			return c, true
		}
	}
	return config.Client{}, false
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: code, Message: msg},
	})
}

// respondError maps an internal error to a status code and error body.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tracker.ErrRunInProgress):
		abort(c, http.StatusConflict, models.ErrCodeConflict, err.Error())
	case errors.Is(err, tracker.ErrClientNotFound), errors.Is(err, tracker.ErrKeywordNotConfigured):
		abort(c, http.StatusNotFound, models.ErrCodeNotFound, err.Error())
	case models.IsKind(err, models.KindConfiguration):
		abort(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
	case models.IsKind(err, models.KindNetwork):
		abort(c, http.StatusBadGateway, models.ErrCodeInternal, err.Error())
	default:
		abort(c, http.StatusInternalServerError, models.ErrCodeInternal, err.Error())
	}
}
