package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rankwatch/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// BreakerState reports the circuit breaker state of the active strategy.
type BreakerState interface {
	State() string
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when the database does not answer or the scrape breaker
// is open.
func Health(store Reader, runner Runner, strategy string, breaker BreakerState, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := models.HealthResponse{
			Status:        "healthy",
			Uptime:        time.Since(startTime).Round(time.Second).String(),
			Version:       Version,
			Strategy:      strategy,
			Database:      "ok",
			RunInProgress: runner.Running(),
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = err.Error()
		}
		if breaker != nil {
			resp.Breaker = breaker.State()
			if resp.Breaker == "open" {
				resp.Status = "degraded"
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}
