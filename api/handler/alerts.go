package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rankwatch/models"
)

// Alerts returns a handler for GET /api/v1/alerts.
func Alerts(store Reader) gin.HandlerFunc {
	return func(c *gin.Context) {
		alerts, err := store.OutstandingAlerts(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if alerts == nil {
			alerts = []models.AlertRecord{}
		}
		c.JSON(http.StatusOK, models.AlertsResponse{Success: true, Alerts: alerts})
	}
}

// Acknowledge returns a handler for POST /api/v1/alerts/ack.
func Acknowledge(store Reader) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := store.AcknowledgeAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		slog.Info("alerts acknowledged", "count", n)
		c.JSON(http.StatusOK, models.AcknowledgeResponse{Success: true, Acknowledged: n})
	}
}
