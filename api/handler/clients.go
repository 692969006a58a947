package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/rankwatch/models"
)

// Clients returns a handler for GET /api/v1/clients.
func Clients(runner Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		clients := runner.Clients()
		out := make([]models.ClientInfo, len(clients))
		for i, cl := range clients {
			out[i] = models.ClientInfo{
				ID:       cl.ID,
				Name:     cl.Name,
				Domain:   cl.Domain,
				Keywords: cl.Keywords,
			}
		}
		c.JSON(http.StatusOK, models.ClientsResponse{Success: true, Clients: out})
	}
}

// RequireClient aborts with 404 unless :id names a configured client.
func RequireClient(runner Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := findClient(runner, c.Param("id")); !ok {
			abort(c, http.StatusNotFound, models.ErrCodeNotFound, "unknown client: "+c.Param("id"))
			return
		}
		c.Next()
	}
}

// Rankings returns a handler for GET /api/v1/clients/:id/rankings.
func Rankings(store Reader) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		rankings, err := store.CurrentRankings(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		if rankings == nil {
			rankings = []models.RankingRecord{}
		}
		c.JSON(http.StatusOK, models.RankingsResponse{Success: true, ClientID: id, Rankings: rankings})
	}
}

// Stats returns a handler for GET /api/v1/clients/:id/stats.
func Stats(store Reader) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		stats, err := store.Stats(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.StatsResponse{Success: true, ClientID: id, Stats: stats})
	}
}

// History returns a handler for GET /api/v1/clients/:id/history.
func History(store Reader) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q models.HistoryQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			abort(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
			return
		}
		q.Defaults()

		id := c.Param("id")
		points, err := store.History(c.Request.Context(), id, q.Keyword, q.Days)
		if err != nil {
			respondError(c, err)
			return
		}
		if points == nil {
			points = []models.HistoryPoint{}
		}
		c.JSON(http.StatusOK, models.HistoryResponse{
			Success:  true,
			ClientID: id,
			Keyword:  q.Keyword,
			Days:     q.Days,
			History:  points,
		})
	}
}
