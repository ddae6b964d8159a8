package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saravananbs/genchargephase2/internal/api"
	"github.com/saravananbs/genchargephase2/internal/auth"
	"github.com/saravananbs/genchargephase2/internal/notify"
)

// @Summary      Liveness probe
// @Description  Returns 200 while the database is reachable, 503 otherwise.
// @Tags         system
// @Produce      json
// @Success      200 {object} api.HealthResponse
// @Failure      503 {object} api.HealthResponse
// @Router       /health [get]
func Health(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, api.HealthResponse{Status: "degraded"})
			return
		}
		c.JSON(http.StatusOK, api.HealthResponse{Status: "ok"})
	}
}

// @Summary      Queue a test notification
// @Description  Pushes a throwaway event through the notification queue to verify delivery.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        email query string true "Recipient email"
// @Success      200 {object} api.MessageResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /admin/notifications/test [post]
func TestNotification(queue notify.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Query("email")
		if email == "" {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "email parameter required"})
			return
		}

		userID, _ := auth.GetUserID(c)
		err := queue.Enqueue(c.Request.Context(), notify.Event{
			Type:   notify.EventTransactionSuccess,
			UserID: userID,
			Email:  email,
			Name:   "Test User",
			Detail: "Notification pipeline is working",
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: err.Error()})
			return
		}

		c.JSON(http.StatusOK, api.MessageResponse{Message: "Notification queued successfully"})
	}
}

// @Summary      Prometheus metrics
// @Description  Exposes Prometheus metrics in text format
// @Tags         system
// @Produce      text/plain
// @Success      200 {string} string
// @Router       /metrics [get]
func Metrics() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
