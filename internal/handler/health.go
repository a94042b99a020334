// Package handler holds the HTTP surface shared across feature
// handlers.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raktaseva/blood-api/internal/service/request"
)

// HealthHandler answers liveness and readiness probes. Readiness
// reflects the database, not the fallback store: the API serves traffic
// in fallback mode but should be pulled from "ready" pools so operators
// notice.
type HealthHandler struct {
	db  *sqlx.DB
	svc *request.Service
}

func NewHealthHandler(db *sqlx.DB, svc *request.Service) *HealthHandler {
	return &HealthHandler{db: db, svc: svc}
}

func (h *HealthHandler) RegisterRoutes(r *gin.RouterGroup) {
	health := r.Group("/health")
	{
		health.GET("/live", h.Liveness)
		health.GET("/ready", h.Readiness)
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Readiness(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"mode":   h.svc.Mode().String(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"mode":   h.svc.Mode().String(),
	})
}
