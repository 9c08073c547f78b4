package api

import (
	"net/http"

	"taskreward_bot/internal/service"
	"taskreward_bot/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type statsRoutes struct {
	admin *service.AdminService
}

func NewStatsRoutes(handler *gin.RouterGroup, admin *service.AdminService) {
	r := &statsRoutes{admin: admin}
	{
		handler.GET("/stats", r.GetStats)
		handler.GET("/healthz", r.Healthz)
	}
}

type StatsResponse struct {
	Accounts     int `json:"accounts"`
	QueueDepth   int `json:"queue_depth"`
	PendingTasks int `json:"pending_tasks"`
	Proofs       int `json:"proofs"`
}

func (r *statsRoutes) GetStats(c *gin.Context) {
	log := logger.Logger()

	stats, err := r.admin.Stats(c.Request.Context())
	if err != nil {
		log.Error("failed to collect stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, StatsResponse{
		Accounts:     stats.Accounts,
		QueueDepth:   stats.QueueDepth,
		PendingTasks: stats.PendingTasks,
		Proofs:       stats.Proofs,
	})
}

func (r *statsRoutes) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
