package handler

import (
	"net/http"

	"campus_parking/internal/service"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	occupancy   *service.OccupancyService
	serviceName string
}

func NewHealthHandler(occ *service.OccupancyService, serviceName string) *HealthHandler {
	return &HealthHandler{occupancy: occ, serviceName: serviceName}
}

// GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"lots":    len(h.occupancy.StatusAll(c.Request.Context())),
		"service": h.serviceName,
	})
}
