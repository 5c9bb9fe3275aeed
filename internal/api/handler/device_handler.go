package handler

import (
	"net/http"
	"strconv"

	"campus_parking/internal/service"

	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	iotService *service.IoTService
}

func NewDeviceHandler(is *service.IoTService) *DeviceHandler {
	return &DeviceHandler{iotService: is}
}

// GET /api/v1/devices/events?limit=N
func (h *DeviceHandler) GetRecentEvents(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	events, err := h.iotService.RecentEvents(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
