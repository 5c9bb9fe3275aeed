package handler

import (
	"net/http"
	"strconv"
	"time"

	"campus_parking/internal/api/middleware"
	"campus_parking/internal/domain"
	"campus_parking/internal/framesource"
	"campus_parking/internal/service"

	"github.com/gin-gonic/gin"
)

type ParkingLotHandler struct {
	occupancy *service.OccupancyService
}

func NewParkingLotHandler(occ *service.OccupancyService) *ParkingLotHandler {
	return &ParkingLotHandler{occupancy: occ}
}

// GET /api/v1/lots
func (h *ParkingLotHandler) GetAllLots(c *gin.Context) {
	c.JSON(http.StatusOK, h.occupancy.StatusAll(c.Request.Context()))
}

// GET /api/v1/lots/:id
func (h *ParkingLotHandler) GetLot(c *gin.Context) {
	status, err := h.occupancy.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GET /api/v1/lots/:id/directions
func (h *ParkingLotHandler) GetDirections(c *gin.Context) {
	url, err := h.occupancy.DirectionsURL(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// GET /api/v1/map
func (h *ParkingLotHandler) GetCampusMap(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"url": h.occupancy.StaticMapURL(c.Request.Context())})
}

// PUT /api/v1/lots/:id/occupancy
func (h *ParkingLotHandler) OverrideOccupancy(c *gin.Context) {
	var dto domain.OverrideDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actor := c.GetString(middleware.SubjectKey)
	state, err := h.occupancy.Override(c.Request.Context(), c.Param("id"), *dto.Occupied, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// POST /api/v1/lots/:id/tick?offset=N
// Without an offset the frame is picked from the wall clock, as the poller does.
func (h *ParkingLotHandler) Tick(c *gin.Context) {
	offset := framesource.OffsetAt(time.Now())
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
			return
		}
		offset = n
	}

	result, err := h.occupancy.TickLot(c.Request.Context(), c.Param("id"), offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
