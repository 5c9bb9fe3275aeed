package handler

import (
	"net/http"

	"campus_parking/internal/domain"
	"campus_parking/internal/service"

	"github.com/gin-gonic/gin"
)

type ReservationHandler struct {
	occupancy *service.OccupancyService
}

func NewReservationHandler(occ *service.OccupancyService) *ReservationHandler {
	return &ReservationHandler{occupancy: occ}
}

// POST /api/v1/lots/:id/reservations
func (h *ReservationHandler) CreateReservation(c *gin.Context) {
	var dto domain.ReservationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.occupancy.Reserve(c.Request.Context(), c.Param("id"), dto)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// GET /api/v1/lots/:id/reservations
func (h *ReservationHandler) GetReservations(c *gin.Context) {
	list, err := h.occupancy.Reservations(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
