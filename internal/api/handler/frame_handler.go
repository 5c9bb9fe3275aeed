package handler

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"campus_parking/internal/domain"
	"campus_parking/internal/estimator"
	"campus_parking/internal/logging"
	"campus_parking/internal/service"

	"github.com/gin-gonic/gin"
)

type FrameHandler struct {
	occupancy *service.OccupancyService
}

func NewFrameHandler(occ *service.OccupancyService) *FrameHandler {
	return &FrameHandler{occupancy: occ}
}

// POST /api/v1/lots/:id/frames
func (h *FrameHandler) UploadFrame(c *gin.Context) {
	var req domain.FrameUploadDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	imageBytes, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		respondError(c, fmt.Errorf("%w: image_base64 is not valid base64: %v", estimator.ErrInvalidFrame, err))
		return
	}

	frame := domain.Frame{
		LotID:      c.Param("id"),
		CapturedAt: time.Now().UTC(),
		Data:       imageBytes,
	}
	if req.CapturedAt != nil {
		frame.CapturedAt = req.CapturedAt.UTC()
	}
	logging.Debugf(c.Request.Context(), "FrameHandler: %d bytes for lot %q", len(imageBytes), frame.LotID)

	result, err := h.occupancy.Estimate(c.Request.Context(), frame)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
