package handler

import (
	"context"
	"errors"
	"net/http"

	"campus_parking/internal/estimator"
	"campus_parking/internal/framesource"
	"campus_parking/internal/ledger"
	"campus_parking/internal/logging"
	"campus_parking/internal/repository"
	"campus_parking/internal/service"

	"github.com/gin-gonic/gin"
)

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrUnknownLot), errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, framesource.ErrNoFrame):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrOutOfRange), errors.Is(err, estimator.ErrInvalidFrame):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrNoVacancy):
		status = http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, service.ErrClassifierFailed):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		logging.Errorf(c.Request.Context(), "API: %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
