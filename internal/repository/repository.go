package repository

import (
	"context"
	"errors"

	"campus_parking/internal/domain"
)

var ErrNotFound = errors.New("record not found")

type ReservationRepository interface {
	Create(ctx context.Context, r *domain.Reservation) (*domain.Reservation, error)
	FindByID(ctx context.Context, id string) (*domain.Reservation, error)
	FindByLotID(ctx context.Context, lotID string) ([]domain.Reservation, error)
}

type DeviceEventsLogRepository interface {
	Create(ctx context.Context, event *domain.DeviceEventLog) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]domain.DeviceEventLog, error)
}
