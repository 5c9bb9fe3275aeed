package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"campus_parking/internal/domain"
	"campus_parking/internal/repository"

	"github.com/google/uuid"
)

type reservationRepository struct {
	mu    sync.RWMutex
	byID  map[string]domain.Reservation
	byLot map[string][]string
	now   func() time.Time
}

func NewReservationRepository() repository.ReservationRepository {
	return &reservationRepository{
		byID:  make(map[string]domain.Reservation),
		byLot: make(map[string][]string),
		now:   time.Now,
	}
}

func (r *reservationRepository) Create(ctx context.Context, res *domain.Reservation) (*domain.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("ReservationRepository.Create: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	res.ID = uuid.NewString()
	res.CreatedAt = r.now().UTC()
	r.byID[res.ID] = *res
	r.byLot[res.LotID] = append(r.byLot[res.LotID], res.ID)
	return res, nil
}

func (r *reservationRepository) FindByID(ctx context.Context, id string) (*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &res, nil
}

// FindByLotID returns the lot's reservations in creation order.
func (r *reservationRepository) FindByLotID(ctx context.Context, lotID string) ([]domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byLot[lotID]
	out := make([]domain.Reservation, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byID[id])
	}
	return out, nil
}
