package memory

import (
	"context"
	"sync"

	"campus_parking/internal/domain"
	"campus_parking/internal/repository"
)

// DefaultEventLogSize bounds the in-memory device event log.
const DefaultEventLogSize = 512

// deviceEventsLogRepository is a fixed-size ring; the oldest entry is dropped when full.
type deviceEventsLogRepository struct {
	mu     sync.Mutex
	events []domain.DeviceEventLog
	next   int
	full   bool
	lastID int64
}

func NewDeviceEventsLogRepository(size int) repository.DeviceEventsLogRepository {
	if size <= 0 {
		size = DefaultEventLogSize
	}
	return &deviceEventsLogRepository{events: make([]domain.DeviceEventLog, size)}
}

func (r *deviceEventsLogRepository) Create(ctx context.Context, event *domain.DeviceEventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	event.ID = r.lastID
	r.events[r.next] = *event
	r.next = (r.next + 1) % len(r.events)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

func (r *deviceEventsLogRepository) Recent(ctx context.Context, limit int) ([]domain.DeviceEventLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := r.next
	if r.full {
		count = len(r.events)
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	out := make([]domain.DeviceEventLog, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.events)) % len(r.events)
		out = append(out, r.events[idx])
	}
	return out, nil
}
