package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"campus_parking/internal/domain"
	"campus_parking/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepository()

	first, err := repo.Create(ctx, &domain.Reservation{LotID: "Library", Plate: "AB12 CDE", User: "sam"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	_, err = repo.Create(ctx, &domain.Reservation{LotID: "Library", Plate: "XY34 ZZZ", User: "kim"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &domain.Reservation{LotID: "Great Hall", Plate: "GH01 AAA", User: "lee"})
	require.NoError(t, err)

	lib, err := repo.FindByLotID(ctx, "Library")
	require.NoError(t, err)
	require.Len(t, lib, 2)
	assert.Equal(t, "AB12 CDE", lib[0].Plate)
	assert.Equal(t, "XY34 ZZZ", lib[1].Plate)

	none, err := repo.FindByLotID(ctx, "Engineering")
	require.NoError(t, err)
	assert.Empty(t, none)

	got, err := repo.FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, *first, *got)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReservationRepositoryConcurrentCreate(t *testing.T) {
	ctx := context.Background()
	repo := NewReservationRepository()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(ctx, &domain.Reservation{LotID: "Library", Plate: fmt.Sprintf("P%02d", i), User: "u"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := repo.FindByLotID(ctx, "Library")
	require.NoError(t, err)
	assert.Len(t, all, 50)
}

func TestDeviceEventsLogRepositoryWraps(t *testing.T) {
	ctx := context.Background()
	repo := NewDeviceEventsLogRepository(3)

	empty, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := 1; i <= 5; i++ {
		ev := &domain.DeviceEventLog{DeviceID: fmt.Sprintf("cam-%d", i)}
		require.NoError(t, repo.Create(ctx, ev))
		assert.Equal(t, int64(i), ev.ID)
	}

	recent, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "cam-5", recent[0].DeviceID)
	assert.Equal(t, "cam-3", recent[2].DeviceID)

	two, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 4}, []int64{two[0].ID, two[1].ID})
}
