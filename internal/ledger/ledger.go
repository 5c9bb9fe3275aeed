// Package ledger holds the authoritative in-memory occupancy of every configured lot.
//
// The ledger is shared by the whole process. Each lot has its own mutex; operations on
// different lots never contend and no operation locks more than one lot.
package ledger

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"campus_parking/internal/domain"

	"gopkg.in/guregu/null.v4"
)

var (
	ErrUnknownLot = errors.New("unknown lot")
	ErrOutOfRange = errors.New("occupancy out of range")
)

// Observer is called after every successful mutation, outside the lot lock.
type Observer func(state domain.OccupancyState)

type entry struct {
	mu    sync.Mutex
	lot   domain.Lot
	state domain.OccupancyState
}

type Ledger struct {
	entries  map[string]*entry
	now      func() time.Time
	observer Observer
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithObserver(o Observer) Option {
	return func(l *Ledger) { l.observer = o }
}

// New creates a ledger with every lot empty. Lots must have unique IDs and positive capacity.
func New(lots []domain.Lot, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		entries: make(map[string]*entry, len(lots)),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	created := l.now()
	for _, lot := range lots {
		if lot.Capacity <= 0 {
			return nil, fmt.Errorf("ledger: lot %q has non-positive capacity %d", lot.ID, lot.Capacity)
		}
		if _, dup := l.entries[lot.ID]; dup {
			return nil, fmt.Errorf("ledger: duplicate lot %q", lot.ID)
		}
		l.entries[lot.ID] = &entry{
			lot: lot,
			state: domain.OccupancyState{
				LotID:       lot.ID,
				Capacity:    lot.Capacity,
				LastUpdated: created,
				Source:      domain.SourceSeed,
			},
		}
	}
	return l, nil
}

// SetObserver replaces the mutation observer. It must be called before the ledger is shared.
func (l *Ledger) SetObserver(o Observer) {
	l.observer = o
}

// Seed gives every lot a random starting occupancy between half and eight tenths of capacity.
func (l *Ledger) Seed(rng *rand.Rand) {
	for _, e := range l.entries {
		low := e.lot.Capacity * 5 / 10
		high := e.lot.Capacity * 8 / 10

		e.mu.Lock()
		e.state.Occupied = low + rng.IntN(high-low+1)
		e.state.LastUpdated = l.now()
		e.state.Source = domain.SourceSeed
		e.mu.Unlock()
	}
}

func (l *Ledger) lookup(lotID string) (*entry, error) {
	e, ok := l.entries[lotID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLot, lotID)
	}
	return e, nil
}

// ApplyEstimate moves occupancy one space towards the signal: down when vacant, up otherwise,
// saturating at 0 and capacity. LastUpdated is refreshed even when the value saturates.
func (l *Ledger) ApplyEstimate(lotID string, vacant bool, source domain.UpdateSource) (domain.OccupancyState, error) {
	e, err := l.lookup(lotID)
	if err != nil {
		return domain.OccupancyState{}, err
	}

	e.mu.Lock()
	if vacant {
		if e.state.Occupied > 0 {
			e.state.Occupied--
		}
	} else if e.state.Occupied < e.lot.Capacity {
		e.state.Occupied++
	}
	e.state.LastUpdated = l.now()
	e.state.Source = source
	snapshot := e.state
	e.mu.Unlock()

	l.notify(snapshot)
	return snapshot, nil
}

// ApplyOverride sets occupancy to value. Values outside [0, capacity] are rejected and leave
// the state untouched.
func (l *Ledger) ApplyOverride(lotID string, value int) (domain.OccupancyState, error) {
	e, err := l.lookup(lotID)
	if err != nil {
		return domain.OccupancyState{}, err
	}
	if value < 0 || value > e.lot.Capacity {
		return domain.OccupancyState{}, fmt.Errorf("%w: %d not in [0, %d] for lot %q",
			ErrOutOfRange, value, e.lot.Capacity, lotID)
	}

	e.mu.Lock()
	now := l.now()
	e.state.Occupied = value
	e.state.LastUpdated = now
	e.state.LastOverrideAt = null.TimeFrom(now)
	e.state.Source = domain.SourceOverride
	snapshot := e.state
	e.mu.Unlock()

	l.notify(snapshot)
	return snapshot, nil
}

func (l *Ledger) Available(lotID string) (int, error) {
	state, err := l.State(lotID)
	if err != nil {
		return 0, err
	}
	return state.Available(), nil
}

func (l *Ledger) State(lotID string) (domain.OccupancyState, error) {
	e, err := l.lookup(lotID)
	if err != nil {
		return domain.OccupancyState{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, nil
}

func (l *Ledger) Lot(lotID string) (domain.Lot, error) {
	e, err := l.lookup(lotID)
	if err != nil {
		return domain.Lot{}, err
	}
	return e.lot, nil
}

// Lots returns the configured lots ordered by ID.
func (l *Ledger) Lots() []domain.Lot {
	lots := make([]domain.Lot, 0, len(l.entries))
	for _, e := range l.entries {
		lots = append(lots, e.lot)
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].ID < lots[j].ID })
	return lots
}

// Snapshot returns the state of every lot ordered by lot ID. Lots are read one at a time,
// so the result is not a single atomic cut across lots.
func (l *Ledger) Snapshot() []domain.OccupancyState {
	states := make([]domain.OccupancyState, 0, len(l.entries))
	for _, e := range l.entries {
		e.mu.Lock()
		states = append(states, e.state)
		e.mu.Unlock()
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].LotID < states[j].LotID
	})
	return states
}

func (l *Ledger) notify(state domain.OccupancyState) {
	if l.observer != nil {
		l.observer(state)
	}
}
