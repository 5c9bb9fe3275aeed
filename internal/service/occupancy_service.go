package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"campus_parking/internal/domain"
	"campus_parking/internal/estimator"
	"campus_parking/internal/framesource"
	"campus_parking/internal/ledger"
	"campus_parking/internal/logging"
	"campus_parking/internal/repository"
	"campus_parking/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var (
	ErrNoVacancy        = errors.New("lot is full")
	ErrClassifierFailed = errors.New("classifier failed")
)

var tracer = otel.Tracer("campus-parking-service")

// WebSocketManager is implemented by the API's websocket hub; kept as an interface so the
// service does not import the api package.
type WebSocketManager interface {
	BroadcastOccupancy(n domain.OccupancyNotification)
}

// SignboardNotifier receives every ledger change for the lot's physical display.
type SignboardNotifier interface {
	Notify(state domain.OccupancyState)
}

type OccupancyOptions struct {
	// Timeout bounds one classification, rate-limit wait included.
	Timeout time.Duration
	// RatePerSec caps classifier calls; zero or negative disables the limit.
	RatePerSec float64
	// Workers bounds concurrent lots during a tick.
	Workers int
}

type OccupancyService struct {
	ledger       *ledger.Ledger
	classifier   estimator.Classifier
	frames       framesource.Source
	reservations repository.ReservationRepository
	maps         *MapProvider
	limiter      *rate.Limiter
	timeout      time.Duration
	workers      int

	mu        sync.RWMutex
	wsManager WebSocketManager
	signboard SignboardNotifier
}

func NewOccupancyService(
	l *ledger.Ledger,
	classifier estimator.Classifier,
	frames framesource.Source,
	reservations repository.ReservationRepository,
	maps *MapProvider,
	opts OccupancyOptions,
) *OccupancyService {
	limit := rate.Inf
	burst := 1
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
		burst = max(1, int(opts.RatePerSec))
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	s := &OccupancyService{
		ledger:       l,
		classifier:   classifier,
		frames:       frames,
		reservations: reservations,
		maps:         maps,
		limiter:      rate.NewLimiter(limit, burst),
		timeout:      opts.Timeout,
		workers:      opts.Workers,
	}
	l.SetObserver(s.onLedgerChange)
	return s
}

func (s *OccupancyService) SetWebSocketManager(m WebSocketManager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wsManager = m
}

func (s *OccupancyService) SetSignboard(n SignboardNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signboard = n
}

// onLedgerChange runs after every ledger mutation, outside the lot lock.
func (s *OccupancyService) onLedgerChange(state domain.OccupancyState) {
	telemetry.Occupied.WithLabelValues(state.LotID).Set(float64(state.Occupied))
	telemetry.LedgerUpdates.WithLabelValues(state.LotID, string(state.Source)).Inc()

	s.mu.RLock()
	ws, sign := s.wsManager, s.signboard
	s.mu.RUnlock()

	if ws != nil {
		ws.BroadcastOccupancy(domain.NewOccupancyNotification(state))
	}
	if sign != nil {
		sign.Notify(state)
	}
}

// Estimate classifies one frame and applies the resulting signal to the lot. An invalid
// frame or a classifier failure leaves the ledger untouched.
func (s *OccupancyService) Estimate(ctx context.Context, frame domain.Frame) (domain.EstimateResult, error) {
	ctx, span := tracer.Start(ctx, "occupancy.estimate",
		trace.WithAttributes(attribute.String("parking.lot_id", frame.LotID)))
	defer span.End()

	result, err := s.estimate(ctx, frame)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetAttributes(
		attribute.Bool("estimator.vacant", result.Vacant),
		attribute.Int("parking.occupied", result.State.Occupied),
	)
	return result, nil
}

func (s *OccupancyService) estimate(ctx context.Context, frame domain.Frame) (domain.EstimateResult, error) {
	result := domain.EstimateResult{LotID: frame.LotID}

	if _, err := s.ledger.Lot(frame.LotID); err != nil {
		telemetry.RejectedUpdates.WithLabelValues("unknown_lot").Inc()
		return result, err
	}
	if _, _, err := estimator.CheckHeader(frame); err != nil {
		telemetry.RejectedUpdates.WithLabelValues("invalid_frame").Inc()
		logging.Warnf(ctx, "OccupancyService: rejected frame for lot %q: %v", frame.LotID, err)
		return result, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(cctx); err != nil {
		telemetry.RejectedUpdates.WithLabelValues("rate_limited").Inc()
		if ctxErr := cctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("waiting for classifier slot: %w", ctxErr)
		}
		// Wait refuses up front when the reservation would outlast the deadline.
		return result, fmt.Errorf("waiting for classifier slot: %w: %v", context.DeadlineExceeded, err)
	}

	vacant, err := s.classifier.Classify(cctx, frame)
	if err != nil {
		if errors.Is(err, estimator.ErrInvalidFrame) {
			telemetry.RejectedUpdates.WithLabelValues("invalid_frame").Inc()
			return result, err
		}
		telemetry.RejectedUpdates.WithLabelValues("classifier_error").Inc()
		logging.Errorf(ctx, "OccupancyService: classifier %s failed for lot %q: %v", s.classifier.Name(), frame.LotID, err)
		return result, fmt.Errorf("%w: %w", ErrClassifierFailed, err)
	}

	state, err := s.ledger.ApplyEstimate(frame.LotID, vacant, domain.SourceEstimator)
	if err != nil {
		return result, err
	}

	telemetry.RecordEstimate(ctx, frame.LotID, string(domain.SourceEstimator), vacant)
	logging.Debugf(ctx, "OccupancyService: lot %q vacant=%t occupied=%d/%d",
		frame.LotID, vacant, state.Occupied, state.Capacity)

	result.Vacant = vacant
	result.State = state
	return result, nil
}

// Override replaces a lot's occupancy with an operator-supplied count.
func (s *OccupancyService) Override(ctx context.Context, lotID string, value int, actor string) (domain.OccupancyState, error) {
	ctx, span := tracer.Start(ctx, "occupancy.override",
		trace.WithAttributes(
			attribute.String("parking.lot_id", lotID),
			attribute.Int("parking.occupied", value),
		))
	defer span.End()

	state, err := s.ledger.ApplyOverride(lotID, value)
	if err != nil {
		if errors.Is(err, ledger.ErrOutOfRange) {
			telemetry.RejectedUpdates.WithLabelValues("out_of_range").Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state, err
	}

	telemetry.RecordOverride(ctx, lotID)
	logging.WithFields(ctx, map[string]interface{}{
		"audit":    "occupancy_override",
		"actor":    actor,
		"lot_id":   lotID,
		"occupied": state.Occupied,
		"capacity": state.Capacity,
	}).Info("OccupancyService: occupancy overridden")
	return state, nil
}

// ApplySensorSignal applies a vacancy signal reported by an edge device.
func (s *OccupancyService) ApplySensorSignal(ctx context.Context, lotID string, vacant bool) (domain.OccupancyState, error) {
	state, err := s.ledger.ApplyEstimate(lotID, vacant, domain.SourceSensor)
	if err != nil {
		telemetry.RejectedUpdates.WithLabelValues("unknown_lot").Inc()
		return state, err
	}
	telemetry.RecordEstimate(ctx, lotID, string(domain.SourceSensor), vacant)
	logging.Debugf(ctx, "OccupancyService: sensor signal for lot %q vacant=%t occupied=%d/%d",
		lotID, vacant, state.Occupied, state.Capacity)
	return state, nil
}

func (s *OccupancyService) Status(ctx context.Context, lotID string) (domain.LotStatus, error) {
	lot, err := s.ledger.Lot(lotID)
	if err != nil {
		return domain.LotStatus{}, err
	}
	state, err := s.ledger.State(lotID)
	if err != nil {
		return domain.LotStatus{}, err
	}
	return s.status(lot, state), nil
}

// StatusAll returns every lot ordered by ID.
func (s *OccupancyService) StatusAll(ctx context.Context) []domain.LotStatus {
	states := s.ledger.Snapshot()
	out := make([]domain.LotStatus, 0, len(states))
	for _, state := range states {
		lot, err := s.ledger.Lot(state.LotID)
		if err != nil {
			continue
		}
		out = append(out, s.status(lot, state))
	}
	return out
}

func (s *OccupancyService) status(lot domain.Lot, state domain.OccupancyState) domain.LotStatus {
	available := state.Available()
	return domain.LotStatus{
		Lot:           lot,
		State:         state,
		Available:     available,
		Marker:        domain.MarkerFor(available),
		DirectionsURL: s.maps.DirectionsURL(lot.Coordinate),
	}
}

func (s *OccupancyService) DirectionsURL(ctx context.Context, lotID string) (string, error) {
	lot, err := s.ledger.Lot(lotID)
	if err != nil {
		return "", err
	}
	return s.maps.DirectionsURL(lot.Coordinate), nil
}

func (s *OccupancyService) StaticMapURL(ctx context.Context) string {
	return s.maps.StaticMapURL(s.StatusAll(ctx))
}

// TickLot pulls the frame at offset for one lot and estimates from it.
func (s *OccupancyService) TickLot(ctx context.Context, lotID string, offset int) (domain.EstimateResult, error) {
	if _, err := s.ledger.Lot(lotID); err != nil {
		return domain.EstimateResult{LotID: lotID}, err
	}
	frame, err := s.frames.Frame(ctx, lotID, offset)
	if err != nil {
		return domain.EstimateResult{LotID: lotID}, err
	}
	return s.Estimate(ctx, frame)
}

// Tick estimates every lot that has a camera feed, a bounded number at a time. A failing
// lot is logged and reported in its result; it never stops the others.
func (s *OccupancyService) Tick(ctx context.Context, offset int) ([]domain.EstimateResult, error) {
	var lots []domain.Lot
	for _, lot := range s.ledger.Lots() {
		if lot.HasFeed() {
			lots = append(lots, lot)
		}
	}

	results := make([]domain.EstimateResult, len(lots))
	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, lot := range lots {
		g.Go(func() error {
			res, err := s.TickLot(ctx, lot.ID, offset)
			if err != nil {
				telemetry.TickFailures.WithLabelValues(lot.ID).Inc()
				logging.Warnf(ctx, "OccupancyService: tick failed for lot %q: %v", lot.ID, err)
				res.LotID = lot.ID
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	return results, ctx.Err()
}

// RunPoller ticks every interval until ctx is cancelled. The frame offset follows the wall
// clock through the frame cycle.
func (s *OccupancyService) RunPoller(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		logging.Infof(ctx, "OccupancyService: poller disabled")
		return
	}
	logging.Infof(ctx, "OccupancyService: poller started, interval %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Infof(ctx, "OccupancyService: poller stopped")
			return
		case now := <-ticker.C:
			results, err := s.Tick(ctx, framesource.OffsetAt(now))
			if err != nil {
				continue
			}
			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
				}
			}
			logging.Debugf(ctx, "OccupancyService: tick done, %d lot(s), %d failure(s)", len(results), failed)
		}
	}
}

// Reserve records a reservation while the lot still shows a free space. Reservations do not
// change occupancy; the space is only counted once a vehicle is observed.
func (s *OccupancyService) Reserve(ctx context.Context, lotID string, dto domain.ReservationDTO) (*domain.Reservation, error) {
	available, err := s.ledger.Available(lotID)
	if err != nil {
		return nil, err
	}
	if available <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoVacancy, lotID)
	}

	res, err := s.reservations.Create(ctx, &domain.Reservation{
		LotID: lotID,
		Plate: dto.Plate,
		User:  dto.User,
	})
	if err != nil {
		return nil, fmt.Errorf("creating reservation: %w", err)
	}
	logging.Infof(ctx, "OccupancyService: reservation %s for lot %q", res.ID, lotID)
	return res, nil
}

func (s *OccupancyService) Reservations(ctx context.Context, lotID string) ([]domain.Reservation, error) {
	if _, err := s.ledger.Lot(lotID); err != nil {
		return nil, err
	}
	return s.reservations.FindByLotID(ctx, lotID)
}
