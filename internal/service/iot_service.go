package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"campus_parking/internal/domain"
	"campus_parking/internal/logging"
	"campus_parking/internal/repository"
	"campus_parking/internal/telemetry"
)

var ErrMalformedEvent = errors.New("malformed device event")

// SensorSignalApplier is the part of OccupancyService the IoT path needs.
type SensorSignalApplier interface {
	ApplySensorSignal(ctx context.Context, lotID string, vacant bool) (domain.OccupancyState, error)
}

// IoTService routes device messages taken off the event queue.
type IoTService struct {
	occupancy    SensorSignalApplier
	eventLogRepo repository.DeviceEventsLogRepository
	now          func() time.Time
}

func NewIoTService(occupancy SensorSignalApplier, eventLogRepo repository.DeviceEventsLogRepository) *IoTService {
	return &IoTService{
		occupancy:    occupancy,
		eventLogRepo: eventLogRepo,
		now:          time.Now,
	}
}

// HandleDeviceEvent processes one queue message body. A nil return means the message can be
// acknowledged; unknown message types are logged and acknowledged.
func (s *IoTService) HandleDeviceEvent(ctx context.Context, body string) error {
	logEntry := &domain.DeviceEventLog{
		ReceivedAt: s.now().UTC(),
		Payload:    payloadOf(body),
	}

	var generic domain.GenericIoTEvent
	if err := json.Unmarshal([]byte(body), &generic); err != nil {
		err = fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		s.record(ctx, logEntry, domain.EventStatusError, err.Error())
		telemetry.SensorMessages.WithLabelValues("malformed").Inc()
		return err
	}
	generic.RawPayload = json.RawMessage(body)
	logEntry.DeviceID = generic.DeviceID
	logEntry.MessageType = generic.MessageType

	var err error
	switch generic.MessageType {
	case domain.MessageTypeVacancySignal:
		var event domain.VacancySignalEvent
		if uerr := json.Unmarshal(generic.RawPayload, &event); uerr != nil {
			err = fmt.Errorf("%w: vacancy_signal: %v", ErrMalformedEvent, uerr)
			break
		}
		event.GenericIoTEvent = generic
		err = s.handleVacancySignal(ctx, event)
	default:
		logging.Infof(ctx, "IoTService: ignoring message type %q from device %q", generic.MessageType, generic.DeviceID)
		s.record(ctx, logEntry, domain.EventStatusIgnored, "unhandled message type")
		telemetry.SensorMessages.WithLabelValues("ignored").Inc()
		return nil
	}

	if err != nil {
		logging.Errorf(ctx, "IoTService: failed to process %q from device %q: %v", generic.MessageType, generic.DeviceID, err)
		s.record(ctx, logEntry, domain.EventStatusError, err.Error())
		telemetry.SensorMessages.WithLabelValues("error").Inc()
		return err
	}
	s.record(ctx, logEntry, domain.EventStatusProcessed, "")
	telemetry.SensorMessages.WithLabelValues("processed").Inc()
	return nil
}

func (s *IoTService) handleVacancySignal(ctx context.Context, event domain.VacancySignalEvent) error {
	if event.LotID == "" || event.Vacant == nil {
		return fmt.Errorf("%w: vacancy_signal needs lot_id and vacant", ErrMalformedEvent)
	}
	state, err := s.occupancy.ApplySensorSignal(ctx, event.LotID, *event.Vacant)
	if err != nil {
		return err
	}
	logging.Infof(ctx, "IoTService: device %q reported lot %q vacant=%t, occupied now %d/%d",
		event.DeviceID, event.LotID, *event.Vacant, state.Occupied, state.Capacity)
	return nil
}

// payloadOf keeps a JSON body as-is and stores anything else as a JSON string, so the
// event log always marshals.
func payloadOf(body string) json.RawMessage {
	if json.Valid([]byte(body)) {
		return json.RawMessage(body)
	}
	quoted, err := json.Marshal(body)
	if err != nil {
		return nil
	}
	return quoted
}

func (s *IoTService) record(ctx context.Context, entry *domain.DeviceEventLog, status, notes string) {
	if s.eventLogRepo == nil {
		return
	}
	entry.ProcessedStatus = status
	entry.ProcessingNotes = notes
	if err := s.eventLogRepo.Create(ctx, entry); err != nil {
		logging.Warnf(ctx, "IoTService: could not record device event: %v", err)
	}
}

// RecentEvents lists the latest handled device messages, newest first.
func (s *IoTService) RecentEvents(ctx context.Context, limit int) ([]domain.DeviceEventLog, error) {
	if s.eventLogRepo == nil {
		return nil, nil
	}
	return s.eventLogRepo.Recent(ctx, limit)
}
