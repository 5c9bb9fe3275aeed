package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"campus_parking/internal/domain"
	"campus_parking/internal/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
)

const (
	signboardQueueSize = 64
	signboardTimeout   = 5 * time.Second
)

// IoTPublisher is the subset of the IoT data plane client used here.
type IoTPublisher interface {
	Publish(ctx context.Context, params *iotdataplane.PublishInput, optFns ...func(*iotdataplane.Options)) (*iotdataplane.PublishOutput, error)
}

// SignboardService pushes lot status to the MQTT topic each entrance display subscribes to.
// Notify never blocks the caller; a single worker publishes in order.
type SignboardService struct {
	client      IoTPublisher
	topicPrefix string
	queue       chan domain.OccupancyState
}

func NewSignboardService(client IoTPublisher, topicPrefix string) *SignboardService {
	return &SignboardService{
		client:      client,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		queue:       make(chan domain.OccupancyState, signboardQueueSize),
	}
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// LotSlug turns a lot ID into a topic-safe segment: "Sports Centre" -> "sports-centre".
func LotSlug(lotID string) string {
	return strings.Trim(slugInvalid.ReplaceAllString(strings.ToLower(lotID), "-"), "-")
}

func (s *SignboardService) Topic(lotID string) string {
	return fmt.Sprintf("%s/%s/status", s.topicPrefix, LotSlug(lotID))
}

func (s *SignboardService) Notify(state domain.OccupancyState) {
	select {
	case s.queue <- state:
	default:
		logging.Warnf(context.Background(), "SignboardService: queue full, dropping update for lot %q", state.LotID)
	}
}

// Run publishes queued updates until ctx is cancelled.
func (s *SignboardService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case state := <-s.queue:
			if err := s.Publish(ctx, state); err != nil {
				logging.Errorf(ctx, "SignboardService: %v", err)
			}
		}
	}
}

func (s *SignboardService) Publish(ctx context.Context, state domain.OccupancyState) error {
	payload := domain.SignboardPayload{
		LotID:     state.LotID,
		Occupied:  state.Occupied,
		Capacity:  state.Capacity,
		Available: state.Available(),
		Marker:    domain.MarkerFor(state.Available()),
		UpdatedAt: state.LastUpdated.UTC(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal signboard payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, signboardTimeout)
	defer cancel()

	topic := s.Topic(state.LotID)
	_, err = s.client.Publish(ctx, &iotdataplane.PublishInput{
		Topic:   aws.String(topic),
		Qos:     1,
		Payload: body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	logging.Debugf(ctx, "SignboardService: published lot %q to %s", state.LotID, topic)
	return nil
}
