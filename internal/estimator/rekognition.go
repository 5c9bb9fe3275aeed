package estimator

import (
	"context"
	"fmt"
	"strings"

	"campus_parking/internal/domain"
	"campus_parking/internal/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// LabelDetector is the subset of the Rekognition client used here; *rekognition.Client
// satisfies it.
type LabelDetector interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

type RekognitionConfig struct {
	MinConfidence     float32
	OccupiedInstances int
	MaxLabels         int32
}

var vehicleLabels = map[string]bool{
	"car":        true,
	"vehicle":    true,
	"truck":      true,
	"van":        true,
	"bus":        true,
	"motorcycle": true,
	"suv":        true,
}

// RekognitionClassifier asks AWS Rekognition for object labels in the frame and reads the
// frame as occupied when enough vehicle instances are found.
type RekognitionClassifier struct {
	client LabelDetector
	cfg    RekognitionConfig
}

func NewRekognitionClassifier(client LabelDetector, cfg RekognitionConfig) *RekognitionClassifier {
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 80
	}
	if cfg.OccupiedInstances <= 0 {
		cfg.OccupiedInstances = 1
	}
	if cfg.MaxLabels <= 0 {
		cfg.MaxLabels = 25
	}
	return &RekognitionClassifier{client: client, cfg: cfg}
}

func (c *RekognitionClassifier) Name() string { return BackendRekognition }

func (c *RekognitionClassifier) Classify(ctx context.Context, frame domain.Frame) (bool, error) {
	if _, _, err := CheckHeader(frame); err != nil {
		return false, err
	}

	result, err := c.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &types.Image{Bytes: frame.Data},
		MaxLabels:     aws.Int32(c.cfg.MaxLabels),
		MinConfidence: aws.Float32(c.cfg.MinConfidence),
	})
	if err != nil {
		return false, fmt.Errorf("rekognition DetectLabels: %w", err)
	}

	vehicles := c.countVehicles(result.Labels)
	logging.Debugf(ctx, "RekognitionClassifier: lot %q has %d vehicle instance(s) in %d label(s)",
		frame.LotID, vehicles, len(result.Labels))

	return vehicles < c.cfg.OccupiedInstances, nil
}

// countVehicles sums confident vehicle instances. Labels such as "Vehicle" often come
// without bounding boxes alongside an instance-bearing "Car"; they only count as one
// vehicle when no instance was found at all.
func (c *RekognitionClassifier) countVehicles(labels []types.Label) int {
	instances := 0
	labelled := false
	for _, label := range labels {
		if label.Name == nil || !vehicleLabels[strings.ToLower(*label.Name)] {
			continue
		}
		if label.Confidence != nil && *label.Confidence >= c.cfg.MinConfidence {
			labelled = true
		}
		for _, inst := range label.Instances {
			if inst.Confidence != nil && *inst.Confidence >= c.cfg.MinConfidence {
				instances++
			}
		}
	}
	if instances == 0 && labelled {
		return 1
	}
	return instances
}
