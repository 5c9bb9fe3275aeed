// Package estimator classifies a single camera frame of a lot as vacant or occupied.
//
// A Classifier is a pure function of its input frame: it never touches occupancy state.
// Backends are interchangeable behind the Classifier interface.
package estimator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"campus_parking/internal/domain"
)

const (
	MinDimension = 32
	MaxDimension = 4096
)

var ErrInvalidFrame = errors.New("invalid frame")

const (
	BackendRule        = "rule"
	BackendRekognition = "rekognition"
)

// Classifier maps one frame to a vacancy signal. vacant == true means a space opened
// since the previous tick; false means a space was taken.
type Classifier interface {
	Classify(ctx context.Context, frame domain.Frame) (vacant bool, err error)
	Name() string
}

// Options configure the backend built by New.
type Options struct {
	Rule        RuleConfig
	Detector    LabelDetector
	Rekognition RekognitionConfig
}

// New is a factory that builds the backend named by backend.
func New(backend string, opts Options) (Classifier, error) {
	switch backend {
	case BackendRule, "":
		return NewRuleClassifier(opts.Rule), nil
	case BackendRekognition:
		if opts.Detector == nil {
			return nil, fmt.Errorf("estimator: %s backend needs a label detector", backend)
		}
		return NewRekognitionClassifier(opts.Detector, opts.Rekognition), nil
	default:
		return nil, fmt.Errorf("estimator: unsupported backend %q", backend)
	}
}

// CheckHeader validates a frame from its image header alone, without decoding pixels.
// Every failure wraps ErrInvalidFrame.
func CheckHeader(frame domain.Frame) (image.Config, string, error) {
	if frame.LotID == "" {
		return image.Config{}, "", fmt.Errorf("%w: missing lot id", ErrInvalidFrame)
	}
	if len(frame.Data) == 0 {
		return image.Config{}, "", fmt.Errorf("%w: empty image data", ErrInvalidFrame)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(frame.Data))
	if err != nil {
		return image.Config{}, "", fmt.Errorf("%w: unreadable encoding: %v", ErrInvalidFrame, err)
	}
	if cfg.Width < MinDimension || cfg.Height < MinDimension ||
		cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return image.Config{}, "", fmt.Errorf("%w: %s frame is %dx%d, want each side in [%d, %d]",
			ErrInvalidFrame, format, cfg.Width, cfg.Height, MinDimension, MaxDimension)
	}
	return cfg, format, nil
}

// Validate runs CheckHeader and then decodes the whole image.
func Validate(frame domain.Frame) (image.Image, error) {
	_, format, err := CheckHeader(frame)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidFrame, format, err)
	}
	return img, nil
}
