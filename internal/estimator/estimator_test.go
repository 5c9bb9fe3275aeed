package estimator

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"campus_parking/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uniformFrame(t *testing.T, w, h int) domain.Frame {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 90
	}
	return domain.Frame{LotID: "Great Hall", Data: encodePNG(t, img)}
}

func checkerFrame(t *testing.T, w, h int) domain.Frame {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/4+y/4)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 250})
			} else {
				img.SetGray(x, y, color.Gray{Y: 10})
			}
		}
	}
	return domain.Frame{LotID: "Great Hall", Data: encodePNG(t, img)}
}

func TestValidate(t *testing.T) {
	_, err := Validate(uniformFrame(t, 64, 48))
	require.NoError(t, err)

	cases := map[string]domain.Frame{
		"empty data":    {LotID: "Great Hall"},
		"missing lot":   {Data: uniformFrame(t, 64, 64).Data},
		"not an image":  {LotID: "Great Hall", Data: []byte("definitely not a png")},
		"too small":     uniformFrame(t, 8, 64),
		"truncated png": {LotID: "Great Hall", Data: uniformFrame(t, 64, 64).Data[:40]},
	}
	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Validate(frame)
			assert.ErrorIs(t, err, ErrInvalidFrame)
		})
	}
}

func TestCheckHeaderReadsOnlyTheHeader(t *testing.T) {
	cfg, format, err := CheckHeader(uniformFrame(t, 64, 48))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 64, cfg.Width)
	assert.Equal(t, 48, cfg.Height)

	// The IHDR chunk fits in the first 40 bytes; the pixel data does not.
	truncated := domain.Frame{LotID: "Great Hall", Data: uniformFrame(t, 64, 64).Data[:40]}
	_, _, err = CheckHeader(truncated)
	require.NoError(t, err)
	_, err = Validate(truncated)
	assert.ErrorIs(t, err, ErrInvalidFrame)

	for name, frame := range map[string]domain.Frame{
		"empty data":   {LotID: "Great Hall"},
		"missing lot":  {Data: uniformFrame(t, 64, 64).Data},
		"not an image": {LotID: "Great Hall", Data: []byte("definitely not a png")},
		"too small":    uniformFrame(t, 64, 8),
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := CheckHeader(frame)
			assert.ErrorIs(t, err, ErrInvalidFrame)
		})
	}
}

func TestRuleClassifier(t *testing.T) {
	c := NewRuleClassifier(RuleConfig{})
	ctx := context.Background()

	vacant, err := c.Classify(ctx, uniformFrame(t, 64, 64))
	require.NoError(t, err)
	assert.True(t, vacant, "uniform tarmac reads as vacant")

	vacant, err = c.Classify(ctx, checkerFrame(t, 64, 64))
	require.NoError(t, err)
	assert.False(t, vacant, "high contrast reads as occupied")
}

func TestRuleClassifierRejectsInvalidFrameWithoutDefaulting(t *testing.T) {
	c := NewRuleClassifier(DefaultRuleConfig())
	vacant, err := c.Classify(context.Background(), domain.Frame{LotID: "Great Hall", Data: []byte{1, 2, 3}})
	assert.ErrorIs(t, err, ErrInvalidFrame)
	assert.False(t, vacant)
}

func TestRuleClassifierStridesLargeFrames(t *testing.T) {
	c := NewRuleClassifier(RuleConfig{MaxSamples: 100})
	img := image.NewGray(image.Rect(0, 0, 200, 200))
	assert.Equal(t, 0.0, c.TexturedFraction(img))
	assert.LessOrEqual(t, len(c.sample(img)), 200)
}

func TestRuleClassifierHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRuleClassifier(RuleConfig{}).Classify(ctx, uniformFrame(t, 64, 64))
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeDetector struct {
	out   *rekognition.DetectLabelsOutput
	err   error
	calls int
	last  *rekognition.DetectLabelsInput
}

func (f *fakeDetector) DetectLabels(_ context.Context, in *rekognition.DetectLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
	f.calls++
	f.last = in
	return f.out, f.err
}

func label(name string, confidence float32, instances ...float32) types.Label {
	l := types.Label{Name: aws.String(name), Confidence: aws.Float32(confidence)}
	for _, c := range instances {
		l.Instances = append(l.Instances, types.Instance{Confidence: aws.Float32(c)})
	}
	return l
}

func TestRekognitionClassifier(t *testing.T) {
	tests := []struct {
		name       string
		labels     []types.Label
		wantVacant bool
	}{
		{name: "no labels", wantVacant: true},
		{name: "only scenery", labels: []types.Label{label("Asphalt", 99), label("Road", 97)}, wantVacant: true},
		{name: "confident car", labels: []types.Label{label("Car", 95, 92)}, wantVacant: false},
		{name: "car below confidence", labels: []types.Label{label("Car", 60, 55)}, wantVacant: true},
		{name: "vehicle label without instances", labels: []types.Label{label("Vehicle", 90)}, wantVacant: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := &fakeDetector{out: &rekognition.DetectLabelsOutput{Labels: tt.labels}}
			c := NewRekognitionClassifier(det, RekognitionConfig{MinConfidence: 80})

			frame := uniformFrame(t, 64, 64)
			vacant, err := c.Classify(context.Background(), frame)
			require.NoError(t, err)
			assert.Equal(t, tt.wantVacant, vacant)
			require.Equal(t, 1, det.calls)
			assert.Equal(t, frame.Data, det.last.Image.Bytes)
		})
	}
}

func TestRekognitionClassifierErrors(t *testing.T) {
	det := &fakeDetector{err: errors.New("throttled")}
	c := NewRekognitionClassifier(det, RekognitionConfig{})

	_, err := c.Classify(context.Background(), uniformFrame(t, 64, 64))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidFrame)

	_, err = c.Classify(context.Background(), domain.Frame{LotID: "Great Hall"})
	assert.ErrorIs(t, err, ErrInvalidFrame)
	assert.Equal(t, 1, det.calls, "invalid frames never reach the API")
}

func TestNew(t *testing.T) {
	c, err := New("", Options{})
	require.NoError(t, err)
	assert.Equal(t, BackendRule, c.Name())

	_, err = New(BackendRekognition, Options{})
	assert.Error(t, err)

	c, err = New(BackendRekognition, Options{Detector: &fakeDetector{}})
	require.NoError(t, err)
	assert.Equal(t, BackendRekognition, c.Name())

	_, err = New("vgg16", Options{})
	assert.Error(t, err)
}

func TestInstrumentedClassifierPassesThrough(t *testing.T) {
	c := Instrument(NewRuleClassifier(RuleConfig{}))
	vacant, err := c.Classify(context.Background(), uniformFrame(t, 64, 64))
	require.NoError(t, err)
	assert.True(t, vacant)

	_, err = c.Classify(context.Background(), domain.Frame{LotID: "x"})
	assert.ErrorIs(t, err, ErrInvalidFrame)
}
