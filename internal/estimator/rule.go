package estimator

import (
	"context"
	"image"
	"image/color"
	"math"

	"campus_parking/internal/domain"
)

type RuleConfig struct {
	// DeviationThreshold is the luminance distance from the frame mean, in [0,1], above
	// which a pixel counts as textured.
	DeviationThreshold float64
	// VacantBelow is the textured-pixel fraction under which the frame reads as vacant.
	VacantBelow float64
	// MaxSamples bounds the pixels inspected per frame; larger frames are strided.
	MaxSamples int
}

func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		DeviationThreshold: 0.18,
		VacantBelow:        0.12,
		MaxSamples:         64 * 1024,
	}
}

// RuleClassifier is a fixed-rule placeholder backend. Empty tarmac is close to uniform
// under a fixed camera; vehicles add strong luminance contrast. The frame is vacant when
// the share of high-contrast pixels stays below VacantBelow.
type RuleClassifier struct {
	cfg RuleConfig
}

func NewRuleClassifier(cfg RuleConfig) *RuleClassifier {
	def := DefaultRuleConfig()
	if cfg.DeviationThreshold <= 0 {
		cfg.DeviationThreshold = def.DeviationThreshold
	}
	if cfg.VacantBelow <= 0 {
		cfg.VacantBelow = def.VacantBelow
	}
	if cfg.MaxSamples <= 0 {
		cfg.MaxSamples = def.MaxSamples
	}
	return &RuleClassifier{cfg: cfg}
}

func (c *RuleClassifier) Name() string { return BackendRule }

func (c *RuleClassifier) Classify(ctx context.Context, frame domain.Frame) (bool, error) {
	img, err := Validate(frame)
	if err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return c.TexturedFraction(img) < c.cfg.VacantBelow, nil
}

// TexturedFraction returns the share of sampled pixels whose luminance differs from the
// sampled mean by more than the deviation threshold.
func (c *RuleClassifier) TexturedFraction(img image.Image) float64 {
	lum := c.sample(img)
	if len(lum) == 0 {
		return 0
	}

	var sum float64
	for _, v := range lum {
		sum += v
	}
	mean := sum / float64(len(lum))

	textured := 0
	for _, v := range lum {
		if math.Abs(v-mean) > c.cfg.DeviationThreshold {
			textured++
		}
	}
	return float64(textured) / float64(len(lum))
}

func (c *RuleClassifier) sample(img image.Image) []float64 {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total <= 0 {
		return nil
	}
	stride := 1
	if total > c.cfg.MaxSamples {
		stride = int(math.Ceil(math.Sqrt(float64(total) / float64(c.cfg.MaxSamples))))
	}

	lum := make([]float64, 0, total/(stride*stride)+1)
	for y := b.Min.Y; y < b.Max.Y; y += stride {
		for x := b.Min.X; x < b.Max.X; x += stride {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			lum = append(lum, float64(g.Y)/255)
		}
	}
	return lum
}
