package estimator

import (
	"context"
	"errors"
	"time"

	"campus_parking/internal/domain"
	"campus_parking/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("campus-parking-estimator")

// InstrumentedClassifier wraps a backend with a span and a latency histogram per outcome.
type InstrumentedClassifier struct {
	Classifier
}

func Instrument(c Classifier) *InstrumentedClassifier {
	return &InstrumentedClassifier{Classifier: c}
}

func (ic *InstrumentedClassifier) Classify(ctx context.Context, frame domain.Frame) (bool, error) {
	ctx, span := tracer.Start(ctx, "estimator.classify",
		trace.WithAttributes(
			attribute.String("parking.lot_id", frame.LotID),
			attribute.String("estimator.backend", ic.Name()),
			attribute.Int("frame.bytes", len(frame.Data)),
		))
	defer span.End()

	start := time.Now()
	vacant, err := ic.Classifier.Classify(ctx, frame)
	elapsed := time.Since(start).Seconds()

	outcome := "occupied"
	switch {
	case errors.Is(err, ErrInvalidFrame):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	case vacant:
		outcome = "vacant"
	}
	telemetry.ClassifyDuration.WithLabelValues(ic.Name(), outcome).Observe(elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}
	span.SetAttributes(attribute.Bool("estimator.vacant", vacant))
	return vacant, nil
}
