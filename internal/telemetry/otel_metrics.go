package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTLP-exported counterparts of the prometheus collectors, for deployments that scrape
// nothing and only run a collector.
var (
	meter       metric.Meter
	metricsOnce sync.Once

	estimatesApplied metric.Int64Counter
	overridesApplied metric.Int64Counter
)

func initMetrics() {
	meter = otel.Meter("campus-parking")

	var err error

	estimatesApplied, err = meter.Int64Counter("parking.estimates.applied",
		metric.WithDescription("Vacancy signals applied to the ledger"),
		metric.WithUnit("{signal}"),
	)
	if err != nil {
		panic(err)
	}

	overridesApplied, err = meter.Int64Counter("parking.overrides.applied",
		metric.WithDescription("Operator overrides applied to the ledger"),
		metric.WithUnit("{override}"),
	)
	if err != nil {
		panic(err)
	}
}

func ensureMetrics() {
	metricsOnce.Do(initMetrics)
}

func RecordEstimate(ctx context.Context, lotID, source string, vacant bool) {
	ensureMetrics()
	estimatesApplied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("parking.lot_id", lotID),
		attribute.String("parking.source", source),
		attribute.Bool("parking.vacant", vacant),
	))
}

func RecordOverride(ctx context.Context, lotID string) {
	ensureMetrics()
	overridesApplied.Add(ctx, 1, metric.WithAttributes(
		attribute.String("parking.lot_id", lotID),
	))
}
