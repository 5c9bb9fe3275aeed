package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClassifyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "parking_classify_duration_seconds",
			Help:    "Time spent classifying one frame",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"backend", "outcome"},
	)

	LedgerUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_ledger_updates_total",
			Help: "Ledger mutations by lot and source",
		},
		[]string{"lot", "source"},
	)

	RejectedUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_rejected_updates_total",
			Help: "Estimates and overrides rejected before reaching the ledger",
		},
		[]string{"reason"},
	)

	Occupied = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "parking_lot_occupied",
			Help: "Current occupied spaces per lot",
		},
		[]string{"lot"},
	)

	TickFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_tick_failures_total",
			Help: "Per-lot failures during a polling tick",
		},
		[]string{"lot"},
	)

	SensorMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parking_sensor_messages_total",
			Help: "Queue messages processed by outcome",
		},
		[]string{"outcome"},
	)
)
