package domain

import (
	"time"

	"gopkg.in/guregu/null.v4"
)

type UpdateSource string

const (
	SourceSeed      UpdateSource = "seed"
	SourceEstimator UpdateSource = "estimator"
	SourceSensor    UpdateSource = "sensor"
	SourceOverride  UpdateSource = "override"
)

// OccupancyState is the mutable per-lot record held by the ledger.
type OccupancyState struct {
	LotID          string       `json:"lot_id"`
	Capacity       int          `json:"capacity"`
	Occupied       int          `json:"occupied"`
	LastUpdated    time.Time    `json:"last_updated"`
	Source         UpdateSource `json:"source"`
	LastOverrideAt null.Time    `json:"last_override_at"`
}

func (s OccupancyState) Available() int {
	return s.Capacity - s.Occupied
}

type MarkerColor string

const (
	MarkerGreen  MarkerColor = "green"
	MarkerOrange MarkerColor = "orange"
	MarkerRed    MarkerColor = "red"
)

// MarkerFor maps availability to the dashboard colour: green above five free spaces,
// orange while any space is left, red when full.
func MarkerFor(available int) MarkerColor {
	switch {
	case available > 5:
		return MarkerGreen
	case available > 0:
		return MarkerOrange
	default:
		return MarkerRed
	}
}

// LotStatus is the read view returned by the API.
type LotStatus struct {
	Lot           Lot            `json:"lot"`
	State         OccupancyState `json:"state"`
	Available     int            `json:"available"`
	Marker        MarkerColor    `json:"marker"`
	DirectionsURL string         `json:"directions_url"`
}

type OverrideDTO struct {
	Occupied *int `json:"occupied" binding:"required"`
}

// EstimateResult is returned after one classification tick for a lot.
type EstimateResult struct {
	LotID  string         `json:"lot_id"`
	Vacant bool           `json:"vacant"`
	State  OccupancyState `json:"state"`
	Error  string         `json:"error,omitempty"`
}
