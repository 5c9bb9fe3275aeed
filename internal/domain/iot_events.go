package domain

import (
	"encoding/json"
	"time"
)

const MessageTypeVacancySignal = "vacancy_signal"

// GenericIoTEvent is decoded first to route on message_type.
type GenericIoTEvent struct {
	DeviceID    string          `json:"device_id"`
	MessageType string          `json:"message_type"`
	Timestamp   string          `json:"timestamp"` // ISO 8601 UTC
	RawPayload  json.RawMessage `json:"-"`
}

// VacancySignalEvent is sent by edge devices that classify a lot locally.
type VacancySignalEvent struct {
	GenericIoTEvent
	LotID  string `json:"lot_id"`
	Vacant *bool  `json:"vacant"`
}

// SignboardPayload is published to the lot's IoT topic after every ledger change.
type SignboardPayload struct {
	LotID     string      `json:"lot_id"`
	Occupied  int         `json:"occupied"`
	Capacity  int         `json:"capacity"`
	Available int         `json:"available"`
	Marker    MarkerColor `json:"marker"`
	UpdatedAt time.Time   `json:"updated_at"`
}

const (
	EventStatusProcessed = "processed"
	EventStatusIgnored   = "ignored"
	EventStatusError     = "error"
)

// DeviceEventLog records each queue message the consumer handled.
type DeviceEventLog struct {
	ID              int64           `json:"id"`
	ReceivedAt      time.Time       `json:"received_at"`
	DeviceID        string          `json:"device_id"`
	MessageType     string          `json:"message_type"`
	Payload         json.RawMessage `json:"payload"`
	ProcessedStatus string          `json:"processed_status"`
	ProcessingNotes string          `json:"processing_notes,omitempty"`
}
