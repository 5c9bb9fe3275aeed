package domain

import "time"

// Frame is one encoded camera image of a lot. It is only held for a single classification.
type Frame struct {
	LotID      string
	CapturedAt time.Time
	Data       []byte
}

// FrameUploadDTO carries a base64 encoded frame uploaded by a camera client.
type FrameUploadDTO struct {
	ImageBase64 string     `json:"image_base64" binding:"required"`
	CapturedAt  *time.Time `json:"captured_at,omitempty"`
}
