package api

import (
	"time"

	"github.com/satriahrh/fixit/server/domain/entities"
)

// TroubleshootRequest is accepted as JSON or as a (multipart) form
type TroubleshootRequest struct {
	ImageBase64 string `json:"image_base64" form:"image_base64"`
	Query       string `json:"query" form:"query"`
	DeviceHint  string `json:"device_hint" form:"device_hint"`
	ImageWidth  int    `json:"image_width" form:"image_width"`
	ImageHeight int    `json:"image_height" form:"image_height"`
	RequestID   string `json:"request_id" form:"request_id"`
}

// ImageRequest is the payload of the standalone validation and identification calls
type ImageRequest struct {
	ImageBase64 string `json:"image_base64" form:"image_base64"`
	Query       string `json:"query" form:"query"`
}

// IdentifyDeviceResponse is the detected device, flagged successful
type IdentifyDeviceResponse struct {
	Success bool `json:"success"`
	entities.DeviceProfile
}

// IdentifyRejectedResponse is returned when the image does not show a device
type IdentifyRejectedResponse struct {
	Success    bool    `json:"success"`
	Reason     *string `json:"reason"`
	Suggestion *string `json:"suggestion"`
}

// ResetQuotaResponse reports the gateway state after a breaker reset
type ResetQuotaResponse struct {
	Message string               `json:"message"`
	Status  entities.QuotaStatus `json:"status"`
}

// AdminTokenResponse represents the response payload for admin authentication
type AdminTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse is served on /health
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Pipeline string `json:"pipeline"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
