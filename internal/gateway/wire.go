package gateway

import (
	"encoding/json"

	"toursync/internal/domain"
	"toursync/internal/models"
)

// Payloads of the keyed channels.

type IDPayload struct {
	ID string `json:"id"`
}

type UpdatePayload struct {
	ID   string       `json:"id"`
	Data models.Patch `json:"data"`
}

type WeeklyReportPayload struct {
	PropertyID string            `json:"property_id"`
	Week       models.ReportWeek `json:"week"`
}

// Response is the HTTP body of every invoke call. Exactly one field is set,
// except for fire-and-forget channels, which set neither.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorBody      `json:"error,omitempty"`
}

type ErrorBody struct {
	Kind    domain.Kind `json:"kind"`
	Message string      `json:"message"`
}
