// internal/pipeline/batch/models.go
package batch

import (
	apperrors "bedrock-router/internal/common/errors"
)

// RawItem is one request as received from the intake, before validation.
type RawItem struct {
	ID   string
	Body []byte
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Outcome is the terminal result for one batch item. Outcomes are returned
// in the same order as the items that produced them.
type Outcome struct {
	ItemID  string `json:"item_id"`
	Status  string `json:"status"`
	AppName string `json:"application_name,omitempty"`

	// Success fields. Cached is always serialized so consumers can tell a
	// fresh result from a replayed one without a presence check.
	Body   string `json:"body,omitempty"`
	Cached bool   `json:"cached"`

	// Error fields. Message is client-safe; the full cause is logged
	// server-side under TrackingID.
	ErrorKind  apperrors.Kind `json:"error_kind,omitempty"`
	TrackingID string         `json:"tracking_id,omitempty"`
	Message    string         `json:"message,omitempty"`
}
