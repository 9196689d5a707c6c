// internal/common/errors/classifier.go
package errors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"bedrock-router/internal/common/logger"
)

// Classified is the client-facing view of a failure: a kind label, an opaque
// tracking identifier, and a generic message. Internal detail (backend error
// text, resource identifiers, stack content) stays on the server-side log.
type Classified struct {
	Kind          Kind
	TrackingID    string
	ClientMessage string
}

type Classifier struct {
	logger logger.Logger
}

func NewClassifier(log logger.Logger) *Classifier {
	return &Classifier{logger: log}
}

// Classify assigns a fresh tracking id to the failure, logs the full error
// server-side, and returns only the generic client view.
func (c *Classifier) Classify(err error) Classified {
	kind := KindOf(err)
	trackingID := uuid.NewString()

	c.logger.Error("pipeline item failed", map[string]interface{}{
		"kind":       string(kind),
		"trackingId": trackingID,
		"error":      err.Error(),
	})

	return Classified{
		Kind:          kind,
		TrackingID:    trackingID,
		ClientMessage: clientMessage(kind, err),
	}
}

func clientMessage(kind Kind, err error) string {
	switch kind {
	case KindValidation:
		// Validation reasons describe the client's own input against the
		// published limits, so they are safe to return verbatim.
		var e *Error
		if errors.As(err, &e) && e.Field != "" {
			return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
		}
		return "request failed validation"
	case KindRouting:
		return "no backend configured for the requested application"
	case KindInvocation:
		return "inference backend error"
	case KindCache:
		return "cache unavailable"
	default:
		return "internal server error"
	}
}
