// internal/pipeline/validate/validator.go
package validate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"

	apperrors "bedrock-router/internal/common/errors"
)

const (
	MaxAppNameLength = 64
	MaxSessionLength = 128
	MaxInputBytes    = 100 * 1024 // 100 KiB of UTF-8 encoded input text
	MaxRequestBytes  = 256 * 1024 // 256 KiB serialized request
)

var nameCharset = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// bodySchema rejects structurally malformed bodies (wrong types, unknown
// shapes) before the explicit field checks run.
var bodySchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"application_name": map[string]interface{}{"type": "string"},
		"app_name":         map[string]interface{}{"type": "string"},
		"input_text":       map[string]interface{}{"type": "string"},
		"input":            map[string]interface{}{"type": "string"},
		"query":            map[string]interface{}{"type": "string"},
		"prompt":           map[string]interface{}{"type": "string"},
		"session_id":       map[string]interface{}{"type": "string"},
		"metadata": map[string]interface{}{
			"type":                 "object",
			"additionalProperties": map[string]interface{}{"type": "string"},
		},
	},
}

// Validator normalizes raw request bodies and enforces the intake limits.
// Validation always runs before any cache lookup; caching an unvalidated
// request is a defect.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate parses and checks a raw JSON request body. It is a pure function:
// no I/O, no mutation of shared state. Checks short-circuit on the first
// failure and every failure is a validation-kind error.
func (v *Validator) Validate(body []byte) (*ValidatedRequest, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperrors.NewValidation("request", "body is not valid JSON")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(bodySchema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return nil, apperrors.NewValidation("request", "body could not be checked against schema")
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return nil, apperrors.NewValidation(first.Field(), first.Description())
	}

	var raw rawBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apperrors.NewValidation("request", "body is not valid JSON")
	}

	appName := raw.applicationName()
	if err := checkName("application_name", appName, MaxAppNameLength); err != nil {
		return nil, err
	}

	if err := checkName("session_id", raw.SessionID, MaxSessionLength); err != nil {
		return nil, err
	}

	input := raw.inputText()
	if strings.TrimSpace(input) == "" {
		return nil, apperrors.NewValidation("input_text", "must be a non-empty string")
	}
	if len(input) > MaxInputBytes {
		return nil, apperrors.NewValidation("input_text", "exceeds maximum size of 100KiB")
	}

	if len(body) > MaxRequestBytes {
		return nil, apperrors.NewValidation("request", "exceeds maximum serialized size of 256KiB")
	}

	return &ValidatedRequest{
		AppName:   appName,
		InputText: input,
		SessionID: raw.SessionID,
		Metadata:  raw.Metadata,
	}, nil
}

func checkName(field, value string, maxLen int) error {
	if value == "" {
		return apperrors.NewValidation(field, "must be a non-empty string")
	}
	if utf8.RuneCountInString(value) > maxLen || len(value) > maxLen {
		return apperrors.NewValidation(field, fmt.Sprintf("exceeds maximum length of %d characters", maxLen))
	}
	if !nameCharset.MatchString(value) {
		return apperrors.NewValidation(field, "contains invalid characters")
	}
	return nil
}
