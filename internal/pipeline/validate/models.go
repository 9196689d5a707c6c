// internal/pipeline/validate/models.go
package validate

// ValidatedRequest is an immutable, normalized request that passed every
// validation check. It is the only request form the rest of the pipeline sees.
type ValidatedRequest struct {
	AppName   string            `json:"application_name"`
	InputText string            `json:"input_text"`
	SessionID string            `json:"session_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// rawBody mirrors the accepted wire shapes. Producers historically sent the
// input under input_text, input, query or prompt; all four are accepted and
// normalized to InputText.
type rawBody struct {
	ApplicationName string            `json:"application_name"`
	AppName         string            `json:"app_name"`
	InputText       string            `json:"input_text"`
	Input           string            `json:"input"`
	Query           string            `json:"query"`
	Prompt          string            `json:"prompt"`
	SessionID       string            `json:"session_id"`
	Metadata        map[string]string `json:"metadata"`
}

func (b *rawBody) applicationName() string {
	if b.ApplicationName != "" {
		return b.ApplicationName
	}
	return b.AppName
}

func (b *rawBody) inputText() string {
	for _, v := range []string{b.InputText, b.Input, b.Query, b.Prompt} {
		if v != "" {
			return v
		}
	}
	return ""
}
