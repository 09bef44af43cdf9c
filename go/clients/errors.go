package clients

import (
	"encoding/json"
	"fmt"
)

// APIError is a non-2xx response. Error() is the response body verbatim so it can
// be shown to the user as-is; Detail holds the unwrapped {"detail": ...} message
// when the server sent one.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
	Detail     string
}

func newAPIError(code int, status string, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: code,
		Status:     status,
		Body:       string(body),
	}

	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var text string
		if err := json.Unmarshal(envelope.Detail, &text); err == nil {
			apiErr.Detail = text
		} else {
			apiErr.Detail = string(envelope.Detail)
		}
	}
	return apiErr
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	if e.Status != "" {
		return e.Status
	}
	return fmt.Sprintf("API returned status code: %d", e.StatusCode)
}

// Message prefers the unwrapped detail over the raw body.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Error()
}
