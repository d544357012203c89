// Package apierror holds the JSON error envelopes every handler answers with.
// Messages are for the operator; causes stay in the logs.
package apierror

// APIError is the body of every 4xx/5xx that is not a field validation.
type APIError struct {
	Detail string `json:"detail"`
	// Step names the settlement step that failed, for persistence failures.
	Step string `json:"step,omitempty"`
}

// New returns an envelope carrying only a message.
func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// NewStep returns an envelope for a settlement persistence failure. step is
// one of the service Step* names, so the operator knows which write to check
// before resubmitting.
func NewStep(msg, step string) *APIError {
	return &APIError{Detail: msg, Step: step}
}

// ValidationError maps request fields, by JSON path, to what is wrong with them.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

// NewValidation returns the 422 envelope for fields.
func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}
