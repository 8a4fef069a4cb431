package types

// SuccessEnvelope wraps every dashboard API payload.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public face of a typed error. RequestID lets an operator
// quote the failing call when reporting it.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
