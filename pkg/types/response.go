package types

// SuccessEnvelope wraps every storefront and admin payload except the
// order-service endpoints, which answer bare.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the body of every error answer. Retryable tells the storefront
// whether resubmitting the same request can succeed.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
