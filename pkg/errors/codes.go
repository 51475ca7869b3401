package errors

import "net/http"

// Code classifies an error for HTTP mapping and client retry decisions.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Payment was taken (or may have been) but the order side failed.
	CodePaymentVerification    Code = "PAYMENT_VERIFICATION_FAILED"
	CodeReconciliationRequired Code = "RECONCILIATION_REQUIRED"
)

// Metadata is how a code surfaces to API clients. ExposeMessage lets the
// error's own message replace PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	ExposeMessage  bool
}

type trait uint8

const (
	retryable trait = 1 << iota
	details
	exposed
)

func describe(status int, public string, traits trait) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      traits&retryable != 0,
		DetailsAllowed: traits&details != 0,
		ExposeMessage:  traits&exposed != 0,
	}
}

// CodeInternal is the only code whose message never reaches the client.
var catalog = map[Code]Metadata{
	CodeValidation:    describe(http.StatusBadRequest, "validation failed", details|exposed),
	CodeUnauthorized:  describe(http.StatusUnauthorized, "authentication required", exposed),
	CodeForbidden:     describe(http.StatusForbidden, "access denied", exposed),
	CodeNotFound:      describe(http.StatusNotFound, "resource not found", exposed),
	CodeConflict:      describe(http.StatusConflict, "conflict detected", exposed),
	CodeStateConflict: describe(http.StatusUnprocessableEntity, "state transition disallowed", details|exposed),
	CodeIdempotency:   describe(http.StatusConflict, "idempotency key reused", details|exposed),
	CodeRateLimit:     describe(http.StatusTooManyRequests, "rate limit exceeded", exposed),
	CodeInternal:      describe(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:    describe(http.StatusServiceUnavailable, "dependency unavailable", retryable|details|exposed),

	CodePaymentVerification: describe(http.StatusBadGateway,
		"payment verification failed, please contact support", details|exposed),
	CodeReconciliationRequired: describe(http.StatusBadGateway,
		"order could not be completed after payment, please contact support", details|exposed),
}

func (c Code) IsKnown() bool {
	_, ok := catalog[c]
	return ok
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := catalog[code]; ok {
		return meta
	}
	return catalog[CodeInternal]
}
