package util

import (
	"errors"
	"net/http"
)

// Kind is the stable error category exposed to API callers.
type Kind string

const (
	KindInvalidRequest     Kind = "INVALID_REQUEST"
	KindNotFound           Kind = "NOT_FOUND"
	KindNoRouteFound       Kind = "NO_ROUTE_FOUND"
	KindCapacityExceeded   Kind = "CAPACITY_EXCEEDED"
	KindCancellationWindow Kind = "CANCELLATION_WINDOW_EXPIRED"
	KindRateLimited        Kind = "RATE_LIMITED"
	KindInternal           Kind = "INTERNAL_ERROR"
)

// ApiError carries a stable kind and a human-readable message. Internal
// identifiers and wrapped causes never reach the response body.
type ApiError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	cause   error
}

func (e *ApiError) Error() string {
	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.cause
}

func NewApiError(kind Kind, message string) *ApiError {
	return &ApiError{Kind: kind, Message: message}
}

// WrapInternal hides the cause behind a generic message while keeping it
// reachable through errors.Unwrap for logging.
func WrapInternal(cause error) *ApiError {
	return &ApiError{Kind: KindInternal, Message: "internal server error", cause: cause}
}

func StatusForKind(kind Kind) int {
	switch kind {
	case KindInvalidRequest, KindNoRouteFound, KindCancellationWindow:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindCapacityExceeded:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extracts the kind from an error chain, defaulting to internal.
func KindOf(err error) Kind {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}
