package profundo

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by errors.Is against API responses.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrProvider     = errors.New("upstream provider error")
)

// APIError is a non-2xx JSON error returned by the server.
type APIError struct {
	Status  int    // HTTP status code
	Code    string // machine-readable error code
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("profundo: %s (%d %s)", e.Message, e.Status, e.Code)
}

// Is maps error codes onto the package sentinels so callers can use
// errors.Is without inspecting codes.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Code == "validation_failed" || e.Code == "bad_request"
	case ErrUnauthorized:
		return e.Code == "unauthorized"
	case ErrNotFound:
		return e.Code == "not_found"
	case ErrProvider:
		return e.Code == "provider_error"
	}
	return false
}
