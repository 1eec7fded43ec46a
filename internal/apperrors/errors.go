// Package apperrors holds the error taxonomy shared by the route workflow:
// validation failures caught before any network call, failures reported by the
// directions/places provider, and failures talking to the fleet API.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a draft already has a save in flight.
	ErrBusy = errors.New("draft is busy")

	// ErrStaleResult is returned when a compute result arrives for a draft
	// generation that has since been superseded. The result is discarded.
	ErrStaleResult = errors.New("route result is stale")

	// ErrNotFound is returned when a draft or remote record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable marks a capability that has not been provisioned.
	ErrUnavailable = errors.New("capability unavailable")
)

// ValidationError reports input that is not ready for computation or
// persistence. It is shown inline and never involves a network call.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validation builds a ValidationError for field.
func Validation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStopsError is returned by the route computer when fewer than two
// stops carry usable coordinates.
type InsufficientStopsError struct {
	Valid int
}

func (e *InsufficientStopsError) Error() string {
	return fmt.Sprintf("at least 2 stops with valid coordinates are required, got %d", e.Valid)
}

// ExternalServiceError wraps a failure of the directions, places or geocoding
// provider. Status carries the provider's own status code when one was sent.
type ExternalServiceError struct {
	Service string
	Status  string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	switch {
	case e.Status != "" && e.Err != nil:
		return fmt.Sprintf("%s: status %s: %v", e.Service, e.Status, e.Err)
	case e.Status != "":
		return fmt.Sprintf("%s: status %s", e.Service, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	}
	return e.Service + ": failed"
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// NetworkError wraps a failed request to the fleet API, either a transport
// failure (StatusCode 0) or a non-2xx answer.
type NetworkError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	msg := e.Op
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: http %d", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsValidation reports whether err is a validation-class failure.
func IsValidation(err error) bool {
	var v *ValidationError
	var s *InsufficientStopsError
	return errors.As(err, &v) || errors.As(err, &s)
}
