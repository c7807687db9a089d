package app

import (
	"errors"

	"github.com/serviapp/marketplace/internal/ports"
)

var ErrNotFound = ports.ErrNotFound

// Stable outcome codes. The HTTP layer maps them to status codes and the UI
// keys its messaging off them, so they are part of the contract.
const (
	CodeJobNotFound             = "job_not_found"
	CodeJobAlreadyClaimed       = "job_already_claimed"
	CodeJobStateChanged         = "job_state_changed"
	CodeProfessionalUnavailable = "professional_unavailable"
	CodeJobTooFar               = "job_too_far"
	CodeInvalidTransition       = "invalid_transition"
	CodeException               = "exception"
)

// CodedError carries a stable code plus, for the guard failures, the datum
// that triggered them (distance, active-job count).
type CodedError struct {
	Code    string
	Message string
	Err     error

	DistanceKm float64 // set for job_too_far
	ActiveJobs int     // set for professional_unavailable
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *CodedError) Unwrap() error { return e.Err }

// CodeOf classifies any error into a taxonomy code. Unexpected errors come
// out as "exception" so a raw transport error never reaches the caller.
func CodeOf(err error) string {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Code
	}
	if errors.Is(err, ports.ErrNotFound) {
		return CodeJobNotFound
	}
	if errors.Is(err, ports.ErrConflict) {
		return CodeJobAlreadyClaimed
	}
	return CodeException
}

func coded(code, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

func wrapUnexpected(message string, err error) *CodedError {
	return &CodedError{Code: CodeException, Message: message, Err: err}
}
