package models

import (
	"errors"
	"fmt"
)

// ErrorKind is a coarse-grained categorization for intake errors.
type ErrorKind string

const (
	KindInsufficientInput     ErrorKind = "insufficient_input"
	KindCreditsExhausted      ErrorKind = "credits_exhausted"
	KindValidationUnavailable ErrorKind = "validation_unavailable"
	KindServerRejectedFormat  ErrorKind = "server_rejected_format"
	KindCaptureUnsupported    ErrorKind = "capture_unsupported"
	KindCaptureSessionError   ErrorKind = "capture_session_error"
	KindInvalidTransition     ErrorKind = "invalid_transition"
	KindSubmissionInFlight    ErrorKind = "submission_in_flight"
	KindOverrideUnavailable   ErrorKind = "override_unavailable"
)

// Sentinel errors, one per kind. An *OpError matches the sentinel of its kind
// with errors.Is.
var (
	ErrInsufficientInput     = errors.New("dictation too short to validate")
	ErrCreditsExhausted      = errors.New("no validation credits remaining")
	ErrValidationUnavailable = errors.New("validation service unavailable")
	ErrServerRejectedFormat  = errors.New("validation response malformed")
	ErrCaptureUnsupported    = errors.New("speech capture not supported")
	ErrCaptureSession        = errors.New("speech capture session failed")
	ErrInvalidTransition     = errors.New("invalid workflow transition")
	ErrSubmissionInFlight    = errors.New("submission already in flight")
	ErrOverrideUnavailable   = errors.New("override not available yet")
)

var sentinels = map[ErrorKind]error{
	KindInsufficientInput:     ErrInsufficientInput,
	KindCreditsExhausted:      ErrCreditsExhausted,
	KindValidationUnavailable: ErrValidationUnavailable,
	KindServerRejectedFormat:  ErrServerRejectedFormat,
	KindCaptureUnsupported:    ErrCaptureUnsupported,
	KindCaptureSessionError:   ErrCaptureSession,
	KindInvalidTransition:     ErrInvalidTransition,
	KindSubmissionInFlight:    ErrSubmissionInFlight,
	KindOverrideUnavailable:   ErrOverrideUnavailable,
}

// OpError wraps an underlying error with operation context and a kind.
type OpError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

// NewError builds an OpError. A nil cause defaults to the kind's sentinel.
func NewError(op string, kind ErrorKind, err error) *OpError {
	if err == nil {
		err = sentinels[kind]
	}
	return &OpError{Op: op, Kind: kind, Err: err}
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *OpError) Is(target error) bool {
	if e == nil {
		return false
	}
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// IsKind helps callers classify errors without depending on the producing package.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of the outermost OpError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return ""
}

// IsUnavailable reports whether err means the validator could not produce a
// usable verdict. A malformed response counts as unavailable.
func IsUnavailable(err error) bool {
	switch KindOf(err) {
	case KindValidationUnavailable, KindServerRejectedFormat:
		return true
	}
	return false
}

// IsRecoverable reports whether the user can act to get past err. Every
// classified intake error is recoverable; unclassified errors are not.
func IsRecoverable(err error) bool {
	_, ok := sentinels[KindOf(err)]
	return ok
}
