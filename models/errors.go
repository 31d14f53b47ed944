package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a reconcile failure.
type ErrorKind string

const (
	// ErrorKindValidation: the descriptor is malformed or references objects
	// the backend does not have. Nothing was changed.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindBackendUnavailable: the backend could not be reached or
	// refused a call.
	ErrorKindBackendUnavailable ErrorKind = "backend_unavailable"

	// ErrorKindConvergenceFailure: named objects could not be brought in line
	// with the local source of truth.
	ErrorKindConvergenceFailure ErrorKind = "convergence_failure"

	// ErrorKindStartupFailure: the unit reached a failed state while starting.
	ErrorKindStartupFailure ErrorKind = "startup_failure"

	// ErrorKindTimeout: the unit did not become ready before the deadline.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindNotReady is internal to the poll loop and never returned.
	ErrorKindNotReady ErrorKind = "not_ready"
)

// ReconcileError is a classified error with the service and operation it
// happened in.
type ReconcileError struct {
	Kind      ErrorKind `json:"kind"`
	Service   string    `json:"service,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Message   string    `json:"message"`
	Err       error     `json:"-"`
}

func (e *ReconcileError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	switch {
	case e.Service != "" && e.Operation != "":
		msg += fmt.Sprintf(" (service=%s, operation=%s)", e.Service, e.Operation)
	case e.Service != "":
		msg += fmt.Sprintf(" (service=%s)", e.Service)
	case e.Operation != "":
		msg += fmt.Sprintf(" (operation=%s)", e.Operation)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// Is matches any *ReconcileError of the same kind.
func (e *ReconcileError) Is(target error) bool {
	t, ok := target.(*ReconcileError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func (e *ReconcileError) WithService(service string) *ReconcileError {
	e.Service = service
	return e
}

func (e *ReconcileError) WithOperation(operation string) *ReconcileError {
	e.Operation = operation
	return e
}

// Sentinels for errors.Is.
var (
	ErrValidation         = &ReconcileError{Kind: ErrorKindValidation}
	ErrBackendUnavailable = &ReconcileError{Kind: ErrorKindBackendUnavailable}
	ErrConvergenceFailure = &ReconcileError{Kind: ErrorKindConvergenceFailure}
	ErrStartupFailure     = &ReconcileError{Kind: ErrorKindStartupFailure}
	ErrTimeout            = &ReconcileError{Kind: ErrorKindTimeout}
	ErrNotReady           = &ReconcileError{Kind: ErrorKindNotReady}
)

func NewValidationError(message string, err error) *ReconcileError {
	return &ReconcileError{Kind: ErrorKindValidation, Message: message, Err: err}
}

func NewBackendUnavailableError(message string, err error) *ReconcileError {
	return &ReconcileError{Kind: ErrorKindBackendUnavailable, Message: message, Err: err}
}

func NewConvergenceFailureError(message string, err error) *ReconcileError {
	return &ReconcileError{Kind: ErrorKindConvergenceFailure, Message: message, Err: err}
}

func NewStartupFailureError(message string, err error) *ReconcileError {
	return &ReconcileError{Kind: ErrorKindStartupFailure, Message: message, Err: err}
}

func NewTimeoutError(message string, err error) *ReconcileError {
	return &ReconcileError{Kind: ErrorKindTimeout, Message: message, Err: err}
}

func NewNotReadyError(message string) *ReconcileError {
	return &ReconcileError{Kind: ErrorKindNotReady, Message: message}
}

func IsValidation(err error) bool         { return errors.Is(err, ErrValidation) }
func IsBackendUnavailable(err error) bool { return errors.Is(err, ErrBackendUnavailable) }
func IsConvergenceFailure(err error) bool { return errors.Is(err, ErrConvergenceFailure) }
func IsStartupFailure(err error) bool     { return errors.Is(err, ErrStartupFailure) }
func IsTimeout(err error) bool            { return errors.Is(err, ErrTimeout) }
func IsNotReady(err error) bool           { return errors.Is(err, ErrNotReady) }

// KindOf returns the kind of the first ReconcileError in the chain, or "".
func KindOf(err error) ErrorKind {
	var re *ReconcileError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
