package command

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateCommand is returned when a command key is registered twice.
	ErrDuplicateCommand = errors.New("command already registered")

	// ErrInvalidCommand is returned when a command record lacks a key or handler.
	ErrInvalidCommand = errors.New("command must have a key and a handler")
)

// ValidationError reports bad user input. Its message is shown to the user
// as-is and nothing is logged.
type ValidationError struct {
	Message string
	Args    []any
}

// NewValidationError creates a ValidationError. message is formatted with args.
func NewValidationError(message string, args ...any) *ValidationError {
	return &ValidationError{Message: message, Args: args}
}

func (e *ValidationError) Error() string {
	if len(e.Args) == 0 {
		return e.Message
	}
	return fmt.Sprintf(e.Message, e.Args...)
}

// DomainError reports a business failure. Message is shown to the user when
// set, otherwise a generic error is shown; Err is logged at warn level.
type DomainError struct {
	Message string
	Err     error
}

// NewDomainError creates a DomainError.
func NewDomainError(message string, err error) *DomainError {
	return &DomainError{Message: message, Err: err}
}

func (e *DomainError) Error() string {
	switch {
	case e.Err == nil:
		return e.Message
	case e.Message == "":
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// FailureKind classifies a failed command execution.
type FailureKind string

const (
	FailureValidation FailureKind = "validation"
	FailureDomain     FailureKind = "domain"
	FailureUnexpected FailureKind = "unexpected"
)

// classify returns the failure kind of err.
func classify(err error) FailureKind {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return FailureValidation
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return FailureDomain
	}
	return FailureUnexpected
}
