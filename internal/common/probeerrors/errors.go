// Package probeerrors contains the error types shared by scaleprobe components.
//
// Callers should look for these types with errors.As rather than comparing messages. Only
// ErrPrecondition is fatal: ErrTransport is always handled where the failing call is made,
// either by recording a failed attempt or by leaving the affected field unknown.
package probeerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidArgument is returned when a user supplied parameter is invalid.
// Message is optional and is omitted from the error message if not provided.
type ErrInvalidArgument struct {
	Name    string      // Name of the parameter, e.g., "parallel"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrInvalidArgument) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %v is invalid for parameter %q", err.Value, err.Name)
	}
	return fmt.Sprintf("value %v is invalid for parameter %q; %s", err.Value, err.Name, err.Message)
}

// ErrPrecondition is returned at startup when a capability the run depends on is missing,
// e.g., the kubectl binary needed to forward the broker port.
type ErrPrecondition struct {
	Requirement string // What is missing, e.g., "kubectl"
	Hint        string // Optional instructions for the operator
	Cause       error
}

func (err *ErrPrecondition) Error() string {
	s := fmt.Sprintf("required %s is not available", err.Requirement)
	if err.Cause != nil {
		s = fmt.Sprintf("%s: %s", s, err.Cause)
	}
	if err.Hint != "" {
		s = fmt.Sprintf("%s; %s", s, err.Hint)
	}
	return s
}

func (err *ErrPrecondition) Unwrap() error {
	return err.Cause
}

// ErrTransport wraps the failure of a single call to the broker or the cluster.
type ErrTransport struct {
	Operation string // e.g., "publish" or "stream info"
	Cause     error
}

func (err *ErrTransport) Error() string {
	return fmt.Sprintf("%s failed: %s", err.Operation, err.Cause)
}

func (err *ErrTransport) Unwrap() error {
	return err.Cause
}

// NewTransport wraps cause in an ErrTransport carrying a stack trace.
// Returns nil if cause is nil.
func NewTransport(operation string, cause error) error {
	if cause == nil {
		return nil
	}
	return errors.WithStack(&ErrTransport{Operation: operation, Cause: cause})
}

// IsPrecondition reports whether any error in err's chain is an ErrPrecondition.
func IsPrecondition(err error) bool {
	var e *ErrPrecondition
	return errors.As(err, &e)
}

// IsTransport reports whether any error in err's chain is an ErrTransport.
func IsTransport(err error) bool {
	var e *ErrTransport
	return errors.As(err, &e)
}
