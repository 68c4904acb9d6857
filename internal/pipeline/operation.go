// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
)

const (
	// OpValidate runs the validator and, unless disabled, the post-build
	// rules against an in-memory build. Nothing is written.
	OpValidate Operation = "validate"
	// OpBuild validates and writes artifacts into the output root.
	OpBuild Operation = "build"
	// OpTest validates, builds in memory and always checks the round trip.
	OpTest Operation = "test"
	// OpDeconstruct regenerates source units from built artifacts.
	OpDeconstruct Operation = "deconstruct"

	// StatusSucceeded is a unit without violations.
	StatusSucceeded Status = "succeeded"
	// StatusWarned is a unit with warnings only.
	StatusWarned Status = "warned"
	// StatusFailed is a unit with error violations or an operational failure.
	StatusFailed Status = "failed"
	// StatusSkipped is a unit that was never dispatched because the run
	// was canceled.
	StatusSkipped Status = "skipped"
)

// ErrInvalidOperation is returned when an Operation value is not recognized.
var ErrInvalidOperation = errors.New("invalid operation")

type (
	// Operation is the closed set of pipeline operations.
	Operation string

	// Status is the outcome of one unit.
	Status string

	// InvalidOperationError is returned when an Operation value is not recognized.
	// It wraps ErrInvalidOperation for errors.Is() compatibility.
	InvalidOperationError struct {
		Value Operation
	}
)

// Error implements the error interface.
func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid operation %q (valid: validate, build, test, deconstruct)", e.Value)
}

// Unwrap returns ErrInvalidOperation for errors.Is() compatibility.
func (e *InvalidOperationError) Unwrap() error { return ErrInvalidOperation }

// IsValid returns whether the Operation is one of the defined operations,
// and a list of validation errors if it is not.
func (o Operation) IsValid() (bool, []error) {
	switch o {
	case OpValidate, OpBuild, OpTest, OpDeconstruct:
		return true, nil
	default:
		return false, []error{&InvalidOperationError{Value: o}}
	}
}

// String returns the string representation of the Operation.
func (o Operation) String() string { return string(o) }

// writes reports whether the operation writes into an output tree.
func (o Operation) writes() bool { return o == OpBuild || o == OpDeconstruct }

// String returns the string representation of the Status.
func (s Status) String() string { return string(s) }
