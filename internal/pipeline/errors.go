// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidWorkers is returned when the worker count is out of range.
	ErrInvalidWorkers = errors.New("invalid worker count")
	// ErrOverlappingOutput is returned when two units of one run would write
	// into the same output subtree.
	ErrOverlappingOutput = errors.New("overlapping output subtrees")
	// ErrMissingOption is returned when an option required by the operation
	// is not set.
	ErrMissingOption = errors.New("missing option")
	// ErrNoHandler is returned for a unit kind without a registered handler.
	ErrNoHandler = errors.New("no handler for unit kind")
	// ErrUnitPanic wraps a panic recovered while processing one unit.
	ErrUnitPanic = errors.New("unit processing panicked")
)

type (
	// OverlapError lists the units that share an output subtree.
	OverlapError struct {
		Subtree string
		Units   []string
	}

	// PanicError records a recovered panic. It wraps ErrUnitPanic.
	PanicError struct {
		Unit  string
		Value any
	}
)

// Error implements the error interface.
func (e *OverlapError) Error() string {
	return fmt.Sprintf("units %s write into the same output subtree %s", strings.Join(e.Units, ", "), e.Subtree)
}

// Unwrap returns ErrOverlappingOutput for errors.Is() compatibility.
func (e *OverlapError) Unwrap() error { return ErrOverlappingOutput }

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%s: panic: %v", e.Unit, e.Value)
}

// Unwrap returns ErrUnitPanic for errors.Is() compatibility.
func (e *PanicError) Unwrap() error { return ErrUnitPanic }
