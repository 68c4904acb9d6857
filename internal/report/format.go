// SPDX-License-Identifier: MPL-2.0

package report

import (
	"errors"
	"fmt"
)

const (
	// FormatText is the styled, human readable summary.
	FormatText Format = "text"
	// FormatMarkdown is a Markdown document with one table per unit.
	FormatMarkdown Format = "markdown"
	// FormatJSON is the machine readable report.
	FormatJSON Format = "json"
)

// ErrInvalidFormat is returned when a Format value is not recognized.
var ErrInvalidFormat = errors.New("invalid report format")

type (
	// Format selects the rendering of a report.
	Format string

	// InvalidFormatError is returned when a Format value is not recognized.
	InvalidFormatError struct {
		Value Format
	}
)

// Error implements the error interface.
func (e *InvalidFormatError) Error() string {
	return fmt.Sprintf("invalid report format %q (valid: text, markdown, json)", e.Value)
}

// Unwrap returns ErrInvalidFormat for errors.Is() compatibility.
func (e *InvalidFormatError) Unwrap() error { return ErrInvalidFormat }

// IsValid returns whether the Format is recognized, and a list of
// validation errors if it is not.
func (f Format) IsValid() (bool, []error) {
	switch f {
	case FormatText, FormatMarkdown, FormatJSON:
		return true, nil
	default:
		return false, []error{&InvalidFormatError{Value: f}}
	}
}

// String returns the format name.
func (f Format) String() string { return string(f) }
