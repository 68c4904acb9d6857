// SPDX-License-Identifier: MPL-2.0

package deconstruct

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedArtifact is returned when artifact bytes cannot be decoded
	// or carry no identifier.
	ErrMalformedArtifact = errors.New("malformed artifact")
	// ErrUnsafePath is returned when an artifact names a file outside the unit.
	ErrUnsafePath = errors.New("unsafe resource path")
	// ErrFileCollision is returned when two records map to the same file.
	ErrFileCollision = errors.New("file name collision")
	// ErrUnknownCode is returned for an unrecognized numeric type code.
	ErrUnknownCode = errors.New("unknown type code")

	errNoName = fmt.Errorf("%w: no usable name", ErrMalformedArtifact)
)

// TransformError reports an artifact that cannot be turned into source.
type TransformError struct {
	// Source names the artifact, usually its path.
	Source string
	Err    error
}

// Error implements the error interface.
func (e *TransformError) Error() string {
	return fmt.Sprintf("deconstruct %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransformError) Unwrap() error { return e.Err }
