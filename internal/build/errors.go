// SPDX-License-Identifier: MPL-2.0

package build

import (
	"errors"
	"fmt"

	"github.com/soarmarket/mp/internal/validate"
	"github.com/soarmarket/mp/pkg/content"
)

// ErrBuildAborted is returned when a unit carries error-severity violations.
var ErrBuildAborted = errors.New("build aborted")

// BuildAbortedError reports the violations that prevented a build.
type BuildAbortedError struct {
	Unit content.Descriptor
	// Violations holds the error-severity violations only.
	Violations validate.Violations
}

// Error implements the error interface.
func (e *BuildAbortedError) Error() string {
	n := len(e.Violations)
	noun := "violations"
	if n == 1 {
		noun = "violation"
	}
	return fmt.Sprintf("build of %s aborted: %d error %s", e.Unit, n, noun)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *BuildAbortedError) Unwrap() error { return ErrBuildAborted }
