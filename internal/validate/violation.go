// SPDX-License-Identifier: MPL-2.0

package validate

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

const (
	// SeverityError fails the unit.
	SeverityError Severity = "error"
	// SeverityWarning is reported but does not fail the unit unless the run
	// raises on violations.
	SeverityWarning Severity = "warning"
	// SeverityOff disables a rule. It is only valid as a configured override.
	SeverityOff Severity = "off"
)

const (
	// ClassStructural rules check file presence, naming and parseability.
	ClassStructural Class = "structural"
	// ClassSemantic rules check the content of parsed descriptors.
	ClassSemantic Class = "semantic"
	// ClassPostBuild rules check the built artifact.
	ClassPostBuild Class = "post-build"
)

var (
	// ErrInvalidSeverity is returned when a Severity value is not recognized.
	ErrInvalidSeverity = errors.New("invalid severity")
	// ErrUnknownRule is returned when an override names a rule that is not registered.
	ErrUnknownRule = errors.New("unknown rule")
	// ErrStructuralOverride is returned when an override targets a structural rule.
	ErrStructuralOverride = errors.New("structural rules cannot be overridden")
)

type (
	// Severity is the level of a violation.
	Severity string

	// InvalidSeverityError is returned when a Severity value is not recognized.
	InvalidSeverityError struct {
		Value Severity
	}

	// RuleID identifies a rule in reports and configuration.
	RuleID string

	// Class groups rules by what they inspect. Post-build rules run in a
	// separate stage, after the artifact exists.
	Class string

	// Violation is a single finding against a unit.
	Violation struct {
		RuleID   RuleID   `json:"rule"`
		Severity Severity `json:"severity"`
		// Path is the slash-separated file the finding refers to, relative to
		// the unit root. Empty for unit-wide findings.
		Path    string `json:"path,omitempty"`
		Message string `json:"message"`
	}

	// Violations is an ordered collection of findings.
	Violations []Violation
)

// Error implements the error interface.
func (e *InvalidSeverityError) Error() string {
	return fmt.Sprintf("invalid severity %q (valid: error, warning, off)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidSeverityError) Unwrap() error { return ErrInvalidSeverity }

// IsValid returns whether the Severity is recognized, and a list of
// validation errors if it is not.
func (s Severity) IsValid() (bool, []error) {
	switch s {
	case SeverityError, SeverityWarning, SeverityOff:
		return true, nil
	default:
		return false, []error{&InvalidSeverityError{Value: s}}
	}
}

// String returns the severity name.
func (s Severity) String() string { return string(s) }

// String returns the rule id.
func (id RuleID) String() string { return string(id) }

// Error implements the error interface.
func (v Violation) Error() string {
	if v.Path != "" {
		return v.Path + ": " + v.Message
	}
	return v.Message
}

// IsError returns true if this is an error-level violation.
func (v Violation) IsError() bool { return v.Severity == SeverityError }

// IsWarning returns true if this is a warning-level violation.
func (v Violation) IsWarning() bool { return v.Severity == SeverityWarning }

// Sort orders violations by path, rule id, then message.
func (vs Violations) Sort() {
	slices.SortStableFunc(vs, func(a, b Violation) int {
		return cmp.Or(
			strings.Compare(a.Path, b.Path),
			strings.Compare(string(a.RuleID), string(b.RuleID)),
			strings.Compare(a.Message, b.Message),
		)
	})
}

// HasErrors returns true if there are any error-level violations.
func (vs Violations) HasErrors() bool {
	return slices.ContainsFunc(vs, Violation.IsError)
}

// HasWarnings returns true if there are any warning-level violations.
func (vs Violations) HasWarnings() bool {
	return slices.ContainsFunc(vs, Violation.IsWarning)
}

// ErrorCount returns the number of error-level violations.
func (vs Violations) ErrorCount() int {
	n := 0
	for _, v := range vs {
		if v.IsError() {
			n++
		}
	}
	return n
}

// WarningCount returns the number of warning-level violations.
func (vs Violations) WarningCount() int {
	n := 0
	for _, v := range vs {
		if v.IsWarning() {
			n++
		}
	}
	return n
}

// Errors returns only the error-level violations.
func (vs Violations) Errors() Violations {
	var out Violations
	for _, v := range vs {
		if v.IsError() {
			out = append(out, v)
		}
	}
	return out
}

// Error implements the error interface by summarizing every violation.
func (vs Violations) Error() string {
	switch len(vs) {
	case 0:
		return ""
	case 1:
		return vs[0].Error()
	}

	var b strings.Builder
	b.WriteString("validation failed with ")
	errs, warns := vs.ErrorCount(), vs.WarningCount()
	if errs > 0 {
		b.WriteString(plural(errs, "error"))
	}
	if warns > 0 {
		if errs > 0 {
			b.WriteString(" and ")
		}
		b.WriteString(plural(warns, "warning"))
	}
	b.WriteString(":")
	for _, v := range vs {
		b.WriteString("\n  - ")
		b.WriteString(v.Error())
	}
	return b.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
