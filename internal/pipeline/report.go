// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"cmp"
	"slices"
	"time"

	"github.com/soarmarket/mp/internal/validate"
	"github.com/soarmarket/mp/pkg/content"
)

type (
	// Report is the aggregated outcome of one run.
	Report struct {
		RunID     string        `json:"run_id"`
		Operation Operation     `json:"operation"`
		StartedAt time.Time     `json:"started_at"`
		Duration  time.Duration `json:"duration_ns"`
		Counts    Counts        `json:"counts"`
		Units     []UnitResult  `json:"units"`
		// Indexes lists the marketplace index files written by the run.
		Indexes []string `json:"indexes,omitempty"`
	}

	// Counts tallies units per status.
	Counts struct {
		Succeeded int `json:"succeeded"`
		Warned    int `json:"warned"`
		Failed    int `json:"failed"`
		Skipped   int `json:"skipped"`
	}

	// UnitResult is the outcome of one unit.
	UnitResult struct {
		Descriptor content.Descriptor `json:"-"`

		Kind       content.UnitKind       `json:"kind"`
		Repository content.RepositoryKind `json:"repository,omitempty"`
		Name       string                 `json:"name"`
		Status     Status                 `json:"status"`
		Violations validate.Violations    `json:"violations,omitempty"`
		// Error is the operational failure, if any: a load error, an aborted
		// build, a transform error or a recovered panic.
		Error string `json:"error,omitempty"`
		// Output is the file or directory written for the unit.
		Output   string        `json:"output,omitempty"`
		Duration time.Duration `json:"duration_ns"`

		// identifier and entry feed the post-build stage.
		identifier string
		entry      *IndexEntry
	}
)

func newUnitResult(d content.Descriptor) UnitResult {
	return UnitResult{
		Descriptor: d,
		Kind:       d.Kind,
		Repository: d.Repository,
		Name:       d.Name,
	}
}

// settle derives the status from the recorded error and violations.
func (u *UnitResult) settle() {
	u.Violations.Sort()
	switch {
	case u.Status == StatusSkipped:
	case u.Error != "" || u.Violations.HasErrors():
		u.Status = StatusFailed
	case u.Violations.HasWarnings():
		u.Status = StatusWarned
	default:
		u.Status = StatusSucceeded
	}
}

// fail records an operational failure.
func (u *UnitResult) fail(err error) {
	u.Error = err.Error()
	u.Status = StatusFailed
}

// tally recomputes the counts and sorts the units by kind, repository and name.
func (r *Report) tally() {
	slices.SortStableFunc(r.Units, func(a, b UnitResult) int {
		return cmp.Or(
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Repository, b.Repository),
			cmp.Compare(a.Name, b.Name),
		)
	})
	r.Counts = Counts{}
	for _, u := range r.Units {
		switch u.Status {
		case StatusSucceeded:
			r.Counts.Succeeded++
		case StatusWarned:
			r.Counts.Warned++
		case StatusFailed:
			r.Counts.Failed++
		case StatusSkipped:
			r.Counts.Skipped++
		}
	}
}

// Total returns the number of units in the report.
func (c Counts) Total() int {
	return c.Succeeded + c.Warned + c.Failed + c.Skipped
}

// Passed applies the exit policy: a run passes when no unit failed or was
// skipped and, if raiseOnWarnings is set, no unit carries a warning.
func (r *Report) Passed(raiseOnWarnings bool) bool {
	if r.Counts.Failed > 0 || r.Counts.Skipped > 0 {
		return false
	}
	return !raiseOnWarnings || r.Counts.Warned == 0
}

// Violations returns every violation of the run, paired with its unit.
func (r *Report) Violations() []UnitViolation {
	var out []UnitViolation
	for _, u := range r.Units {
		for _, v := range u.Violations {
			out = append(out, UnitViolation{Unit: u.Name, Kind: u.Kind, Violation: v})
		}
	}
	return out
}

// UnitViolation is a violation qualified by its unit.
type UnitViolation struct {
	Unit string
	Kind content.UnitKind
	validate.Violation
}
