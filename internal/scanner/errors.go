// SPDX-License-Identifier: MPL-2.0

package scanner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soarmarket/mp/pkg/content"
)

var (
	// ErrUnitNotFound is returned when a requested unit name matches nothing.
	ErrUnitNotFound = errors.New("unit not found")
	// ErrDuplicateUnit is returned when two directories resolve to the same
	// canonical name within one repository kind.
	ErrDuplicateUnit = errors.New("duplicate unit name")
	// ErrMisplacedUnit is returned when a directory's marker files classify it
	// as a different unit kind than the tree it lives in.
	ErrMisplacedUnit = errors.New("unit placed in the wrong tree")
)

// DiscoveryError reports a unit that could not be resolved unambiguously.
// It is fatal to the named unit only.
type DiscoveryError struct {
	Kind       content.UnitKind
	Repository content.RepositoryKind
	Name       string
	// Paths lists every directory involved, sorted.
	Paths []string
	Err   error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %q", e.Kind, e.Name)
	if e.Repository != "" {
		fmt.Fprintf(&b, " in %s", e.Repository)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if len(e.Paths) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Paths, ", "))
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap returns the sentinel cause for errors.Is() compatibility.
func (e *DiscoveryError) Unwrap() error { return e.Err }

// Descriptor returns a placeholder descriptor so the failure can be reported
// alongside the units that were discovered.
func (e *DiscoveryError) Descriptor() content.Descriptor {
	d := content.Descriptor{Kind: e.Kind, Repository: e.Repository, Name: e.Name, Form: content.FormSource}
	if len(e.Paths) > 0 {
		d.Root = e.Paths[0]
	}
	return d
}
