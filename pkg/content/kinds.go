// SPDX-License-Identifier: MPL-2.0

package content

import (
	"errors"
	"fmt"
	"path"
)

const (
	// KindIntegration is a response integration: scripts plus their metadata.
	KindIntegration UnitKind = "integration"
	// KindPlaybook is a playbook or block: a trigger plus an ordered set of steps.
	KindPlaybook UnitKind = "playbook"

	// RepoFirstParty holds content owned by the marketplace maintainers.
	RepoFirstParty RepositoryKind = "first_party"
	// RepoCommunity holds third-party content contributed by the community.
	RepoCommunity RepositoryKind = "community"
	// RepoPartner holds third-party content maintained by technology partners.
	RepoPartner RepositoryKind = "partner"
	// RepoCustom holds customer-specific content that never ships publicly.
	RepoCustom RepositoryKind = "custom"

	// FormSource is the canonical multi-file source layout.
	FormSource Form = "source"
	// FormBuilt is the single-file deployable artifact layout.
	FormBuilt Form = "built"

	// ContentDirName is the top-level directory holding all source content.
	ContentDirName = "content"
	// IntegrationsDirName holds integrations, both in source and in the output tree.
	IntegrationsDirName = "response_integrations"
	// PlaybooksDirName holds playbooks, both in source and in the output tree.
	PlaybooksDirName = "playbooks"
	// PackagesDirName holds shared libraries whose versions integrations pin.
	PackagesDirName = "packages"
)

var (
	// ErrInvalidUnitKind is returned when a UnitKind value is not one of the defined kinds.
	ErrInvalidUnitKind = errors.New("invalid unit kind")
	// ErrInvalidRepositoryKind is returned when a RepositoryKind value is not one of the defined kinds.
	ErrInvalidRepositoryKind = errors.New("invalid repository kind")

	allUnitKinds       = []UnitKind{KindIntegration, KindPlaybook}
	allRepositoryKinds = []RepositoryKind{RepoFirstParty, RepoCommunity, RepoPartner, RepoCustom}

	repositoryDirs = map[RepositoryKind]string{
		RepoFirstParty: "first_party",
		RepoCommunity:  "third_party/community",
		RepoPartner:    "third_party/partner",
		RepoCustom:     "custom",
	}

	unitKindDirs = map[UnitKind]string{
		KindIntegration: IntegrationsDirName,
		KindPlaybook:    PlaybooksDirName,
	}
)

type (
	// UnitKind is the closed set of content unit kinds.
	UnitKind string

	// RepositoryKind classifies content by ownership and trust tier.
	RepositoryKind string

	// Form tells whether a unit directory holds source or a built artifact.
	Form string

	// InvalidUnitKindError is returned when a UnitKind value is not recognized.
	// It wraps ErrInvalidUnitKind for errors.Is() compatibility.
	InvalidUnitKindError struct {
		Value UnitKind
	}

	// InvalidRepositoryKindError is returned when a RepositoryKind value is not recognized.
	// It wraps ErrInvalidRepositoryKind for errors.Is() compatibility.
	InvalidRepositoryKindError struct {
		Value RepositoryKind
	}
)

// UnitKinds returns every unit kind in a stable order.
func UnitKinds() []UnitKind {
	return append([]UnitKind(nil), allUnitKinds...)
}

// RepositoryKinds returns every repository kind in a stable order.
func RepositoryKinds() []RepositoryKind {
	return append([]RepositoryKind(nil), allRepositoryKinds...)
}

// Error implements the error interface.
func (e *InvalidUnitKindError) Error() string {
	return fmt.Sprintf("invalid unit kind %q (valid: integration, playbook)", e.Value)
}

// Unwrap returns ErrInvalidUnitKind for errors.Is() compatibility.
func (e *InvalidUnitKindError) Unwrap() error { return ErrInvalidUnitKind }

// Error implements the error interface.
func (e *InvalidRepositoryKindError) Error() string {
	return fmt.Sprintf("invalid repository kind %q (valid: first_party, community, partner, custom)", e.Value)
}

// Unwrap returns ErrInvalidRepositoryKind for errors.Is() compatibility.
func (e *InvalidRepositoryKindError) Unwrap() error { return ErrInvalidRepositoryKind }

// IsValid returns whether the UnitKind is one of the defined kinds,
// and a list of validation errors if it is not.
func (k UnitKind) IsValid() (bool, []error) {
	switch k {
	case KindIntegration, KindPlaybook:
		return true, nil
	default:
		return false, []error{&InvalidUnitKindError{Value: k}}
	}
}

// String returns the string representation of the UnitKind.
func (k UnitKind) String() string { return string(k) }

// Dir returns the directory name that holds units of this kind.
func (k UnitKind) Dir() string { return unitKindDirs[k] }

// IsValid returns whether the RepositoryKind is one of the defined kinds,
// and a list of validation errors if it is not.
func (r RepositoryKind) IsValid() (bool, []error) {
	if _, ok := repositoryDirs[r]; ok {
		return true, nil
	}
	return false, []error{&InvalidRepositoryKindError{Value: r}}
}

// String returns the string representation of the RepositoryKind.
func (r RepositoryKind) String() string { return string(r) }

// Dir returns the slash-separated directory of the repository kind, relative
// to the unit kind directory (e.g. "third_party/partner").
func (r RepositoryKind) Dir() string { return repositoryDirs[r] }

// SourceDir returns the slash-separated source directory of a repository
// kind for a given unit kind, relative to the repository root.
func SourceDir(kind UnitKind, repo RepositoryKind) string {
	return path.Join(ContentDirName, kind.Dir(), repo.Dir())
}

// OutputDir returns the slash-separated directory of a repository kind
// inside an output root.
func OutputDir(kind UnitKind, repo RepositoryKind) string {
	return path.Join(kind.Dir(), repo.Dir())
}
