// SPDX-License-Identifier: MPL-2.0

package content

import (
	"fmt"
	"path"
	"slices"
)

// Source layout file and directory names shared by both unit kinds.
const (
	DefinitionFile   = "definition.yaml"
	ReleaseNotesFile = "release_notes.yaml"
	ResourcesDir     = "resources"
	WidgetsDir       = "widgets"
)

type (
	// Descriptor identifies a unit on disk without loading its contents.
	Descriptor struct {
		Kind       UnitKind
		Repository RepositoryKind
		// Name is the canonical unit name (the directory name).
		Name string
		// Root is the OS path of the unit directory.
		Root string
		// Rel is the slash path of the unit directory relative to the
		// scanned tree root.
		Rel  string
		Form Form
	}

	// LoadIssue records a descriptor file that could not be read or parsed.
	LoadIssue struct {
		Path string
		Err  error
	}

	// Entity is the kind-specific payload of a Unit. The interface is sealed:
	// *Integration and *Playbook are its only implementations.
	Entity interface {
		UnitKind() UnitKind
		DeclaredVersion() float64
		sealed()
	}

	// Unit is one loaded integration or playbook. A Unit is built fresh per
	// pipeline run and is not mutated after Load returns.
	Unit struct {
		Descriptor
		// Files lists every regular file under the unit root as sorted
		// slash-separated relative paths.
		Files      []string
		LoadIssues []LoadIssue
		Entity     Entity
	}
)

// Key returns a stable identifier for the descriptor, unique per run.
func (d Descriptor) Key() string {
	return string(d.Kind) + "/" + string(d.Repository) + "/" + d.Name
}

// String implements fmt.Stringer.
func (d Descriptor) String() string {
	return fmt.Sprintf("%s %s (%s)", d.Kind, d.Name, d.Repository)
}

// OutputSubtree returns the exclusive slash-separated output directory of the
// unit relative to an output root.
func (d Descriptor) OutputSubtree() string {
	return path.Join(OutputDir(d.Kind, d.Repository), d.Name)
}

// ArtifactFile returns the slash-separated path of the unit artifact relative
// to an output root.
func (d Descriptor) ArtifactFile() string {
	return path.Join(d.OutputSubtree(), d.Name+".json")
}

// Error implements the error interface.
func (i LoadIssue) Error() string {
	return i.Path + ": " + i.Err.Error()
}

// Unwrap returns the underlying cause.
func (i LoadIssue) Unwrap() error { return i.Err }

// Version returns the version declared by the unit definition.
func (u *Unit) Version() float64 {
	if u.Entity == nil {
		return 0
	}
	return u.Entity.DeclaredVersion()
}

// Integration returns the integration payload of the unit, if it is one.
func (u *Unit) Integration() (*Integration, bool) {
	in, ok := u.Entity.(*Integration)
	return in, ok
}

// Playbook returns the playbook payload of the unit, if it is one.
func (u *Unit) Playbook() (*Playbook, bool) {
	pb, ok := u.Entity.(*Playbook)
	return pb, ok
}

// HasFile reports whether the unit contains the given relative file.
func (u *Unit) HasFile(rel string) bool {
	_, found := slices.BinarySearch(u.Files, rel)
	return found
}

// FilesIn returns the files directly inside dir (not recursive).
func (u *Unit) FilesIn(dir string) []string {
	var out []string
	for _, f := range u.Files {
		if path.Dir(f) == dir {
			out = append(out, f)
		}
	}
	return out
}
