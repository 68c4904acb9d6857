// SPDX-License-Identifier: MPL-2.0

package content

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type (
	// Project is the [project] table of an integration or shared-library
	// pyproject.toml. Only the fields the pipeline reads are modeled.
	Project struct {
		Name           string   `toml:"name"`
		Version        string   `toml:"version"`
		Description    string   `toml:"description,omitempty"`
		RequiresPython string   `toml:"requires-python,omitempty"`
		Dependencies   []string `toml:"dependencies"`
	}

	pyproject struct {
		Project Project `toml:"project"`
	}

	// Pin is a parsed requirement specifier such as "tipcommon==2.0.1".
	Pin struct {
		Package  string
		Operator string
		Version  string
	}
)

// ParseProject decodes the [project] table of a pyproject.toml document.
func ParseProject(data []byte) (Project, error) {
	var doc pyproject
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Project{}, fmt.Errorf("parse pyproject: %w", err)
	}
	return doc.Project, nil
}

// EncodeProject renders a pyproject.toml document holding the [project] table.
func EncodeProject(p Project) ([]byte, error) {
	if p.Dependencies == nil {
		p.Dependencies = []string{}
	}
	data, err := toml.Marshal(pyproject{Project: p})
	if err != nil {
		return nil, fmt.Errorf("encode pyproject: %w", err)
	}
	return data, nil
}

// Pins returns the parsed dependency specifiers of the project, skipping
// entries that carry no version constraint.
func (p Project) Pins() []Pin {
	var pins []Pin
	for _, dep := range p.Dependencies {
		if pin, ok := ParsePin(dep); ok {
			pins = append(pins, pin)
		}
	}
	return pins
}

// ParsePin parses "name[extras] <op> version ; marker". Environment markers
// and extras are dropped. The package name is normalized the way package
// indexes compare names (lowercase, '-' and '.' folded to '_').
func ParsePin(spec string) (Pin, bool) {
	spec, _, _ = strings.Cut(spec, ";")
	spec = strings.TrimSpace(spec)

	end := strings.IndexAny(spec, "=<>!~ [")
	if end <= 0 {
		return Pin{}, false
	}
	name := spec[:end]
	rest := strings.TrimSpace(spec[end:])
	if strings.HasPrefix(rest, "[") {
		closing := strings.Index(rest, "]")
		if closing < 0 {
			return Pin{}, false
		}
		rest = strings.TrimSpace(rest[closing+1:])
	}

	for _, op := range []string{"===", "==", "~=", "!=", ">=", "<=", ">", "<"} {
		if v, ok := strings.CutPrefix(rest, op); ok {
			version, _, _ := strings.Cut(strings.TrimSpace(v), ",")
			return Pin{Package: NormalizePackageName(name), Operator: op, Version: strings.TrimSpace(version)}, true
		}
	}
	return Pin{}, false
}

// NormalizePackageName folds a Python distribution name for comparison.
func NormalizePackageName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("-", "_", ".", "_").Replace(name)
}

// Exact reports whether the pin fixes a single version.
func (p Pin) Exact() bool {
	return p.Operator == "==" || p.Operator == "==="
}
