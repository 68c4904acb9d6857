// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"io/fs"

	"github.com/spf13/afero"

	"github.com/soarmarket/mp/internal/build"
	"github.com/soarmarket/mp/internal/deconstruct"
	"github.com/soarmarket/mp/internal/validate"
	"github.com/soarmarket/mp/pkg/artifact"
	"github.com/soarmarket/mp/pkg/content"
)

type (
	// KindHandler bundles the kind-specific stages of the pipeline.
	KindHandler struct {
		// Load reads a source unit from a filesystem rooted at the unit.
		Load func(fsys fs.FS, d content.Descriptor, opts ...content.LoadOption) (*content.Unit, error)
		// Build produces the artifact; it refuses units with error violations.
		Build func(u *content.Unit, vs validate.Violations) ([]byte, error)
		// Deconstruct writes the source layout of an artifact into dst.
		Deconstruct func(data []byte, dst afero.Fs, opts deconstruct.Options) (*deconstruct.Result, error)
		// Target returns the directory name Deconstruct writes an artifact to.
		Target func(data []byte) (string, error)
		// Entry summarizes a built artifact for the marketplace indexes.
		Entry func(data []byte) (IndexEntry, error)
	}

	// IndexEntry is one record of marketplace.json or playbooks.json.
	IndexEntry struct {
		Identifier string                 `json:"Identifier"`
		Name       string                 `json:"Name"`
		Version    float64                `json:"Version"`
		Repository content.RepositoryKind `json:"Repository"`
		Categories []string               `json:"Categories,omitempty"`
		Type       string                 `json:"Type,omitempty"`
	}
)

// DefaultHandlers returns the dispatch table for every unit kind.
func DefaultHandlers() map[content.UnitKind]KindHandler {
	return map[content.UnitKind]KindHandler{
		content.KindIntegration: {
			Load:  content.Load,
			Build: build.Build,
			Deconstruct: func(data []byte, dst afero.Fs, opts deconstruct.Options) (*deconstruct.Result, error) {
				return deconstruct.Deconstruct(content.KindIntegration, data, dst, opts)
			},
			Target: func(data []byte) (string, error) {
				return deconstruct.TargetName(content.KindIntegration, data)
			},
			Entry: integrationEntry,
		},
		content.KindPlaybook: {
			Load:  content.Load,
			Build: build.Build,
			Deconstruct: func(data []byte, dst afero.Fs, opts deconstruct.Options) (*deconstruct.Result, error) {
				return deconstruct.Deconstruct(content.KindPlaybook, data, dst, opts)
			},
			Target: func(data []byte) (string, error) {
				return deconstruct.TargetName(content.KindPlaybook, data)
			},
			Entry: playbookEntry,
		},
	}
}

func integrationEntry(data []byte) (IndexEntry, error) {
	a, err := artifact.DecodeIntegration(data)
	if err != nil {
		return IndexEntry{}, err
	}
	return IndexEntry{
		Identifier: a.Identifier,
		Name:       a.DisplayName,
		Version:    a.Version,
		Categories: a.Categories,
	}, nil
}

func playbookEntry(data []byte) (IndexEntry, error) {
	a, err := artifact.DecodePlaybook(data)
	if err != nil {
		return IndexEntry{}, err
	}
	return IndexEntry{
		Identifier: a.Definition.Identifier,
		Name:       a.Definition.Name,
		Version:    a.Definition.Version,
		Type:       string(content.PlaybookTypeFromCode(a.Definition.PlaybookType)),
	}, nil
}
