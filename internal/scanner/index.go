// SPDX-License-Identifier: MPL-2.0

package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/soarmarket/mp/pkg/content"
)

type (
	// Index is the repository-wide lookup table for cross-unit references.
	// It is built once per run and holds plain identifiers only: references
	// are resolved lazily by the rules that need them.
	Index struct {
		mu sync.RWMutex
		// playbooks maps a playbook identifier to its playbook type.
		playbooks map[string]content.PlaybookType
		// libraries maps a normalized shared-library name to its published version.
		libraries map[string]string
	}

	playbookHeader struct {
		Identifier string               `yaml:"identifier"`
		Type       content.PlaybookType `yaml:"type"`
	}
)

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		playbooks: map[string]content.PlaybookType{},
		libraries: map[string]string{},
	}
}

// BuildIndex scans the source tree rooted at fsys for playbook identifiers
// and published shared-library versions. Units that cannot be read are
// skipped with a log line; they surface as violations when validated.
func BuildIndex(ctx context.Context, s *Scanner) (*Index, error) {
	idx := NewIndex()

	pbScan, err := New(Options{
		Root:    s.opts.Root,
		FS:      s.fsys,
		Form:    content.FormSource,
		Kinds:   []content.UnitKind{content.KindPlaybook},
		Exclude: s.opts.Exclude,
	})
	if err != nil {
		return nil, err
	}
	for desc, err := range pbScan.Scan(ctx) {
		if err != nil {
			var de *DiscoveryError
			if errors.As(err, &de) {
				continue
			}
			return nil, err
		}
		rel := desc.Rel
		data, err := fs.ReadFile(s.fsys, path.Join(rel, content.DefinitionFile))
		if err != nil {
			slog.Debug("index: skip unreadable playbook", "unit", desc.Name, "error", err)
			continue
		}
		var hdr playbookHeader
		if err := yaml.Unmarshal(data, &hdr); err != nil || hdr.Identifier == "" {
			slog.Debug("index: skip playbook without identifier", "unit", desc.Name)
			continue
		}
		idx.AddPlaybook(hdr.Identifier, hdr.Type)
	}

	if err := idx.loadLibraries(s.fsys); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) loadLibraries(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, content.PackagesDirName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read shared libraries: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(content.PackagesDirName, e.Name(), content.PyprojectFile))
		if err != nil {
			continue
		}
		project, err := content.ParseProject(data)
		if err != nil || project.Name == "" {
			slog.Debug("index: skip shared library", "dir", e.Name(), "error", err)
			continue
		}
		idx.AddLibrary(project.Name, project.Version)
	}
	return nil
}

// AddPlaybook records a playbook identifier.
func (idx *Index) AddPlaybook(identifier string, t content.PlaybookType) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.playbooks[identifier] = t
}

// AddLibrary records the published version of a shared library.
func (idx *Index) AddLibrary(name, version string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.libraries[content.NormalizePackageName(name)] = version
}

// HasBlock reports whether identifier names a block in the repository.
func (idx *Index) HasBlock(identifier string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	t, ok := idx.playbooks[identifier]
	return ok && t == content.PlaybookBlock
}

// HasPlaybook reports whether identifier names any playbook or block.
func (idx *Index) HasPlaybook(identifier string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.playbooks[identifier]
	return ok
}

// LibraryVersion returns the published version of a shared library.
func (idx *Index) LibraryVersion(name string) (string, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, ok := idx.libraries[content.NormalizePackageName(name)]
	return v, ok
}
