// SPDX-License-Identifier: MPL-2.0

package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/soarmarket/mp/pkg/content"
)

type (
	// Options configures a Scanner.
	Options struct {
		// Root is the OS path of the tree to scan: the repository root for
		// source scans, the output root for built scans.
		Root string
		// FS overrides os.DirFS(Root); used by tests.
		FS fs.FS
		// Form selects source units or built artifacts.
		Form content.Form
		// Kinds restricts the unit kinds scanned; empty means all.
		Kinds []content.UnitKind
		// Repositories restricts the repository kinds scanned; empty means all.
		Repositories []content.RepositoryKind
		// Exclude holds doublestar patterns matched against slash paths
		// relative to Root. Matching directories are not descended into.
		Exclude []string
	}

	// Scanner discovers content units. It never reads file contents.
	Scanner struct {
		opts Options
		fsys fs.FS
	}

	// Selection is the outcome of resolving units for one run. Failures are
	// fatal to the affected names only.
	Selection struct {
		Units    []content.Descriptor
		Failures []*DiscoveryError
	}

	// Matcher reports whether a slash path matches an exclusion pattern.
	Matcher func(rel string) bool
)

// New validates the options and returns a Scanner.
func New(opts Options) (*Scanner, error) {
	if opts.Form == "" {
		opts.Form = content.FormSource
	}
	if len(opts.Kinds) == 0 {
		opts.Kinds = content.UnitKinds()
	}
	if len(opts.Repositories) == 0 {
		opts.Repositories = content.RepositoryKinds()
	}
	for _, k := range opts.Kinds {
		if ok, errs := k.IsValid(); !ok {
			return nil, errors.Join(errs...)
		}
	}
	for _, r := range opts.Repositories {
		if ok, errs := r.IsValid(); !ok {
			return nil, errors.Join(errs...)
		}
	}
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = os.DirFS(opts.Root)
	}
	return &Scanner{opts: opts, fsys: fsys}, nil
}

// Excluder returns a matcher over the configured exclusion patterns.
func (s *Scanner) Excluder() Matcher {
	return NewMatcher(s.opts.Exclude)
}

// NewMatcher builds a Matcher from doublestar patterns. Invalid patterns
// never match.
func NewMatcher(patterns []string) Matcher {
	return func(rel string) bool {
		for _, p := range patterns {
			if ok, err := doublestar.Match(p, rel); err == nil && ok {
				return true
			}
		}
		return false
	}
}

// Scan lazily yields every unit under the configured trees. Errors for
// misplaced units are yielded in sequence; iteration continues after them.
// Duplicate names are not detected here; use Select.
func (s *Scanner) Scan(ctx context.Context) iter.Seq2[content.Descriptor, error] {
	return func(yield func(content.Descriptor, error) bool) {
		excluded := s.Excluder()
		for _, kind := range s.opts.Kinds {
			for _, repo := range s.opts.Repositories {
				base := s.treeDir(kind, repo)
				if _, err := fs.Stat(s.fsys, base); err != nil {
					if errors.Is(err, fs.ErrNotExist) {
						continue
					}
					if !yield(content.Descriptor{}, fmt.Errorf("scan %s: %w", base, err)) {
						return
					}
					continue
				}
				if !s.walkTree(ctx, kind, repo, base, excluded, yield) {
					return
				}
			}
		}
	}
}

// walkTree walks one (unit kind, repository kind) tree. It returns false
// when the consumer stopped the iteration.
func (s *Scanner) walkTree(
	ctx context.Context,
	kind content.UnitKind,
	repo content.RepositoryKind,
	base string,
	excluded Matcher,
	yield func(content.Descriptor, error) bool,
) bool {
	stopped := false
	err := fs.WalkDir(s.fsys, base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() || p == base {
			return nil
		}
		if excluded(p) {
			return fs.SkipDir
		}

		entries, err := fs.ReadDir(s.fsys, p)
		if err != nil {
			return err
		}
		found, ok := Classify(s.opts.Form, kind, d.Name(), entryNames(entries))
		if !ok {
			return nil
		}

		desc := content.Descriptor{
			Kind:       kind,
			Repository: repo,
			Name:       content.Canonical(d.Name()),
			Root:       filepath.Join(s.opts.Root, filepath.FromSlash(p)),
			Rel:        p,
			Form:       s.opts.Form,
		}
		var yieldErr error
		if found != kind {
			yieldErr = &DiscoveryError{
				Kind:       kind,
				Repository: repo,
				Name:       desc.Name,
				Paths:      []string{desc.Root},
				Err:        fmt.Errorf("%w: classified as %s", ErrMisplacedUnit, found),
			}
		}
		if !yield(desc, yieldErr) {
			stopped = true
			return fs.SkipAll
		}
		return fs.SkipDir
	})
	if err != nil && !stopped {
		slog.Warn("scan aborted", "tree", base, "error", err)
		return yield(content.Descriptor{}, fmt.Errorf("scan %s: %w", base, err))
	}
	return !stopped
}

func (s *Scanner) treeDir(kind content.UnitKind, repo content.RepositoryKind) string {
	if s.opts.Form == content.FormBuilt {
		return content.OutputDir(kind, repo)
	}
	return content.SourceDir(kind, repo)
}

func entryNames(entries []fs.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

// Classify maps the file names found in one directory to a unit kind. It is
// the single place where marker files decide unit boundaries:
//
//   - source: definition.yaml marks a unit. Inside the playbook tree it is a
//     playbook, and a missing trigger.yaml is left to validation. Inside the
//     integration tree a trigger.yaml reveals a misplaced playbook;
//   - built: a "<dir>.json" artifact marks a unit of the enclosing tree kind.
//
// A directory with no markers is not a unit; it is either a grouping
// directory or a resource of an enclosing unit.
func Classify(form content.Form, tree content.UnitKind, dirName string, files []string) (content.UnitKind, bool) {
	has := func(name string) bool { return slices.Contains(files, name) }
	switch form {
	case content.FormBuilt:
		if has(dirName + ".json") {
			return tree, true
		}
		return "", false
	default:
		if !has(content.DefinitionFile) {
			return "", false
		}
		if tree == content.KindPlaybook || has(content.TriggerFile) {
			return content.KindPlaybook, true
		}
		return content.KindIntegration, true
	}
}

// Select scans every tree once and resolves the requested names. With no
// names every discovered unit is selected. Names are compared by canonical
// form. Units sharing a canonical name within one repository kind are never
// selected: each such group becomes one DiscoveryError.
func (s *Scanner) Select(ctx context.Context, names []string) (*Selection, error) {
	type groupKey struct {
		kind content.UnitKind
		repo content.RepositoryKind
		name string
	}
	groups := map[groupKey][]content.Descriptor{}
	var order []groupKey
	sel := &Selection{}

	for desc, err := range s.Scan(ctx) {
		if err != nil {
			var de *DiscoveryError
			if errors.As(err, &de) {
				sel.Failures = append(sel.Failures, de)
				continue
			}
			return nil, err
		}
		k := groupKey{desc.Kind, desc.Repository, desc.Name}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], desc)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	wanted := map[string]bool{}
	for _, n := range names {
		wanted[content.Canonical(n)] = true
	}
	matched := map[string]bool{}

	for _, k := range order {
		if len(wanted) > 0 && !wanted[k.name] {
			continue
		}
		matched[k.name] = true
		descs := groups[k]
		if len(descs) > 1 {
			paths := make([]string, 0, len(descs))
			for _, d := range descs {
				paths = append(paths, d.Root)
			}
			slices.Sort(paths)
			sel.Failures = append(sel.Failures, &DiscoveryError{
				Kind: k.kind, Repository: k.repo, Name: k.name, Paths: paths, Err: ErrDuplicateUnit,
			})
			continue
		}
		sel.Units = append(sel.Units, descs[0])
	}

	for _, n := range names {
		if matched[content.Canonical(n)] {
			continue
		}
		sel.Failures = append(sel.Failures, &DiscoveryError{
			Kind: s.kindLabel(), Name: n, Err: ErrUnitNotFound,
		})
	}

	slices.SortFunc(sel.Units, func(a, b content.Descriptor) int {
		return strings.Compare(a.Key(), b.Key())
	})
	return sel, nil
}

// kindLabel names the requested kind in not-found errors when the scan is
// restricted to a single unit kind.
func (s *Scanner) kindLabel() content.UnitKind {
	if len(s.opts.Kinds) == 1 {
		return s.opts.Kinds[0]
	}
	return ""
}
