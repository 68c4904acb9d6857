// SPDX-License-Identifier: MPL-2.0

package deconstruct

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/soarmarket/mp/internal/validate"
	"github.com/soarmarket/mp/pkg/artifact"
	"github.com/soarmarket/mp/pkg/content"
)

type (
	// Options configures a deconstruction.
	Options struct {
		// Source names the artifact in errors.
		Source string
		// Now dates placeholder release notes. Defaults to time.Now.
		Now func() time.Time
	}

	// Result describes the unit written by Deconstruct.
	Result struct {
		// Name is the canonical unit directory name.
		Name string
		// Files lists the written files relative to the unit directory, sorted.
		Files []string
		// Violations holds one placeholder warning per filled file.
		Violations validate.Violations
	}

	// writer stages every file of a unit before anything touches the
	// destination, so a failing transform leaves no partial unit behind.
	writer struct {
		files map[string][]byte
		res   *Result
	}
)

// Deconstruct decodes an artifact of the given kind and writes the source
// layout into dst under a directory named after the unit. An existing
// directory of that name is replaced.
func Deconstruct(kind content.UnitKind, data []byte, dst afero.Fs, opts Options) (*Result, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Source == "" {
		opts.Source = string(kind) + " artifact"
	}
	fail := func(err error) error { return &TransformError{Source: opts.Source, Err: err} }

	w := &writer{files: map[string][]byte{}, res: &Result{}}
	var err error
	switch kind {
	case content.KindIntegration:
		var a *artifact.Integration
		if a, err = artifact.DecodeIntegration(data); err != nil {
			return nil, fail(fmt.Errorf("%w: %w", ErrMalformedArtifact, err))
		}
		w.res.Name = integrationName(a)
		err = w.integration(a, opts.Now())
	case content.KindPlaybook:
		var a *artifact.Playbook
		if a, err = artifact.DecodePlaybook(data); err != nil {
			return nil, fail(fmt.Errorf("%w: %w", ErrMalformedArtifact, err))
		}
		w.res.Name = playbookName(a)
		err = w.playbook(a, opts.Now())
	default:
		if ok, errs := kind.IsValid(); !ok {
			return nil, fail(errs[0])
		}
	}
	if err != nil {
		return nil, fail(err)
	}
	if w.res.Name == "" {
		return nil, fail(errNoName)
	}

	if err := w.flush(dst); err != nil {
		return nil, fail(err)
	}
	w.res.Violations.Sort()
	return w.res, nil
}

// TargetName decodes just enough of an artifact to return the directory
// name Deconstruct would write it to.
func TargetName(kind content.UnitKind, data []byte) (string, error) {
	var name string
	switch kind {
	case content.KindIntegration:
		a, err := artifact.DecodeIntegration(data)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrMalformedArtifact, err)
		}
		name = integrationName(a)
	case content.KindPlaybook:
		a, err := artifact.DecodePlaybook(data)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrMalformedArtifact, err)
		}
		name = playbookName(a)
	default:
		if ok, errs := kind.IsValid(); !ok {
			return "", errs[0]
		}
	}
	if name == "" {
		return "", errNoName
	}
	return name, nil
}

func integrationName(a *artifact.Integration) string {
	return content.Canonical(a.Identifier)
}

// playbookName falls back to the identifier for playbooks exported without
// a display name.
func playbookName(a *artifact.Playbook) string {
	if name := content.Canonical(a.Definition.Name); name != "" {
		return name
	}
	return content.Canonical(a.Definition.Identifier)
}

// put stages a file. Paths are relative to the unit directory.
func (w *writer) put(p string, data []byte) error {
	if !fs.ValidPath(p) || p == "." {
		return fmt.Errorf("%w: %q", ErrUnsafePath, p)
	}
	if _, dup := w.files[p]; dup {
		return fmt.Errorf("%w: %s", ErrFileCollision, p)
	}
	w.files[p] = data
	return nil
}

func (w *writer) putYAML(p string, v any) error {
	data, err := encodeYAML(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	return w.put(p, data)
}

// placeholder records the warning for a file filled with placeholder content.
func (w *writer) placeholder(p, what string) {
	w.res.Violations = append(w.res.Violations, validate.Violation{
		RuleID:   validate.RulePlaceholder,
		Severity: validate.SeverityWarning,
		Path:     p,
		Message:  fmt.Sprintf("artifact has no %s; a placeholder was written and must be completed", what),
	})
}

func (w *writer) flush(dst afero.Fs) error {
	if err := dst.RemoveAll(w.res.Name); err != nil {
		return fmt.Errorf("clear %s: %w", w.res.Name, err)
	}
	names := make([]string, 0, len(w.files))
	for p := range w.files {
		names = append(names, p)
	}
	slices.Sort(names)
	for _, p := range names {
		full := path.Join(w.res.Name, p)
		if err := dst.MkdirAll(path.Dir(full), 0o755); err != nil {
			return fmt.Errorf("create %s: %w", path.Dir(full), err)
		}
		if err := afero.WriteFile(dst, full, w.files[p], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", full, err)
		}
	}
	w.res.Files = names
	return nil
}

func encodeYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func releaseNotes(notes []artifact.ReleaseNote) []content.ReleaseNote {
	out := make([]content.ReleaseNote, 0, len(notes))
	for _, n := range notes {
		tag := content.TagChange
		switch {
		case n.New:
			tag = content.TagNew
		case n.Regressive:
			tag = content.TagRegressive
		case n.Removed:
			tag = content.TagRemoved
		}
		out = append(out, content.ReleaseNote{
			Version:     n.Version,
			PublishDate: time.Unix(n.PublishTime, 0).UTC().Format(content.DateLayout),
			Description: n.Description,
			ChangeTag:   tag,
			Ticket:      n.Ticket,
		})
	}
	return out
}

// writeReleaseNotes writes the notes, or a placeholder entry when the
// artifact carries none.
func (w *writer) writeReleaseNotes(notes []artifact.ReleaseNote, now time.Time) error {
	if notes == nil {
		w.placeholder(content.ReleaseNotesFile, "release notes")
		return w.putYAML(content.ReleaseNotesFile, []content.ReleaseNote{content.PlaceholderReleaseNote(now)})
	}
	return w.putYAML(content.ReleaseNotesFile, releaseNotes(notes))
}
