// SPDX-License-Identifier: MPL-2.0

package content

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrMissingReference is recorded when a descriptor points at a file that
// does not exist inside the unit.
var ErrMissingReference = errors.New("referenced file does not exist")

type (
	// loader accumulates load issues while reading one unit.
	loader struct {
		fsys   fs.FS
		unit   *Unit
		byPath map[string]bool
	}

	loadConfig struct {
		exclude func(rel string) bool
	}

	// LoadOption configures Load.
	LoadOption func(*loadConfig)
)

// WithExclude skips every file or directory of the unit for which exclude
// returns true. Paths are slash-separated and relative to the unit root.
func WithExclude(exclude func(rel string) bool) LoadOption {
	return func(c *loadConfig) { c.exclude = exclude }
}

// Load reads the unit described by d from fsys, which must be rooted at the
// unit directory. Only I/O failures of the unit root itself are returned as
// errors; unreadable or malformed files become LoadIssues.
func Load(fsys fs.FS, d Descriptor, opts ...LoadOption) (*Unit, error) {
	if ok, errs := d.Kind.IsValid(); !ok {
		return nil, errors.Join(errs...)
	}
	var cfg loadConfig
	for _, o := range opts {
		o(&cfg)
	}

	files, err := listFiles(fsys, cfg.exclude)
	if err != nil {
		return nil, fmt.Errorf("list files of %s: %w", d.Name, err)
	}

	u := &Unit{Descriptor: d, Files: files}
	l := &loader{fsys: fsys, unit: u, byPath: make(map[string]bool, len(files))}
	for _, f := range files {
		l.byPath[f] = true
	}

	switch d.Kind {
	case KindIntegration:
		u.Entity = l.integration()
	case KindPlaybook:
		u.Entity = l.playbook()
	}
	return u, nil
}

// listFiles returns every regular file under the root as sorted slash paths.
func listFiles(fsys fs.FS, exclude func(string) bool) ([]string, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != "." && exclude != nil && exclude(p) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

func (l *loader) issue(p string, err error) {
	l.unit.LoadIssues = append(l.unit.LoadIssues, LoadIssue{Path: p, Err: err})
}

// read returns the file content, or nil when the file is absent.
func (l *loader) read(p string) []byte {
	if !l.byPath[p] {
		return nil
	}
	data, err := fs.ReadFile(l.fsys, p)
	if err != nil {
		l.issue(p, err)
		return nil
	}
	return data
}

// yamlFile decodes a YAML descriptor into out. It returns false when the
// file is absent or malformed.
func (l *loader) yamlFile(p string, out any) bool {
	data := l.read(p)
	if data == nil {
		return false
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return true
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		l.issue(p, fmt.Errorf("parse yaml: %w", err))
		return false
	}
	return true
}

// stems groups the files of dir by stem and returns the sorted stems.
func (l *loader) stems(dir string, suffixes ...string) []string {
	seen := map[string]bool{}
	for _, f := range l.unit.FilesIn(dir) {
		ext := path.Ext(f)
		if !slices.Contains(suffixes, ext) {
			continue
		}
		seen[strings.TrimSuffix(path.Base(f), ext)] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

func (l *loader) integration() *Integration {
	in := &Integration{}
	l.yamlFile(DefinitionFile, &in.Definition)
	l.yamlFile(ReleaseNotesFile, &in.ReleaseNotes)
	l.yamlFile(CustomFamiliesFile, &in.CustomFamilies)
	l.yamlFile(MappingRulesFile, &in.MappingRules)

	if data := l.read(PyprojectFile); data != nil {
		project, err := ParseProject(data)
		if err != nil {
			l.issue(PyprojectFile, err)
		}
		in.Project = project
	}

	examples := map[string]bool{}
	for _, kind := range ScriptKinds() {
		for _, stem := range l.stems(kind.Dir(), ScriptSuffix, MetadataSuffix) {
			s := Script{Kind: kind, Stem: stem}
			s.Source = string(l.read(s.ScriptPath()))
			l.yamlFile(s.MetadataPath(), &s.Meta)
			for i := range s.Meta.DynamicResults {
				dr := &s.Meta.DynamicResults[i]
				if dr.ExamplePath == "" {
					continue
				}
				p := path.Clean(dr.ExamplePath)
				if !l.byPath[p] {
					l.issue(s.MetadataPath(), fmt.Errorf("%w: %s", ErrMissingReference, dr.ExamplePath))
					continue
				}
				dr.Example = string(l.read(p))
				examples[p] = true
			}
			in.Scripts = append(in.Scripts, s)
		}
	}

	for _, stem := range l.stems(WidgetsDir, MetadataSuffix, WidgetSuffix) {
		w := ActionWidget{Stem: stem}
		l.yamlFile(path.Join(WidgetsDir, stem+MetadataSuffix), &w.Meta)
		w.HTML = string(l.read(path.Join(WidgetsDir, stem+WidgetSuffix)))
		in.Widgets = append(in.Widgets, w)
	}

	for _, stem := range l.stems(CoreDir, ScriptSuffix) {
		in.Managers = append(in.Managers, Manager{
			Name:   stem,
			Source: string(l.read(path.Join(CoreDir, stem+ScriptSuffix))),
		})
	}

	for _, f := range l.unit.Files {
		if !strings.HasPrefix(f, ResourcesDir+"/") || examples[f] {
			continue
		}
		if data := l.read(f); data != nil {
			in.Resources = append(in.Resources, Resource{Path: f, Data: data})
		}
	}
	return in
}

func (l *loader) playbook() *Playbook {
	pb := &Playbook{}
	if l.yamlFile(DefinitionFile, &pb.Definition) {
		if ok, errs := pb.Definition.Type.IsValid(); !ok {
			l.issue(DefinitionFile, errors.Join(errs...))
		}
	}
	l.yamlFile(DisplayInfoFile, &pb.DisplayInfo)
	l.yamlFile(OverviewsFile, &pb.Overviews)
	l.yamlFile(ReleaseNotesFile, &pb.ReleaseNotes)
	pb.Triggers = l.triggers()

	for _, stem := range l.stems(StepsDir, MetadataSuffix) {
		var s Step
		file := path.Join(StepsDir, stem+MetadataSuffix)
		if l.yamlFile(file, &s) {
			if ok, errs := s.Type.IsValid(); !ok {
				l.issue(file, errors.Join(errs...))
			}
			s.FileStem = stem
			pb.Steps = append(pb.Steps, s)
		}
	}
	SortSteps(pb.Steps)

	for _, stem := range l.stems(WidgetsDir, MetadataSuffix, WidgetSuffix) {
		w := PlaybookWidget{Stem: stem}
		l.yamlFile(path.Join(WidgetsDir, stem+MetadataSuffix), &w.Meta)
		w.HTML = string(l.read(path.Join(WidgetsDir, stem+WidgetSuffix)))
		pb.Widgets = append(pb.Widgets, w)
	}
	return pb
}

// triggers accepts either a single mapping or a sequence of mappings so that
// a file declaring several triggers is reported rather than truncated.
func (l *loader) triggers() []Trigger {
	var node yaml.Node
	if !l.yamlFile(TriggerFile, &node) || len(node.Content) == 0 {
		return nil
	}
	doc := node.Content[0]
	if doc.Kind == yaml.SequenceNode {
		var many []Trigger
		if err := doc.Decode(&many); err != nil {
			l.issue(TriggerFile, fmt.Errorf("parse yaml: %w", err))
			return nil
		}
		return many
	}
	var one Trigger
	if err := doc.Decode(&one); err != nil {
		l.issue(TriggerFile, fmt.Errorf("parse yaml: %w", err))
		return nil
	}
	return []Trigger{one}
}

// SortSteps orders steps by canonical instance name, then by file stem.
func SortSteps(steps []Step) {
	slices.SortStableFunc(steps, func(a, b Step) int {
		if c := strings.Compare(Canonical(a.InstanceName), Canonical(b.InstanceName)); c != 0 {
			return c
		}
		return strings.Compare(a.FileStem, b.FileStem)
	})
}
