// SPDX-License-Identifier: MPL-2.0

package validate

import (
	"path"
	"strings"

	"github.com/soarmarket/mp/internal/dag"
	"github.com/soarmarket/mp/pkg/content"
)

// Structural rule ids.
const (
	RuleLoadParse            RuleID = "load-parse"
	RuleRequiredFiles        RuleID = "required-files"
	RuleFileNaming           RuleID = "file-naming"
	RuleScriptMetadataParity RuleID = "script-metadata-parity"
	RuleScriptNameCanonical  RuleID = "script-name-canonical"
	RuleSingleTrigger        RuleID = "single-trigger"
	RuleUniqueStepIDs        RuleID = "unique-step-ids"
	RuleStepGraph            RuleID = "step-graph"
)

var (
	requiredIntegrationFiles = []string{
		content.DefinitionFile,
		content.ReleaseNotesFile,
		content.PyprojectFile,
	}
	requiredPlaybookFiles = []string{
		content.DefinitionFile,
		content.DisplayInfoFile,
		content.OverviewsFile,
		content.ReleaseNotesFile,
		content.TriggerFile,
	}
)

func registerStructural(reg *Registry) {
	both := []content.UnitKind{content.KindIntegration, content.KindPlaybook}

	reg.Register(NewRule(RuleLoadParse, ClassStructural, SeverityError, checkLoadParse), both...)
	reg.Register(NewRule(RuleRequiredFiles, ClassStructural, SeverityError, checkRequiredFiles), both...)
	reg.Register(NewRule(RuleFileNaming, ClassStructural, SeverityError, checkFileNaming), both...)
	reg.Register(NewRule(RuleScriptMetadataParity, ClassStructural, SeverityError, checkMetadataParity), both...)
	reg.Register(NewRule(RuleScriptNameCanonical, ClassStructural, SeverityError, checkCanonicalStems), both...)
	reg.Register(NewRule(RuleSingleTrigger, ClassStructural, SeverityError, checkSingleTrigger), content.KindPlaybook)
	reg.Register(NewRule(RuleUniqueStepIDs, ClassStructural, SeverityError, checkUniqueStepIDs), content.KindPlaybook)
	reg.Register(NewRule(RuleStepGraph, ClassStructural, SeverityError, checkStepGraph), content.KindPlaybook)
}

func checkLoadParse(_ *Env, s *Subject, r *Reporter) {
	for _, li := range s.Unit.LoadIssues {
		r.Add(li.Path, "%v", li.Err)
	}
}

func checkRequiredFiles(_ *Env, s *Subject, r *Reporter) {
	u := s.Unit
	required := requiredIntegrationFiles
	if u.Kind == content.KindPlaybook {
		required = requiredPlaybookFiles
	}
	for _, f := range required {
		if !u.HasFile(f) {
			r.Add(f, "required file is missing")
		}
	}
	if u.Kind == content.KindPlaybook && !hasDir(u, content.StepsDir) {
		r.Add(content.StepsDir, "required directory is missing or empty")
	}
}

func hasDir(u *content.Unit, dir string) bool {
	prefix := dir + "/"
	for _, f := range u.Files {
		if strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return false
}

// checkFileNaming reports each offending path element once, at the shortest
// path that contains it.
func checkFileNaming(_ *Env, s *Subject, r *Reporter) {
	seen := map[string]bool{}
	for _, f := range s.Unit.Files {
		parts := strings.Split(f, "/")
		for i, part := range parts {
			p := strings.Join(parts[:i+1], "/")
			if seen[p] {
				break
			}
			seen[p] = true
			if content.IsCanonicalFileName(part) {
				continue
			}
			r.Add(p, "name %q must be lowercase with underscores", part)
			break
		}
	}
}

func checkMetadataParity(_ *Env, s *Subject, r *Reporter) {
	u := s.Unit
	if u.Kind == content.KindIntegration {
		for _, kind := range content.ScriptKinds() {
			pairFiles(u, kind.Dir(), content.ScriptSuffix, content.MetadataSuffix, r)
		}
	}
	pairFiles(u, content.WidgetsDir, content.WidgetSuffix, content.MetadataSuffix, r)
}

// pairFiles reports every file of dir with suffix a lacking a same-stem
// sibling with suffix b, and vice versa.
func pairFiles(u *content.Unit, dir, a, b string, r *Reporter) {
	files := u.FilesIn(dir)
	has := make(map[string]bool, len(files))
	for _, f := range files {
		has[f] = true
	}
	for _, f := range files {
		ext := path.Ext(f)
		stem := strings.TrimSuffix(f, ext)
		switch ext {
		case a:
			if !has[stem+b] {
				r.Add(f, "missing paired file %s", path.Base(stem+b))
			}
		case b:
			if !has[stem+a] {
				r.Add(f, "missing paired file %s", path.Base(stem+a))
			}
		}
	}
}

// checkCanonicalStems requires every named child file to be named after the
// canonical form of the name it declares, so that building and
// deconstructing agree on file names.
func checkCanonicalStems(_ *Env, s *Subject, r *Reporter) {
	switch e := s.Unit.Entity.(type) {
	case *content.Integration:
		for _, sc := range e.Scripts {
			if !s.Unit.HasFile(sc.MetadataPath()) {
				continue
			}
			expectStem(r, sc.MetadataPath(), sc.Stem, sc.Meta.Name, "name")
		}
		for _, w := range e.Widgets {
			widgetStem(s.Unit, r, w.Stem, w.Meta.Title)
		}
	case *content.Playbook:
		for _, st := range e.Steps {
			expectStem(r, path.Join(content.StepsDir, st.FileStem+content.MetadataSuffix), st.FileStem, st.InstanceName, "instance_name")
		}
		for _, w := range e.Widgets {
			widgetStem(s.Unit, r, w.Stem, w.Meta.Title)
		}
	}
}

// widgetStem checks widgets that have a metadata file; a lone HTML file is
// reported by the parity rule.
func widgetStem(u *content.Unit, r *Reporter, stem, title string) {
	meta := path.Join(content.WidgetsDir, stem+content.MetadataSuffix)
	if u.HasFile(meta) {
		expectStem(r, meta, stem, title, "title")
	}
}

func expectStem(r *Reporter, file, stem, name, field string) {
	if name == "" {
		r.Add(file, "%s is empty", field)
		return
	}
	if want := content.Canonical(name); stem != want {
		r.Add(file, "file stem %q does not match %s %q (expected %q)", stem, field, name, want)
	}
}

func checkSingleTrigger(_ *Env, s *Subject, r *Reporter) {
	pb, ok := s.Unit.Playbook()
	if !ok {
		return
	}
	var extra []string
	for _, f := range s.Unit.FilesIn(".") {
		if f != content.TriggerFile && strings.HasPrefix(f, "trigger") && path.Ext(f) == content.MetadataSuffix {
			extra = append(extra, f)
		}
	}
	for _, f := range extra {
		r.Add(f, "a playbook has exactly one trigger file, %s", content.TriggerFile)
	}
	if s.Unit.HasFile(content.TriggerFile) && len(pb.Triggers) != 1 && !hasIssue(s.Unit, content.TriggerFile) {
		r.Add(content.TriggerFile, "expected exactly one trigger, found %d", len(pb.Triggers))
	}
}

func hasIssue(u *content.Unit, p string) bool {
	for _, li := range u.LoadIssues {
		if li.Path == p {
			return true
		}
	}
	return false
}

func checkUniqueStepIDs(_ *Env, s *Subject, r *Reporter) {
	pb, ok := s.Unit.Playbook()
	if !ok {
		return
	}
	first := map[string]string{}
	for _, st := range pb.Steps {
		file := path.Join(content.StepsDir, st.FileStem+content.MetadataSuffix)
		if st.Identifier == "" {
			r.Add(file, "step has no identifier")
			continue
		}
		if prev, dup := first[st.Identifier]; dup {
			r.Add(file, "step identifier %q is already used by %s", st.Identifier, prev)
			continue
		}
		first[st.Identifier] = file
	}
}

// checkStepGraph requires every parent step to exist and the steps to form
// an acyclic graph. Steps without an identifier, or whose identifier is
// duplicated, are left to unique-step-ids.
func checkStepGraph(_ *Env, s *Subject, r *Reporter) {
	pb, ok := s.Unit.Playbook()
	if !ok {
		return
	}
	g := dag.New()
	for _, st := range pb.Steps {
		if st.Identifier != "" {
			g.AddStep(st.Identifier)
		}
	}
	for _, st := range pb.Steps {
		if st.Identifier == "" {
			continue
		}
		file := path.Join(content.StepsDir, st.FileStem+content.MetadataSuffix)
		for _, parent := range st.ParentStepIdentifiers {
			if !g.Has(parent) {
				r.Add(file, "parent step %q does not exist", parent)
				continue
			}
			g.Link(parent, st.Identifier)
		}
	}
	if _, err := g.Order(); err != nil {
		r.Add(content.StepsDir, "%v", err)
	}
}
