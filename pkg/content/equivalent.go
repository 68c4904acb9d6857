// SPDX-License-Identifier: MPL-2.0

package content

import (
	"bytes"
	"fmt"
	"reflect"
	"slices"
)

// Equivalent compares two units structurally and returns a description of
// every section that differs. An empty result means the units carry the same
// entities, parameters, scripts, steps, widgets and mapping tables;
// differences in file formatting or in where an example file was stored are
// not reported.
func Equivalent(a, b *Unit) []string {
	if a.Kind != b.Kind {
		return []string{fmt.Sprintf("unit kind: %s != %s", a.Kind, b.Kind)}
	}
	switch ea := a.Entity.(type) {
	case *Integration:
		eb, ok := b.Entity.(*Integration)
		if !ok {
			return []string{"entity: missing integration payload"}
		}
		return equivalentIntegrations(ea, eb)
	case *Playbook:
		eb, ok := b.Entity.(*Playbook)
		if !ok {
			return []string{"entity: missing playbook payload"}
		}
		return equivalentPlaybooks(ea, eb)
	default:
		return []string{"entity: unknown payload"}
	}
}

type diff struct{ out []string }

func (d *diff) check(section string, a, b any) {
	if !reflect.DeepEqual(a, b) {
		d.out = append(d.out, section)
	}
}

func equivalentIntegrations(a, b *Integration) []string {
	var d diff
	d.check("definition", normIntegrationDef(a.Definition), normIntegrationDef(b.Definition))
	d.check("pyproject", normProject(a.Project), normProject(b.Project))
	d.check("release notes", normReleaseNotes(a.ReleaseNotes), normReleaseNotes(b.ReleaseNotes))

	if len(a.Scripts) != len(b.Scripts) {
		d.out = append(d.out, fmt.Sprintf("scripts: %d != %d", len(a.Scripts), len(b.Scripts)))
	} else {
		for i := range a.Scripts {
			d.check("script "+a.Scripts[i].ScriptPath(), normScript(a.Scripts[i]), normScript(b.Scripts[i]))
		}
	}
	d.check("widgets", nilIfEmpty(a.Widgets), nilIfEmpty(b.Widgets))
	d.check("managers", nilIfEmpty(a.Managers), nilIfEmpty(b.Managers))
	d.check("custom families", normFamilies(a.CustomFamilies), normFamilies(b.CustomFamilies))
	d.check("mapping rules", normMappingRules(a.MappingRules), normMappingRules(b.MappingRules))

	if !resourcesEqual(a.Resources, b.Resources) {
		d.out = append(d.out, "resources")
	}
	return d.out
}

func equivalentPlaybooks(a, b *Playbook) []string {
	var d diff
	d.check("definition", normPlaybookDef(a.Definition), normPlaybookDef(b.Definition))
	d.check("display info", normDisplayInfo(a.DisplayInfo), normDisplayInfo(b.DisplayInfo))
	d.check("overviews", normOverviews(a.Overviews), normOverviews(b.Overviews))
	d.check("release notes", normReleaseNotes(a.ReleaseNotes), normReleaseNotes(b.ReleaseNotes))
	d.check("trigger", normTriggers(a.Triggers), normTriggers(b.Triggers))

	if len(a.Steps) != len(b.Steps) {
		d.out = append(d.out, fmt.Sprintf("steps: %d != %d", len(a.Steps), len(b.Steps)))
	} else {
		for i := range a.Steps {
			d.check("step "+a.Steps[i].InstanceName, normStep(a.Steps[i]), normStep(b.Steps[i]))
		}
	}
	d.check("widgets", nilIfEmpty(a.Widgets), nilIfEmpty(b.Widgets))
	return d.out
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}

func normParams(ps []Parameter) []Parameter {
	out := make([]Parameter, 0, len(ps))
	for _, p := range ps {
		p.OptionalValues = nilIfEmpty(p.OptionalValues)
		out = append(out, p)
	}
	return nilIfEmpty(out)
}

func normIntegrationDef(d IntegrationDefinition) IntegrationDefinition {
	d.Categories = nilIfEmpty(d.Categories)
	d.SupportedEntityTypes = nilIfEmpty(d.SupportedEntityTypes)
	d.Parameters = normParams(d.Parameters)
	return d
}

func normProject(p Project) Project {
	p.Dependencies = nilIfEmpty(p.Dependencies)
	return p
}

func normReleaseNotes(rns []ReleaseNote) []ReleaseNote {
	out := make([]ReleaseNote, 0, len(rns))
	for _, rn := range rns {
		rn.ChangeTag = rn.ChangeTag.Normalized()
		out = append(out, rn)
	}
	return nilIfEmpty(out)
}

func normFamilies(fs []CustomFamily) []CustomFamily {
	out := make([]CustomFamily, 0, len(fs))
	for _, f := range fs {
		f.Rules = nilIfEmpty(f.Rules)
		out = append(out, f)
	}
	return nilIfEmpty(out)
}

func normMappingRules(rs []MappingRule) []MappingRule {
	out := make([]MappingRule, 0, len(rs))
	for _, r := range rs {
		r.Transformation = r.Transformation.Normalized()
		r.PrimaryComparison = r.PrimaryComparison.Normalized()
		r.SecondaryComparison = r.SecondaryComparison.Normalized()
		r.ThirdComparison = r.ThirdComparison.Normalized()
		r.Extraction = r.Extraction.Normalized()
		out = append(out, r)
	}
	return nilIfEmpty(out)
}

func normScript(s Script) Script {
	enabled := s.Meta.Enabled()
	s.Meta.IsEnabled = &enabled
	s.Meta.Parameters = normParams(s.Meta.Parameters)
	drs := make([]DynamicResult, 0, len(s.Meta.DynamicResults))
	for _, dr := range s.Meta.DynamicResults {
		dr.ExamplePath = ""
		drs = append(drs, dr)
	}
	s.Meta.DynamicResults = nilIfEmpty(drs)
	return s
}

func normPlaybookDef(d PlaybookDefinition) PlaybookDefinition {
	if d.Type == "" {
		d.Type = PlaybookRegular
	}
	d.Tags = nilIfEmpty(d.Tags)
	return d
}

func normDisplayInfo(di DisplayInfo) DisplayInfo {
	di.DependentIntegrations = nilIfEmpty(di.DependentIntegrations)
	return di
}

func normOverviews(ovs []Overview) []Overview {
	out := make([]Overview, 0, len(ovs))
	for _, o := range ovs {
		o.Roles = nilIfEmpty(o.Roles)
		out = append(out, o)
	}
	return nilIfEmpty(out)
}

func normTriggers(ts []Trigger) []Trigger {
	out := make([]Trigger, 0, len(ts))
	for _, t := range ts {
		t.Conditions = nilIfEmpty(t.Conditions)
		out = append(out, t)
	}
	return nilIfEmpty(out)
}

func normStep(s Step) Step {
	s.ParentStepIdentifiers = nilIfEmpty(s.ParentStepIdentifiers)
	s.Parameters = nilIfEmpty(s.Parameters)
	return s
}

func resourcesEqual(a, b []Resource) bool {
	return slices.EqualFunc(a, b, func(x, y Resource) bool {
		return x.Path == y.Path && bytes.Equal(x.Data, y.Data)
	})
}
