// SPDX-License-Identifier: MPL-2.0

package deconstruct

import (
	"fmt"
	"path"
	"time"

	"github.com/soarmarket/mp/pkg/artifact"
	"github.com/soarmarket/mp/pkg/content"
)

func (w *writer) integration(a *artifact.Integration, now time.Time) error {
	params, err := parameters(a.IntegrationProperties)
	if err != nil {
		return fmt.Errorf("integration properties: %w", err)
	}
	def := content.IntegrationDefinition{
		Identifier:           a.Identifier,
		Name:                 a.DisplayName,
		Description:          a.Description,
		Version:              a.Version,
		Categories:           a.Categories,
		SupportedEntityTypes: a.SupportedEntityTypes,
		IsCustom:             a.IsCustom,
		IsCertified:          a.IsCertified,
		Parameters:           params,
	}
	if err := w.putYAML(content.DefinitionFile, def); err != nil {
		return err
	}
	if err := w.writeReleaseNotes(a.ReleaseNotes, now); err != nil {
		return err
	}
	if err := w.pyproject(a); err != nil {
		return err
	}
	if err := w.families(a.CustomFamilies); err != nil {
		return err
	}
	if err := w.mappingRules(a.MappingRules); err != nil {
		return err
	}

	groups := []struct {
		kind    content.ScriptKind
		scripts []artifact.Script
	}{
		{content.ScriptAction, a.Actions},
		{content.ScriptConnector, a.Connectors},
		{content.ScriptJob, a.Jobs},
	}
	for _, g := range groups {
		for _, s := range g.scripts {
			if err := w.script(g.kind, s); err != nil {
				return err
			}
		}
	}

	for _, wd := range a.ActionWidgets {
		stem := content.Canonical(wd.Title)
		meta := content.ActionWidgetMeta{
			Title:       wd.Title,
			Description: wd.Description,
			Type:        wd.Type,
			Scope:       wd.Scope,
			ActionName:  wd.ActionName,
		}
		if err := w.putYAML(path.Join(content.WidgetsDir, stem+content.MetadataSuffix), meta); err != nil {
			return err
		}
		if err := w.put(path.Join(content.WidgetsDir, stem+content.WidgetSuffix), []byte(wd.HTMLContent)); err != nil {
			return err
		}
	}

	for _, m := range a.Managers {
		if err := w.put(path.Join(content.CoreDir, m.Name+content.ScriptSuffix), []byte(m.Script)); err != nil {
			return err
		}
	}

	for _, r := range a.Resources {
		data := r.Content
		if r.Text != "" {
			data = []byte(r.Text)
		}
		if err := w.put(r.Path, data); err != nil {
			return err
		}
	}
	return nil
}

// pyproject writes the packaging metadata; a missing package section or
// dependency list is replaced by a placeholder.
func (w *writer) pyproject(a *artifact.Integration) error {
	p := content.Project{
		Name:    content.Canonical(a.Identifier),
		Version: "1.0",
	}
	if a.Package != nil {
		p = content.Project{
			Name:           a.Package.Name,
			Version:        a.Package.Version,
			Description:    a.Package.Description,
			RequiresPython: a.Package.RequiresPython,
			Dependencies:   a.Package.Dependencies,
		}
	}
	switch {
	case a.Package == nil:
		w.placeholder(content.PyprojectFile, "package metadata")
	case a.Package.Dependencies == nil:
		w.placeholder(content.PyprojectFile, "dependency list")
	}

	data, err := content.EncodeProject(p)
	if err != nil {
		return err
	}
	return w.put(content.PyprojectFile, data)
}

// families writes the custom families file only when the artifact has any.
func (w *writer) families(cfs []artifact.CustomFamily) error {
	if len(cfs) == 0 {
		return nil
	}
	out := make([]content.CustomFamily, 0, len(cfs))
	for _, f := range cfs {
		cf := content.CustomFamily{
			Family:      f.Family,
			Description: f.Description,
			ImageBase64: f.ImageBase64,
			IsCustom:    f.IsCustom,
		}
		for _, r := range f.Rules {
			cf.Rules = append(cf.Rules, content.FamilyRule(r))
		}
		out = append(out, cf)
	}
	return w.putYAML(content.CustomFamiliesFile, out)
}

// mappingRules writes the mapping rules file only when the artifact has any.
// Enumeration codes are written by name.
func (w *writer) mappingRules(rs []artifact.MappingRule) error {
	if len(rs) == 0 {
		return nil
	}
	out := make([]content.MappingRule, 0, len(rs))
	for i, r := range rs {
		transform, ok := content.TransformFromCode(r.TransformationFunction)
		if !ok {
			return fmt.Errorf("%w: mapping rule %d has transformation function %d", ErrUnknownCode, i+1, r.TransformationFunction)
		}
		extract, ok := content.ExtractFromCode(r.ExtractionFunction)
		if !ok {
			return fmt.Errorf("%w: mapping rule %d has extraction function %d", ErrUnknownCode, i+1, r.ExtractionFunction)
		}
		var comparisons [3]content.Comparison
		for j, code := range []int{
			r.RawDataPrimaryFieldComparisonType,
			r.RawDataSecondaryFieldComparisonType,
			r.RawDataThirdFieldComparisonType,
		} {
			c, ok := content.ComparisonFromCode(code)
			if !ok {
				return fmt.Errorf("%w: mapping rule %d has comparison type %d", ErrUnknownCode, i+1, code)
			}
			comparisons[j] = c
		}
		out = append(out, content.MappingRule{
			Source:                 r.Source,
			Product:                r.Product,
			EventName:              r.EventName,
			SecurityEventFieldName: r.SecurityEventFieldName,
			Transformation:         transform,
			TransformationParam:    r.TransformationFunctionParam,
			PrimaryMatchTerm:       r.RawDataPrimaryFieldMatchTerm,
			PrimaryComparison:      comparisons[0],
			SecondaryMatchTerm:     r.RawDataSecondaryFieldMatchTerm,
			SecondaryComparison:    comparisons[1],
			ThirdMatchTerm:         r.RawDataThirdFieldMatchTerm,
			ThirdComparison:        comparisons[2],
			IsArtifact:             r.IsArtifact,
			Extraction:             extract,
			ExtractionParam:        r.ExtractionFunctionParam,
		})
	}
	return w.putYAML(content.MappingRulesFile, out)
}

func (w *writer) script(kind content.ScriptKind, s artifact.Script) error {
	stem := content.Canonical(s.Name)
	if stem == "" {
		return fmt.Errorf("%s without a name", kind)
	}
	params, err := parameters(s.Parameters)
	if err != nil {
		return fmt.Errorf("%s %q: %w", kind, s.Name, err)
	}

	enabled := s.IsEnabled
	meta := content.ScriptMeta{
		Name:             s.Name,
		Description:      s.Description,
		IsCustom:         s.IsCustom,
		IsEnabled:        &enabled,
		IsAsync:          s.IsAsync,
		ScriptResultName: s.ScriptResultName,
		Parameters:       params,
		SimulationData:   s.SimulationDataJSON,
	}
	for _, dr := range s.DynamicResultsMetadata {
		cdr := content.DynamicResult{ResultName: dr.ResultName, ShowResult: dr.ShowResult}
		if dr.ResultExample != "" {
			cdr.ExamplePath = content.ExampleFileName(stem, dr.ResultName)
			if err := w.put(cdr.ExamplePath, []byte(dr.ResultExample)); err != nil {
				return err
			}
		}
		meta.DynamicResults = append(meta.DynamicResults, cdr)
	}

	src := content.Script{Kind: kind, Stem: stem}
	if err := w.put(src.ScriptPath(), []byte(s.Script)); err != nil {
		return err
	}
	return w.putYAML(src.MetadataPath(), meta)
}

func parameters(ps []artifact.Parameter) ([]content.Parameter, error) {
	if len(ps) == 0 {
		return nil, nil
	}
	out := make([]content.Parameter, 0, len(ps))
	for _, p := range ps {
		t, ok := content.ParamTypeFromCode(p.Type)
		if !ok {
			return nil, fmt.Errorf("%w: parameter %q has type %d", ErrUnknownCode, p.Name, p.Type)
		}
		out = append(out, content.Parameter{
			Name:           p.Name,
			Type:           t,
			Description:    p.Description,
			IsMandatory:    p.IsMandatory,
			DefaultValue:   p.DefaultValue,
			OptionalValues: p.OptionalValues,
		})
	}
	return out, nil
}
