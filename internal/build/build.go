// SPDX-License-Identifier: MPL-2.0

package build

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/soarmarket/mp/internal/validate"
	"github.com/soarmarket/mp/pkg/artifact"
	"github.com/soarmarket/mp/pkg/content"
)

const (
	itemTypeIntegration = "Integration"
	itemTypePlaybook    = "Playbook"

	svgExt = ".svg"
)

// Build checks vs for error-severity violations and, when there are none,
// returns the encoded artifact of u.
func Build(u *content.Unit, vs validate.Violations) ([]byte, error) {
	if errs := vs.Errors(); len(errs) > 0 {
		return nil, &BuildAbortedError{Unit: u.Descriptor, Violations: errs}
	}

	var doc any
	var err error
	switch e := u.Entity.(type) {
	case *content.Integration:
		doc, err = Integration(u, e)
	case *content.Playbook:
		doc, err = Playbook(u, e)
	default:
		return nil, fmt.Errorf("build %s: unit has no entity", u.Descriptor)
	}
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", u.Descriptor, err)
	}
	return artifact.Encode(doc)
}

// Integration converts an integration into its artifact form.
func Integration(u *content.Unit, in *content.Integration) (*artifact.Integration, error) {
	def := in.Definition
	a := &artifact.Integration{
		Identifier:            def.Identifier,
		DisplayName:           def.Name,
		Description:           def.Description,
		Version:               def.Version,
		Categories:            nonNil(def.Categories),
		SupportedEntityTypes:  nonNil(def.SupportedEntityTypes),
		IsCustom:              def.IsCustom,
		IsCertified:           def.IsCertified,
		IntegrationProperties: parameters(def.Parameters),
		Actions:               scripts(in, content.ScriptAction),
		Connectors:            scripts(in, content.ScriptConnector),
		Jobs:                  scripts(in, content.ScriptJob),
		ActionWidgets:         actionWidgets(in.Widgets),
		Managers:              managers(in.Managers),
		Resources:             resources(in.Resources),
	}

	if u.HasFile(content.PyprojectFile) {
		a.Package = &artifact.Package{
			Name:           in.Project.Name,
			Version:        in.Project.Version,
			Description:    in.Project.Description,
			RequiresPython: in.Project.RequiresPython,
			Dependencies:   nonNil(in.Project.Dependencies),
		}
	}
	if u.HasFile(content.ReleaseNotesFile) {
		notes, err := releaseNotes(in.ReleaseNotes, def.Name, itemTypeIntegration)
		if err != nil {
			return nil, err
		}
		a.ReleaseNotes = notes
	}

	a.CustomFamilies = customFamilies(in.CustomFamilies)
	rules, err := mappingRules(in.MappingRules)
	if err != nil {
		return nil, err
	}
	a.MappingRules = rules
	return a, nil
}

// Playbook converts a playbook or block into its artifact form.
func Playbook(u *content.Unit, pb *content.Playbook) (*artifact.Playbook, error) {
	def := pb.Definition
	a := &artifact.Playbook{
		CategoryName:    def.Category,
		WidgetTemplates: playbookWidgets(pb.Widgets),
		Definition: artifact.PlaybookDefinition{
			Identifier:   def.Identifier,
			Name:         def.Name,
			Description:  def.Description,
			Version:      def.Version,
			PlaybookType: def.Type.Code(),
			IsEnable:     def.IsEnabled,
			Priority:     def.Priority,
			Tags:         def.Tags,
			Steps:        steps(pb.Steps),
		},
	}

	if u.HasFile(content.OverviewsFile) {
		a.OverviewTemplatesDetails = make([]artifact.OverviewTemplate, 0, len(pb.Overviews))
		for _, o := range pb.Overviews {
			a.OverviewTemplatesDetails = append(a.OverviewTemplatesDetails, artifact.OverviewTemplate{
				Identifier: o.Identifier,
				Name:       o.Name,
				Roles:      nonNil(o.Roles),
			})
		}
	}
	if u.HasFile(content.TriggerFile) {
		a.Definition.Triggers = make([]artifact.Trigger, 0, len(pb.Triggers))
		for _, t := range pb.Triggers {
			at := artifact.Trigger{
				Identifier:      t.Identifier,
				Type:            t.Type,
				LogicalOperator: t.LogicalOperator,
				Conditions:      make([]artifact.TriggerCondition, 0, len(t.Conditions)),
			}
			for _, c := range t.Conditions {
				at.Conditions = append(at.Conditions, artifact.TriggerCondition(c))
			}
			a.Definition.Triggers = append(a.Definition.Triggers, at)
		}
	}
	if u.HasFile(content.DisplayInfoFile) {
		di := pb.DisplayInfo
		a.DisplayInfo = &artifact.DisplayInfo{
			ContentHubDisplayName: di.DisplayName,
			Author:                di.Author,
			ContactEmail:          di.ContactEmail,
			IsVerified:            di.IsVerified,
			DependentIntegrations: nonNil(di.DependentIntegrations),
		}
	}
	if u.HasFile(content.ReleaseNotesFile) {
		notes, err := releaseNotes(pb.ReleaseNotes, def.Name, itemTypePlaybook)
		if err != nil {
			return nil, err
		}
		a.ReleaseNotes = notes
	}
	return a, nil
}

// WriteTo replaces the unit's exclusive output subtree under outRoot with
// the artifact. The file is written to a temporary name first and renamed,
// so readers never observe a partial artifact.
func WriteTo(outRoot string, d content.Descriptor, data []byte) (string, error) {
	dir := filepath.Join(outRoot, filepath.FromSlash(d.OutputSubtree()))
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close artifact: %w", err)
	}

	target := filepath.Join(outRoot, filepath.FromSlash(d.ArtifactFile()))
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename artifact: %w", err)
	}
	return target, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func parameters(ps []content.Parameter) []artifact.Parameter {
	out := make([]artifact.Parameter, 0, len(ps))
	for _, p := range ps {
		out = append(out, artifact.Parameter{
			Name:           p.Name,
			Type:           p.Type.Code(),
			Description:    p.Description,
			IsMandatory:    p.IsMandatory,
			DefaultValue:   p.DefaultValue,
			OptionalValues: p.OptionalValues,
		})
	}
	return out
}

func scripts(in *content.Integration, kind content.ScriptKind) []artifact.Script {
	src := in.ScriptsOf(kind)
	slices.SortStableFunc(src, func(a, b content.Script) int {
		return cmp.Or(
			strings.Compare(content.Canonical(a.Meta.Name), content.Canonical(b.Meta.Name)),
			strings.Compare(a.Stem, b.Stem),
		)
	})

	out := make([]artifact.Script, 0, len(src))
	for _, s := range src {
		m := s.Meta
		as := artifact.Script{
			Name:               m.Name,
			Description:        m.Description,
			Script:             s.Source,
			IsCustom:           m.IsCustom,
			IsEnabled:          m.Enabled(),
			IsAsync:            m.IsAsync,
			ScriptResultName:   m.ScriptResultName,
			Parameters:         parameters(m.Parameters),
			SimulationDataJSON: m.SimulationData,
		}
		for _, dr := range m.DynamicResults {
			as.DynamicResultsMetadata = append(as.DynamicResultsMetadata, artifact.DynamicResult{
				ResultName:    dr.ResultName,
				ShowResult:    dr.ShowResult,
				ResultExample: dr.Example,
			})
		}
		out = append(out, as)
	}
	return out
}

func actionWidgets(ws []content.ActionWidget) []artifact.ActionWidget {
	sorted := slices.Clone(ws)
	slices.SortStableFunc(sorted, func(a, b content.ActionWidget) int {
		return cmp.Or(
			strings.Compare(content.Canonical(a.Meta.Title), content.Canonical(b.Meta.Title)),
			strings.Compare(a.Stem, b.Stem),
		)
	})
	out := make([]artifact.ActionWidget, 0, len(sorted))
	for _, w := range sorted {
		out = append(out, artifact.ActionWidget{
			Title:       w.Meta.Title,
			Description: w.Meta.Description,
			Type:        w.Meta.Type,
			Scope:       w.Meta.Scope,
			ActionName:  w.Meta.ActionName,
			HTMLContent: w.HTML,
		})
	}
	return out
}

func managers(ms []content.Manager) []artifact.Manager {
	sorted := slices.Clone(ms)
	slices.SortFunc(sorted, func(a, b content.Manager) int { return strings.Compare(a.Name, b.Name) })
	out := make([]artifact.Manager, 0, len(sorted))
	for _, m := range sorted {
		out = append(out, artifact.Manager{Name: m.Name, Script: m.Source})
	}
	return out
}

func resources(rs []content.Resource) []artifact.Resource {
	sorted := slices.Clone(rs)
	slices.SortFunc(sorted, func(a, b content.Resource) int { return strings.Compare(a.Path, b.Path) })
	out := make([]artifact.Resource, 0, len(sorted))
	for _, r := range sorted {
		ar := artifact.Resource{Path: r.Path}
		if strings.EqualFold(path.Ext(r.Path), svgExt) {
			ar.Text = string(r.Data)
		} else {
			ar.Content = r.Data
		}
		out = append(out, ar)
	}
	return out
}

func customFamilies(families []content.CustomFamily) []artifact.CustomFamily {
	if len(families) == 0 {
		return nil
	}
	out := make([]artifact.CustomFamily, 0, len(families))
	for _, f := range families {
		af := artifact.CustomFamily{
			Family:      f.Family,
			Description: f.Description,
			ImageBase64: f.ImageBase64,
			IsCustom:    f.IsCustom,
			Rules:       make([]artifact.FamilyRule, 0, len(f.Rules)),
		}
		for _, r := range f.Rules {
			af.Rules = append(af.Rules, artifact.FamilyRule(r))
		}
		out = append(out, af)
	}
	return out
}

// mappingRules keeps declaration order and fails on enumeration values
// without a platform code.
func mappingRules(rs []content.MappingRule) ([]artifact.MappingRule, error) {
	if len(rs) == 0 {
		return nil, nil
	}
	out := make([]artifact.MappingRule, 0, len(rs))
	for i, r := range rs {
		if errs := r.Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("mapping rule %d: %w", i+1, errors.Join(errs...))
		}
		out = append(out, artifact.MappingRule{
			Source:                              r.Source,
			Product:                             r.Product,
			EventName:                           r.EventName,
			SecurityEventFieldName:              r.SecurityEventFieldName,
			TransformationFunction:              r.Transformation.Code(),
			TransformationFunctionParam:         r.TransformationParam,
			RawDataPrimaryFieldMatchTerm:        r.PrimaryMatchTerm,
			RawDataPrimaryFieldComparisonType:   r.PrimaryComparison.Code(),
			RawDataSecondaryFieldMatchTerm:      r.SecondaryMatchTerm,
			RawDataSecondaryFieldComparisonType: r.SecondaryComparison.Code(),
			RawDataThirdFieldMatchTerm:          r.ThirdMatchTerm,
			RawDataThirdFieldComparisonType:     r.ThirdComparison.Code(),
			IsArtifact:                          r.IsArtifact,
			ExtractionFunctionParam:             r.ExtractionParam,
			ExtractionFunction:                  r.Extraction.Code(),
		})
	}
	return out, nil
}

func releaseNotes(notes []content.ReleaseNote, itemName, itemType string) ([]artifact.ReleaseNote, error) {
	out := make([]artifact.ReleaseNote, 0, len(notes))
	for i, n := range notes {
		published, err := n.PublishTime()
		if err != nil {
			return nil, fmt.Errorf("release note %d: %w", i+1, err)
		}
		tag := n.ChangeTag.Normalized()
		out = append(out, artifact.ReleaseNote{
			Version:     n.Version,
			PublishTime: published.Unix(),
			Description: n.Description,
			New:         tag == content.TagNew,
			Regressive:  tag == content.TagRegressive,
			Removed:     tag == content.TagRemoved,
			Ticket:      n.Ticket,
			ItemName:    itemName,
			ItemType:    itemType,
		})
	}
	return out, nil
}

func steps(ss []content.Step) []artifact.Step {
	sorted := slices.Clone(ss)
	content.SortSteps(sorted)
	out := make([]artifact.Step, 0, len(sorted))
	for _, s := range sorted {
		as := artifact.Step{
			Identifier:              s.Identifier,
			InstanceName:            s.InstanceName,
			Name:                    s.Name,
			Description:             s.Description,
			Type:                    s.Type.Code(),
			ActionProvider:          s.ActionProvider,
			ActionName:              s.ActionName,
			Integration:             s.Integration,
			IsAutomatic:             s.IsAutomatic,
			IsSkippable:             s.IsSkippable,
			AutoSkipOnFailure:       s.AutoSkipOnFailure,
			ParentStepIdentifiers:   nonNil(s.ParentStepIdentifiers),
			PreviousResultCondition: s.PreviousResultCondition,
			Parameters:              make([]artifact.StepParameter, 0, len(s.Parameters)),
			IsDebugMockData:         s.IsDebugMockData,
		}
		for _, p := range s.Parameters {
			as.Parameters = append(as.Parameters, artifact.StepParameter(p))
		}
		if s.DebugData != nil {
			as.StepDebugData = &artifact.StepDebugData{
				ResultValue: s.DebugData.ResultValue,
				ResultJSON:  s.DebugData.ResultJSON,
			}
		}
		out = append(out, as)
	}
	return out
}

func playbookWidgets(ws []content.PlaybookWidget) []artifact.Widget {
	sorted := slices.Clone(ws)
	slices.SortStableFunc(sorted, func(a, b content.PlaybookWidget) int {
		return cmp.Or(
			strings.Compare(content.Canonical(a.Meta.Title), content.Canonical(b.Meta.Title)),
			strings.Compare(a.Stem, b.Stem),
		)
	})
	out := make([]artifact.Widget, 0, len(sorted))
	for _, w := range sorted {
		out = append(out, artifact.Widget{
			Title:               w.Meta.Title,
			Description:         w.Meta.Description,
			Type:                w.Meta.Type,
			Order:               w.Meta.Order,
			Size:                w.Meta.Size,
			StepIdentifier:      w.Meta.StepIdentifier,
			BlockStepIdentifier: w.Meta.BlockIdentifier,
			HTMLContent:         w.HTML,
		})
	}
	return out
}
