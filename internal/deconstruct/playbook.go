// SPDX-License-Identifier: MPL-2.0

package deconstruct

import (
	"fmt"
	"path"
	"time"

	"github.com/soarmarket/mp/pkg/artifact"
	"github.com/soarmarket/mp/pkg/content"
)

// placeholderTriggerType matches every alert; exports without a trigger get
// one so the playbook stays loadable.
const placeholderTriggerType = "all"

func (w *writer) playbook(a *artifact.Playbook, now time.Time) error {
	d := a.Definition
	def := content.PlaybookDefinition{
		Identifier:  d.Identifier,
		Name:        d.Name,
		Description: d.Description,
		Version:     d.Version,
		Type:        content.PlaybookTypeFromCode(d.PlaybookType),
		IsEnabled:   d.IsEnable,
		Priority:    d.Priority,
		Category:    a.CategoryName,
		Tags:        d.Tags,
	}
	if err := w.putYAML(content.DefinitionFile, def); err != nil {
		return err
	}
	if err := w.writeReleaseNotes(a.ReleaseNotes, now); err != nil {
		return err
	}

	di := content.DisplayInfo{DisplayName: d.Name}
	if a.DisplayInfo != nil {
		di = content.DisplayInfo{
			DisplayName:           a.DisplayInfo.ContentHubDisplayName,
			Author:                a.DisplayInfo.Author,
			ContactEmail:          a.DisplayInfo.ContactEmail,
			IsVerified:            a.DisplayInfo.IsVerified,
			DependentIntegrations: a.DisplayInfo.DependentIntegrations,
		}
	} else {
		w.placeholder(content.DisplayInfoFile, "display info")
	}
	if err := w.putYAML(content.DisplayInfoFile, di); err != nil {
		return err
	}

	overviews := []content.Overview{}
	if a.OverviewTemplatesDetails == nil {
		w.placeholder(content.OverviewsFile, "overview templates")
	}
	for _, o := range a.OverviewTemplatesDetails {
		overviews = append(overviews, content.Overview{Identifier: o.Identifier, Name: o.Name, Roles: o.Roles})
	}
	if err := w.putYAML(content.OverviewsFile, overviews); err != nil {
		return err
	}

	if err := w.trigger(d, a.Definition.Triggers); err != nil {
		return err
	}

	for _, s := range d.Steps {
		if err := w.step(s); err != nil {
			return err
		}
	}

	for _, wd := range a.WidgetTemplates {
		stem := content.Canonical(wd.Title)
		meta := content.PlaybookWidgetMeta{
			Title:           wd.Title,
			Description:     wd.Description,
			Type:            wd.Type,
			Order:           wd.Order,
			Size:            wd.Size,
			StepIdentifier:  wd.StepIdentifier,
			BlockIdentifier: wd.BlockStepIdentifier,
		}
		if err := w.putYAML(path.Join(content.WidgetsDir, stem+content.MetadataSuffix), meta); err != nil {
			return err
		}
		if err := w.put(path.Join(content.WidgetsDir, stem+content.WidgetSuffix), []byte(wd.HTMLContent)); err != nil {
			return err
		}
	}
	return nil
}

// trigger writes a single trigger as a mapping. Several triggers are kept
// as a sequence so that validation reports them instead of losing data.
func (w *writer) trigger(d artifact.PlaybookDefinition, triggers []artifact.Trigger) error {
	if triggers == nil {
		w.placeholder(content.TriggerFile, "trigger")
		return w.putYAML(content.TriggerFile, content.Trigger{
			Identifier: content.Canonical(d.Identifier) + "_trigger",
			Type:       placeholderTriggerType,
		})
	}

	out := make([]content.Trigger, 0, len(triggers))
	for _, t := range triggers {
		ct := content.Trigger{Identifier: t.Identifier, Type: t.Type, LogicalOperator: t.LogicalOperator}
		for _, c := range t.Conditions {
			ct.Conditions = append(ct.Conditions, content.TriggerCondition(c))
		}
		out = append(out, ct)
	}
	if len(out) == 1 {
		return w.putYAML(content.TriggerFile, out[0])
	}
	return w.putYAML(content.TriggerFile, out)
}

func (w *writer) step(s artifact.Step) error {
	stem := content.Canonical(s.InstanceName)
	if stem == "" {
		return fmt.Errorf("step %q has no instance name", s.Identifier)
	}
	t, ok := content.StepTypeFromCode(s.Type)
	if !ok {
		return fmt.Errorf("%w: step %q has type %d", ErrUnknownCode, s.InstanceName, s.Type)
	}

	cs := content.Step{
		Identifier:              s.Identifier,
		InstanceName:            s.InstanceName,
		Name:                    s.Name,
		Description:             s.Description,
		Type:                    t,
		ActionProvider:          s.ActionProvider,
		ActionName:              s.ActionName,
		Integration:             s.Integration,
		IsAutomatic:             s.IsAutomatic,
		IsSkippable:             s.IsSkippable,
		AutoSkipOnFailure:       s.AutoSkipOnFailure,
		ParentStepIdentifiers:   s.ParentStepIdentifiers,
		PreviousResultCondition: s.PreviousResultCondition,
		IsDebugMockData:         s.IsDebugMockData,
	}
	for _, p := range s.Parameters {
		cs.Parameters = append(cs.Parameters, content.StepParameter(p))
	}
	if s.StepDebugData != nil {
		cs.DebugData = &content.StepDebugData{
			ResultValue: s.StepDebugData.ResultValue,
			ResultJSON:  s.StepDebugData.ResultJSON,
		}
	}
	return w.putYAML(path.Join(content.StepsDir, stem+content.MetadataSuffix), cs)
}
