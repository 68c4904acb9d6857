// SPDX-License-Identifier: MPL-2.0

package validate

import (
	"unicode/utf8"

	"github.com/soarmarket/mp/pkg/artifact"
	"github.com/soarmarket/mp/pkg/content"
)

// Post-build rule ids.
const (
	RuleArtifactLimits RuleID = "artifact-limits"
	RuleRoundTrip      RuleID = "round-trip"
)

// Rule ids reported by pipeline stages outside the rule registry.
const (
	RulePlaceholder          RuleID = "placeholder"
	RuleTimeBound            RuleID = "time-bound"
	RuleDuplicateIntegration RuleID = "duplicate-integration"
	RuleBuild                RuleID = "build"
)

// Platform limits of the deployable format.
const (
	MaxDescriptionLength = 2200
	MaxDisplayNameLength = 150
	MaxParameterCount    = 50
)

func registerPostBuild(reg *Registry) {
	both := []content.UnitKind{content.KindIntegration, content.KindPlaybook}

	reg.Register(NewRule(RuleArtifactLimits, ClassPostBuild, SeverityError, checkArtifactLimits), both...)
	reg.Register(NewRule(RuleRoundTrip, ClassPostBuild, SeverityError, checkRoundTrip), both...)
}

func checkArtifactLimits(_ *Env, s *Subject, r *Reporter) {
	if s.Artifact == nil {
		return
	}
	file := s.Unit.Name + ".json"
	switch s.Unit.Kind {
	case content.KindIntegration:
		a, err := artifact.DecodeIntegration(s.Artifact)
		if err != nil {
			r.Add(file, "%v", err)
			return
		}
		limitText(r, file, "integration description", a.Description, MaxDescriptionLength)
		limitText(r, file, "integration display name", a.DisplayName, MaxDisplayNameLength)
		limitCount(r, file, "integration parameters", len(a.IntegrationProperties))
		for _, group := range [][]artifact.Script{a.Actions, a.Connectors, a.Jobs} {
			for _, sc := range group {
				limitText(r, file, "description of "+sc.Name, sc.Description, MaxDescriptionLength)
				limitText(r, file, "display name "+sc.Name, sc.Name, MaxDisplayNameLength)
				limitCount(r, file, "parameters of "+sc.Name, len(sc.Parameters))
			}
		}
		for _, f := range a.CustomFamilies {
			limitText(r, file, "description of family "+f.Family, f.Description, MaxDescriptionLength)
		}
	case content.KindPlaybook:
		a, err := artifact.DecodePlaybook(s.Artifact)
		if err != nil {
			r.Add(file, "%v", err)
			return
		}
		limitText(r, file, "playbook description", a.Definition.Description, MaxDescriptionLength)
		limitText(r, file, "playbook name", a.Definition.Name, MaxDisplayNameLength)
		if a.DisplayInfo != nil {
			limitText(r, file, "content hub display name", a.DisplayInfo.ContentHubDisplayName, MaxDisplayNameLength)
		}
	}
}

func limitText(r *Reporter, file, what, s string, limit int) {
	if n := utf8.RuneCountInString(s); n > limit {
		r.Add(file, "%s is %d characters long, the limit is %d", what, n, limit)
	}
}

func limitCount(r *Reporter, file, what string, n int) {
	if n > MaxParameterCount {
		r.Add(file, "%s: %d declared, the limit is %d", what, n, MaxParameterCount)
	}
}

func checkRoundTrip(_ *Env, s *Subject, r *Reporter) {
	if s.Rebuilt == nil {
		return
	}
	for _, section := range content.Equivalent(s.Unit, s.Rebuilt) {
		r.Add(s.Unit.Name+".json", "deconstructing the artifact does not reproduce the source: %s differs", section)
	}
}
