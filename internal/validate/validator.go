// SPDX-License-Identifier: MPL-2.0

package validate

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/soarmarket/mp/pkg/content"
)

type (
	// Options configures a Validator.
	Options struct {
		// Registry defaults to DefaultRegistry().
		Registry *Registry
		// Severities overrides the default severity of semantic and
		// post-build rules. SeverityOff disables a rule.
		Severities map[RuleID]Severity
		// OnlyPreBuild skips the post-build stage.
		OnlyPreBuild bool
		// ResultPatterns extend DefaultResultPatterns.
		ResultPatterns []string
		// Index resolves cross-unit references. Optional.
		Index Resolver
		// Now defaults to time.Now.
		Now func() time.Time
	}

	// Validator runs the registered rules against units. It is safe for
	// concurrent use once constructed.
	Validator struct {
		registry   *Registry
		severities map[RuleID]Severity
		env        *Env
		preOnly    bool
	}
)

// DefaultRegistry returns a registry holding every built-in rule.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	registerStructural(reg)
	registerSemantic(reg)
	registerPostBuild(reg)
	return reg
}

// New validates opts and returns a Validator. Unknown rule ids, structural
// overrides and invalid patterns are configuration errors.
func New(opts Options) (*Validator, error) {
	reg := opts.Registry
	if reg == nil {
		reg = DefaultRegistry()
	}

	var errs []error
	severities := make(map[RuleID]Severity, len(opts.Severities))
	for id, sev := range opts.Severities {
		rule, ok := reg.Lookup(id)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownRule, id))
			continue
		}
		if rule.Class() == ClassStructural {
			errs = append(errs, fmt.Errorf("%w: %q", ErrStructuralOverride, id))
			continue
		}
		if ok, sevErrs := sev.IsValid(); !ok {
			errs = append(errs, sevErrs...)
			continue
		}
		severities[id] = sev
	}

	patterns := make([]*regexp.Regexp, 0, len(DefaultResultPatterns)+len(opts.ResultPatterns))
	for _, p := range append(append([]string{}, DefaultResultPatterns...), opts.ResultPatterns...) {
		re, err := regexp.Compile(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("result pattern %q: %w", p, err))
			continue
		}
		patterns = append(patterns, re)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Validator{
		registry:   reg,
		severities: severities,
		preOnly:    opts.OnlyPreBuild,
		env: &Env{
			Index:          opts.Index,
			Now:            now(),
			ResultPatterns: patterns,
		},
	}, nil
}

// PostBuildEnabled reports whether the post-build stage runs.
func (v *Validator) PostBuildEnabled() bool { return !v.preOnly }

// Severity returns the effective severity of rule id.
func (v *Validator) Severity(id RuleID) Severity {
	if sev, ok := v.severities[id]; ok {
		return sev
	}
	if rule, ok := v.registry.Lookup(id); ok {
		return rule.DefaultSeverity()
	}
	return SeverityError
}

// Validate runs the structural and semantic rules for the unit's kind. The
// result is sorted; it is never cut short by a failing rule.
func (v *Validator) Validate(u *content.Unit) Violations {
	return v.run(&Subject{Unit: u}, func(c Class) bool { return c != ClassPostBuild })
}

// ValidateBuilt runs the post-build rules against the unit's artifact and,
// when given, its deconstructed form.
func (v *Validator) ValidateBuilt(u *content.Unit, art []byte, rebuilt *content.Unit) Violations {
	if v.preOnly {
		return nil
	}
	return v.run(&Subject{Unit: u, Artifact: art, Rebuilt: rebuilt}, func(c Class) bool { return c == ClassPostBuild })
}

func (v *Validator) run(s *Subject, stage func(Class) bool) Violations {
	var out Violations
	for _, rule := range v.registry.Rules(s.Unit.Kind) {
		if !stage(rule.Class()) {
			continue
		}
		sev := v.Severity(rule.ID())
		if sev == SeverityOff {
			continue
		}
		var r Reporter
		rule.Check(v.env, s, &r)
		for _, f := range r.findings {
			out = append(out, Violation{RuleID: rule.ID(), Severity: sev, Path: f.path, Message: f.message})
		}
	}
	out.Sort()
	return out
}
