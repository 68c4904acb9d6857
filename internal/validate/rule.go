// SPDX-License-Identifier: MPL-2.0

package validate

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/soarmarket/mp/pkg/content"
)

type (
	// Resolver answers cross-unit lookups against the repository index.
	Resolver interface {
		HasBlock(identifier string) bool
		LibraryVersion(name string) (string, bool)
	}

	// Env carries the run-wide inputs rules may consult. It is shared by all
	// units of a run and must not be mutated while rules execute.
	Env struct {
		// Index resolves references outside the unit. Nil disables the
		// rules that need it.
		Index Resolver
		// Now is the reference time for date checks.
		Now time.Time
		// ResultPatterns classify scripts that emit a JSON result.
		ResultPatterns []*regexp.Regexp
	}

	// Subject is what a rule inspects. Artifact and Rebuilt are only set in
	// the post-build stage.
	Subject struct {
		Unit *content.Unit
		// Artifact is the encoded deployable form of Unit.
		Artifact []byte
		// Rebuilt is Artifact deconstructed and loaded again.
		Rebuilt *content.Unit
	}

	// Rule checks one aspect of a unit. Implementations must be safe for
	// concurrent use: the same rule runs for many units in parallel.
	Rule interface {
		ID() RuleID
		Class() Class
		DefaultSeverity() Severity
		Check(env *Env, s *Subject, r *Reporter)
	}

	// Reporter collects the findings of one rule on one unit.
	Reporter struct {
		findings []finding
	}

	finding struct {
		path    string
		message string
	}

	// funcRule adapts a check function to the Rule interface.
	funcRule struct {
		id       RuleID
		class    Class
		severity Severity
		check    func(env *Env, s *Subject, r *Reporter)
	}

	// Registry is the dispatch table from unit kind to the rules that apply.
	Registry struct {
		byKind map[content.UnitKind][]Rule
		byID   map[RuleID]Rule
	}
)

// Add records a finding at path.
func (r *Reporter) Add(path, format string, args ...any) {
	r.findings = append(r.findings, finding{path: path, message: fmt.Sprintf(format, args...)})
}

// NewRule builds a Rule from a check function.
func NewRule(id RuleID, class Class, severity Severity, check func(env *Env, s *Subject, r *Reporter)) Rule {
	if class == ClassStructural {
		severity = SeverityError
	}
	return &funcRule{id: id, class: class, severity: severity, check: check}
}

func (f *funcRule) ID() RuleID { return f.id }

func (f *funcRule) Class() Class { return f.class }

func (f *funcRule) DefaultSeverity() Severity { return f.severity }

func (f *funcRule) Check(env *Env, s *Subject, r *Reporter) { f.check(env, s, r) }

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKind: map[content.UnitKind][]Rule{},
		byID:   map[RuleID]Rule{},
	}
}

// Register adds rule for each of kinds. Registering a second rule under an
// existing id panics; ids are compile-time constants.
func (reg *Registry) Register(rule Rule, kinds ...content.UnitKind) {
	if prev, ok := reg.byID[rule.ID()]; ok && prev != rule {
		panic(fmt.Sprintf("validate: rule %q registered twice", rule.ID()))
	}
	reg.byID[rule.ID()] = rule
	for _, k := range kinds {
		if !slices.Contains(reg.byKind[k], rule) {
			reg.byKind[k] = append(reg.byKind[k], rule)
		}
	}
}

// Rules returns the rules registered for kind, in registration order.
func (reg *Registry) Rules(kind content.UnitKind) []Rule {
	return reg.byKind[kind]
}

// Lookup returns the rule registered under id.
func (reg *Registry) Lookup(id RuleID) (Rule, bool) {
	r, ok := reg.byID[id]
	return r, ok
}

// IDs returns every registered rule id, sorted.
func (reg *Registry) IDs() []RuleID {
	ids := make([]RuleID, 0, len(reg.byID))
	for id := range reg.byID {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
