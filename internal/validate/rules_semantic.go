// SPDX-License-Identifier: MPL-2.0

package validate

import (
	"encoding/base64"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/soarmarket/mp/pkg/content"
)

// Semantic rule ids.
const (
	RuleResultExample   RuleID = "result-example"
	RuleDependencyPins  RuleID = "dependency-pins"
	RuleBlockReference  RuleID = "block-reference"
	RuleReleaseNotes    RuleID = "release-notes"
	RuleParamReferences RuleID = "param-references"
	RuleParamOptions    RuleID = "param-options"
	RuleNoCustom        RuleID = "no-custom"
	RuleNoDisabled      RuleID = "no-disabled"
	RuleDisplayNames    RuleID = "display-names"
	RuleVerifySSL       RuleID = "verify-ssl"
	RuleStepParameters  RuleID = "step-parameters"
	RuleDebugData       RuleID = "debug-data"
	RuleCustomFamilies  RuleID = "custom-families"
	RuleMappingRules    RuleID = "mapping-rules"
)

// Step parameter names and bounds checked by the step-parameters rule.
const (
	pendingActionTimeoutParam = "PendingActionTimeout"
	asyncActionTimeoutParam   = "AsyncActionTimeout"
	asyncPollingIntervalParam = "AsyncPollingInterval"
	assignedUsersParam        = "AssignedUsers"

	minPendingActionTimeout = 300
	maxAsyncActionTimeout   = 1209600
	minAsyncPollingInterval = 30
)

var (
	// DefaultResultPatterns match scripts that publish a JSON result.
	DefaultResultPatterns = []string{
		`\bresult\.add_result_json\s*\(`,
		`\badd_result_json\s*\(`,
		`\bself\.json_results\s*=`,
	}

	displayNamePattern = regexp.MustCompile(`^[a-zA-Z0-9-\s]+$`)
	paramNamePattern   = regexp.MustCompile(`^[a-zA-Z0-9-'\s]+$`)
	identifierPattern  = regexp.MustCompile(`^[a-zA-Z0-9-_]+$`)

	// paramRefPattern finds extract_<scope>_param(..., param_name="X", ...).
	paramRefPattern = regexp.MustCompile(
		`(?s)\bextract_(action|configuration|connector|job)_param\s*\([^)]*?\bparam_name\s*=\s*["']([^"']+)["']`)
)

func registerSemantic(reg *Registry) {
	in, pb := content.KindIntegration, content.KindPlaybook

	reg.Register(NewRule(RuleResultExample, ClassSemantic, SeverityError, checkResultExample), in)
	reg.Register(NewRule(RuleDependencyPins, ClassSemantic, SeverityError, checkDependencyPins), in)
	reg.Register(NewRule(RuleBlockReference, ClassSemantic, SeverityError, checkBlockReferences), pb)
	reg.Register(NewRule(RuleReleaseNotes, ClassSemantic, SeverityError, checkReleaseNotes), in, pb)
	reg.Register(NewRule(RuleParamReferences, ClassSemantic, SeverityWarning, checkParamReferences), in)
	reg.Register(NewRule(RuleParamOptions, ClassSemantic, SeverityError, checkParamOptions), in)
	reg.Register(NewRule(RuleNoCustom, ClassSemantic, SeverityError, checkNoCustom), in)
	reg.Register(NewRule(RuleNoDisabled, ClassSemantic, SeverityWarning, checkNoDisabled), in)
	reg.Register(NewRule(RuleDisplayNames, ClassSemantic, SeverityError, checkDisplayNames), in, pb)
	reg.Register(NewRule(RuleVerifySSL, ClassSemantic, SeverityWarning, checkVerifySSL), in)
	reg.Register(NewRule(RuleStepParameters, ClassSemantic, SeverityError, checkStepParameters), pb)
	reg.Register(NewRule(RuleDebugData, ClassSemantic, SeverityWarning, checkDebugData), pb)
	reg.Register(NewRule(RuleCustomFamilies, ClassSemantic, SeverityError, checkCustomFamilies), in)
	reg.Register(NewRule(RuleMappingRules, ClassSemantic, SeverityError, checkMappingRules), in)
}

// checkResultExample requires an example payload for every script the
// result-pattern allow-list classifies as publishing JSON. Scripts that
// build results some other way are not detected.
func checkResultExample(env *Env, s *Subject, r *Reporter) {
	in, ok := s.Unit.Integration()
	if !ok {
		return
	}
	for _, sc := range in.Scripts {
		if !matchesAny(env.ResultPatterns, sc.Source) {
			continue
		}
		want := content.ExampleFileName(sc.Stem, content.DefaultResultName)
		if !s.Unit.HasFile(want) {
			r.Add(sc.ScriptPath(), "script adds a JSON result but %s is missing", want)
		}
	}
}

func matchesAny(patterns []*regexp.Regexp, src string) bool {
	for _, p := range patterns {
		if p.MatchString(src) {
			return true
		}
	}
	return false
}

func checkDependencyPins(env *Env, s *Subject, r *Reporter) {
	in, ok := s.Unit.Integration()
	if !ok || env.Index == nil {
		return
	}
	for _, pin := range in.Project.Pins() {
		if !pin.Exact() {
			continue
		}
		published, known := env.Index.LibraryVersion(pin.Package)
		if !known || published == pin.Version {
			continue
		}
		r.Add(content.PyprojectFile, "%s is pinned to %s but the published version is %s",
			pin.Package, pin.Version, published)
	}
}

func checkBlockReferences(env *Env, s *Subject, r *Reporter) {
	pb, ok := s.Unit.Playbook()
	if !ok {
		return
	}
	for _, st := range pb.Steps {
		if st.Type != content.StepBlock {
			continue
		}
		file := stepFile(st)
		ref, ok := st.BlockReference()
		if !ok {
			r.Add(file, "block step %q has no %s parameter", st.InstanceName, content.NestedWorkflowParam)
			continue
		}
		if env.Index != nil && env.Index.HasBlock(ref) {
			continue
		}
		r.Add(file, "block step %q references unknown block %q", st.InstanceName, ref)
	}
}

func stepFile(st content.Step) string {
	return path.Join(content.StepsDir, st.FileStem+content.MetadataSuffix)
}

func releaseNotesOf(u *content.Unit) []content.ReleaseNote {
	switch e := u.Entity.(type) {
	case *content.Integration:
		return e.ReleaseNotes
	case *content.Playbook:
		return e.ReleaseNotes
	}
	return nil
}

func checkReleaseNotes(env *Env, s *Subject, r *Reporter) {
	u := s.Unit
	if !u.HasFile(content.ReleaseNotesFile) || hasIssue(u, content.ReleaseNotesFile) {
		return
	}
	notes := releaseNotesOf(u)
	if len(notes) == 0 {
		r.Add(content.ReleaseNotesFile, "release notes have no entries")
		return
	}

	today := env.Now.UTC().Truncate(24 * time.Hour)
	latest := notes[0].Version
	for i, n := range notes {
		if n.Version < content.MinimumVersion {
			r.Add(content.ReleaseNotesFile, "entry %d: version %v is below %v", i+1, n.Version, content.MinimumVersion)
		}
		if i > 0 && n.Version <= notes[i-1].Version {
			r.Add(content.ReleaseNotesFile, "entry %d: version %v does not increase over %v", i+1, n.Version, notes[i-1].Version)
		}
		latest = max(latest, n.Version)

		published, err := n.PublishTime()
		switch {
		case err != nil:
			r.Add(content.ReleaseNotesFile, "entry %d: publish date %q is not a valid %s date", i+1, n.PublishDate, content.DateLayout)
		case published.After(today):
			r.Add(content.ReleaseNotesFile, "entry %d: publish date %s is in the future", i+1, n.PublishDate)
		}
		if ok, _ := n.ChangeTag.IsValid(); !ok {
			r.Add(content.ReleaseNotesFile, "entry %d: unknown change tag %q", i+1, n.ChangeTag)
		}
	}
	if declared := u.Version(); declared != latest {
		r.Add(content.ReleaseNotesFile, "latest release note version %v does not match definition version %v", latest, declared)
	}
}

func checkParamReferences(_ *Env, s *Subject, r *Reporter) {
	in, ok := s.Unit.Integration()
	if !ok {
		return
	}
	configParams := paramNames(in.Definition.Parameters)
	for _, sc := range in.Scripts {
		scriptParams := paramNames(sc.Meta.Parameters)
		reported := map[string]bool{}
		for _, m := range paramRefPattern.FindAllStringSubmatch(sc.Source, -1) {
			scope, name := m[1], m[2]
			declared := scriptParams
			where := sc.MetadataPath()
			if scope == "configuration" {
				declared = configParams
				where = content.DefinitionFile
			}
			if declared[name] || reported[scope+"/"+name] {
				continue
			}
			reported[scope+"/"+name] = true
			r.Add(sc.ScriptPath(), "parameter %q is read but not declared in %s", name, where)
		}
	}
}

func paramNames(ps []content.Parameter) map[string]bool {
	out := make(map[string]bool, len(ps))
	for _, p := range ps {
		out[p.Name] = true
	}
	return out
}

func checkParamOptions(_ *Env, s *Subject, r *Reporter) {
	in, ok := s.Unit.Integration()
	if !ok {
		return
	}
	checkParams(content.DefinitionFile, in.Definition.Parameters, r)
	for _, sc := range in.Scripts {
		checkParams(sc.MetadataPath(), sc.Meta.Parameters, r)
	}
}

func checkParams(file string, params []content.Parameter, r *Reporter) {
	for _, p := range params {
		if ok, _ := p.Type.IsValid(); !ok {
			r.Add(file, "parameter %q has unknown type %q", p.Name, p.Type)
			continue
		}
		switch {
		case p.Type.HasOptions() && len(p.OptionalValues) == 0:
			r.Add(file, "parameter %q of type %s must list optional values", p.Name, p.Type)
		case !p.Type.HasOptions() && len(p.OptionalValues) > 0:
			r.Add(file, "parameter %q of type %s must not list optional values", p.Name, p.Type)
		case p.Type.HasOptions() && p.DefaultValue != "" && !defaultInOptions(p):
			r.Add(file, "default value %q of parameter %q is not one of its optional values", p.DefaultValue, p.Name)
		}
	}
}

// defaultInOptions checks every comma-separated default of a multi-value
// parameter against the options.
func defaultInOptions(p content.Parameter) bool {
	defaults := []string{p.DefaultValue}
	if p.Type != content.ParamDDL {
		defaults = strings.Split(p.DefaultValue, ",")
	}
	for _, d := range defaults {
		if !slices.Contains(p.OptionalValues, strings.TrimSpace(d)) {
			return false
		}
	}
	return true
}

func checkNoCustom(_ *Env, s *Subject, r *Reporter) {
	in, ok := s.Unit.Integration()
	if !ok || s.Unit.Repository == content.RepoCustom {
		return
	}
	if in.Definition.IsCustom {
		r.Add(content.DefinitionFile, "integration is marked custom outside the custom repository")
	}
	for _, sc := range in.Scripts {
		if sc.Meta.IsCustom {
			r.Add(sc.MetadataPath(), "%s %q is marked custom", sc.Kind, sc.Meta.Name)
		}
	}
}

func checkNoDisabled(_ *Env, s *Subject, r *Reporter) {
	in, ok := s.Unit.Integration()
	if !ok {
		return
	}
	for _, sc := range in.Scripts {
		if !sc.Meta.Enabled() {
			r.Add(sc.MetadataPath(), "%s %q is disabled", sc.Kind, sc.Meta.Name)
		}
	}
}

func checkDisplayNames(_ *Env, s *Subject, r *Reporter) {
	switch e := s.Unit.Entity.(type) {
	case *content.Integration:
		def := e.Definition
		matchName(r, content.DefinitionFile, "identifier", def.Identifier, identifierPattern)
		matchName(r, content.DefinitionFile, "name", def.Name, displayNamePattern)
		for _, p := range def.Parameters {
			matchName(r, content.DefinitionFile, "parameter name", p.Name, paramNamePattern)
		}
		for _, sc := range e.Scripts {
			matchName(r, sc.MetadataPath(), "name", sc.Meta.Name, displayNamePattern)
			for _, p := range sc.Meta.Parameters {
				matchName(r, sc.MetadataPath(), "parameter name", p.Name, paramNamePattern)
			}
		}
	case *content.Playbook:
		matchName(r, content.DefinitionFile, "identifier", e.Definition.Identifier, identifierPattern)
	}
}

func matchName(r *Reporter, file, field, value string, re *regexp.Regexp) {
	if value == "" {
		return
	}
	if !re.MatchString(value) {
		r.Add(file, "%s %q does not match %s", field, value, re)
	}
}

func checkVerifySSL(_ *Env, s *Subject, r *Reporter) {
	in, ok := s.Unit.Integration()
	if !ok {
		return
	}
	for _, p := range in.Definition.Parameters {
		if p.Name != content.VerifySSLParam {
			continue
		}
		if p.Type != content.ParamBoolean {
			r.Add(content.DefinitionFile, "%q must be a boolean parameter, got %s", p.Name, p.Type)
		}
		if !strings.EqualFold(p.DefaultValue, "true") {
			r.Add(content.DefinitionFile, "%q must default to true", p.Name)
		}
	}
}

func checkStepParameters(_ *Env, s *Subject, r *Reporter) {
	pb, ok := s.Unit.Playbook()
	if !ok {
		return
	}
	for _, st := range pb.Steps {
		file := stepFile(st)
		if v, ok := intParam(r, file, st, pendingActionTimeoutParam); ok && v < minPendingActionTimeout {
			r.Add(file, "%s must be at least %d seconds, got %d", pendingActionTimeoutParam, minPendingActionTimeout, v)
		}
		timeout, hasTimeout := intParam(r, file, st, asyncActionTimeoutParam)
		if hasTimeout && (timeout <= 0 || timeout > maxAsyncActionTimeout) {
			r.Add(file, "%s must be between 1 and %d seconds, got %d", asyncActionTimeoutParam, maxAsyncActionTimeout, timeout)
		}
		if v, ok := intParam(r, file, st, asyncPollingIntervalParam); ok {
			if v < minAsyncPollingInterval {
				r.Add(file, "%s must be at least %d seconds, got %d", asyncPollingIntervalParam, minAsyncPollingInterval, v)
			}
			if hasTimeout && v > timeout {
				r.Add(file, "%s %d exceeds %s %d", asyncPollingIntervalParam, v, asyncActionTimeoutParam, timeout)
			}
		}
		if users, ok := st.Param(assignedUsersParam); ok && users != "" && st.IsAutomatic {
			r.Add(file, "%s is not allowed on automatic step %q", assignedUsersParam, st.InstanceName)
		}
	}
}

// intParam returns a step parameter parsed as an integer. Absent and empty
// parameters are not reported.
func intParam(r *Reporter, file string, st content.Step, name string) (int, bool) {
	raw, ok := st.Param(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		r.Add(file, "%s must be an integer, got %q", name, raw)
		return 0, false
	}
	return v, true
}

func checkDebugData(_ *Env, s *Subject, r *Reporter) {
	pb, ok := s.Unit.Playbook()
	if !ok {
		return
	}
	for _, st := range pb.Steps {
		if !st.IsDebugMockData {
			continue
		}
		if st.DebugData == nil || (st.DebugData.ResultValue == "" && st.DebugData.ResultJSON == "") {
			r.Add(stepFile(st), "step %q uses debug mock data but defines none", st.InstanceName)
		}
	}
}

func checkCustomFamilies(_ *Env, s *Subject, r *Reporter) {
	in, ok := s.Unit.Integration()
	if !ok {
		return
	}
	for i, f := range in.CustomFamilies {
		if strings.TrimSpace(f.Family) == "" {
			r.Add(content.CustomFamiliesFile, "family %d has no name", i+1)
			continue
		}
		if _, err := base64.StdEncoding.DecodeString(f.ImageBase64); err != nil {
			r.Add(content.CustomFamiliesFile, "family %q image is not valid base64", f.Family)
		}
		for j, rule := range f.Rules {
			if rule.PrimarySource == "" || rule.PrimaryDestination == "" {
				r.Add(content.CustomFamiliesFile, "family %q rule %d needs a primary source and destination", f.Family, j+1)
			}
		}
	}
}

func checkMappingRules(_ *Env, s *Subject, r *Reporter) {
	in, ok := s.Unit.Integration()
	if !ok {
		return
	}
	for i, m := range in.MappingRules {
		if m.Source == "" || m.SecurityEventFieldName == "" {
			r.Add(content.MappingRulesFile, "rule %d needs a source and a security event field name", i+1)
		}
		for _, err := range m.Validate() {
			r.Add(content.MappingRulesFile, "rule %d: %v", i+1, err)
		}
	}
}
