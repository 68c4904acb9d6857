// SPDX-License-Identifier: MPL-2.0

package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/soarmarket/mp/internal/testutil/contenttest"
	"github.com/soarmarket/mp/pkg/content"
)

type fakeIndex struct {
	blocks    map[string]bool
	libraries map[string]string
}

// blockIndex knows the block referenced by the playbook fixtures.
var blockIndex = fakeIndex{blocks: map[string]bool{"blk-9": true}}

func (f fakeIndex) HasBlock(id string) bool { return f.blocks[id] }

func (f fakeIndex) LibraryVersion(name string) (string, bool) {
	v, ok := f.libraries[name]
	return v, ok
}

func TestValidate_CleanUnits(t *testing.T) {
	t.Parallel()

	v := newValidator(t, Options{Index: blockIndex})

	tests := []struct {
		name  string
		kind  content.UnitKind
		files map[string]string
	}{
		{"integration", content.KindIntegration, integrationFiles()},
		{"playbook", content.KindPlaybook, playbookFiles()},
		{"integration fixture", content.KindIntegration, contenttest.Integration("Ping_Tool")},
		{"mapped integration fixture", content.KindIntegration, contenttest.MappedIntegration("Ping_Tool")},
		{"playbook fixture", content.KindPlaybook, contenttest.Playbook("Phishing Triage", "pb-1", "blk-9")},
		{"block fixture", content.KindPlaybook, contenttest.Block("Shared Enrichment", "blk-9")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u := loadUnit(t, tt.kind, content.RepoCommunity, tt.files)
			if got := v.Validate(u); len(got) != 0 {
				t.Errorf("Validate() = %v, want no violations", got)
			}
		})
	}
}

func TestValidate_ResultExample(t *testing.T) {
	t.Parallel()

	v := newValidator(t, Options{})
	missing := contenttest.With(integrationFiles(), map[string]string{"resources/ping_json_example.json": ""})

	got := v.Validate(loadUnit(t, content.KindIntegration, content.RepoCommunity, missing))
	if len(got) != 1 {
		t.Fatalf("Validate() = %v, want exactly one violation", got)
	}
	if got[0].RuleID != RuleResultExample || got[0].Path != "actions/ping.py" || !got[0].IsError() {
		t.Errorf("violation = %+v", got[0])
	}
	if !strings.Contains(got[0].Message, "resources/ping_json_example.json") {
		t.Errorf("message %q does not name the expected file", got[0].Message)
	}

	restored := v.Validate(loadUnit(t, content.KindIntegration, content.RepoCommunity, integrationFiles()))
	if len(restored) != 0 {
		t.Errorf("after adding the example, Validate() = %v", restored)
	}
}

func TestValidate_ExtraResultPattern(t *testing.T) {
	t.Parallel()

	files := contenttest.With(integrationFiles(), map[string]string{
		"actions/ping.py":                  "def main():\n    emit_json(payload)\n",
		"resources/ping_json_example.json": "",
	})
	u := loadUnit(t, content.KindIntegration, content.RepoCommunity, files)

	if got := byRule(newValidator(t, Options{}).Validate(u), RuleResultExample); len(got) != 0 {
		t.Errorf("default patterns matched an unlisted call: %v", got)
	}
	extended := newValidator(t, Options{ResultPatterns: []string{`\bemit_json\s*\(`}})
	if got := byRule(extended.Validate(u), RuleResultExample); len(got) != 1 {
		t.Errorf("extended patterns: got %d violations, want 1", len(got))
	}
}

func TestValidate_ReleaseNotes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		notes string
		want  string
	}{
		{
			name: "future date",
			notes: `- version: 1.0
  publish_date: "2024-01-10"
  description: a
- version: 2.0
  publish_date: "2031-01-01"
  description: b
`,
			want: "in the future",
		},
		{
			name: "not increasing",
			notes: `- version: 2.0
  publish_date: "2024-01-10"
  description: a
- version: 2.0
  publish_date: "2024-02-10"
  description: b
`,
			want: "does not increase",
		},
		{
			name: "below minimum",
			notes: `- version: 0.5
  publish_date: "2024-01-10"
  description: a
- version: 2.0
  publish_date: "2024-02-10"
  description: b
`,
			want: "is below",
		},
		{
			name: "invalid date",
			notes: `- version: 1.0
  publish_date: "2024-02-30"
  description: a
- version: 2.0
  publish_date: "2024-03-01"
  description: b
`,
			want: "not a valid",
		},
		{
			name: "latest differs from definition",
			notes: `- version: 1.0
  publish_date: "2024-01-10"
  description: a
`,
			want: "does not match definition version",
		},
	}

	v := newValidator(t, Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u := loadUnit(t, content.KindIntegration, content.RepoCommunity,
				contenttest.With(integrationFiles(), map[string]string{"release_notes.yaml": tt.notes}))
			got := byRule(v.Validate(u), RuleReleaseNotes)
			if len(got) != 1 {
				t.Fatalf("got %v, want one release-notes violation", got)
			}
			if !strings.Contains(got[0].Message, tt.want) {
				t.Errorf("message = %q, want it to contain %q", got[0].Message, tt.want)
			}
		})
	}
}

func TestValidate_BlockReference(t *testing.T) {
	t.Parallel()

	u := loadUnit(t, content.KindPlaybook, content.RepoFirstParty, playbookFiles())

	unresolved := byRule(newValidator(t, Options{}).Validate(u), RuleBlockReference)
	if len(unresolved) != 1 || unresolved[0].Path != "steps/run_block.yaml" {
		t.Fatalf("unresolved = %v, want one violation on steps/run_block.yaml", unresolved)
	}

	indexed := newValidator(t, Options{Index: blockIndex})
	if got := byRule(indexed.Validate(u), RuleBlockReference); len(got) != 0 {
		t.Errorf("index lookup: got %v", got)
	}
}

func TestValidate_DependencyPins(t *testing.T) {
	t.Parallel()

	u := loadUnit(t, content.KindIntegration, content.RepoCommunity, integrationFiles())
	idx := fakeIndex{libraries: map[string]string{"tipcommon": "2.0.3", "requests": "9.9"}}

	got := byRule(newValidator(t, Options{Index: idx}).Validate(u), RuleDependencyPins)
	if len(got) != 1 {
		t.Fatalf("got %v, want one violation for tipcommon", got)
	}
	if !strings.Contains(got[0].Message, "2.0.3") || got[0].Path != content.PyprojectFile {
		t.Errorf("violation = %+v", got[0])
	}
}

func TestValidate_ParamRules(t *testing.T) {
	t.Parallel()

	files := contenttest.With(integrationFiles(), map[string]string{
		"actions/ping.py": `def main():
    host = extract_action_param(siemplify, param_name="Host", is_mandatory=True)
    key = extract_configuration_param(
        siemplify,
        provider_name=NAME,
        param_name="API Key",
    )
    result.add_result_json({})
`,
		"actions/ping.yaml": `name: Ping
description: Pings.
is_enabled: false
is_custom: true
parameters:
  - name: Mode
    type: ddl
    default_value: Fast
    optional_values: [Slow, Medium]
  - name: Count
    type: integer
    optional_values: ["1"]
`,
	})
	got := newValidator(t, Options{}).Validate(loadUnit(t, content.KindIntegration, content.RepoPartner, files))

	if refs := byRule(got, RuleParamReferences); len(refs) != 2 || !refs[0].IsWarning() {
		t.Errorf("param-references = %v, want two warnings", refs)
	}
	if opts := byRule(got, RuleParamOptions); len(opts) != 2 {
		t.Errorf("param-options = %v, want two violations", opts)
	}
	if c := byRule(got, RuleNoCustom); len(c) != 1 {
		t.Errorf("no-custom = %v, want one violation", c)
	}
	if d := byRule(got, RuleNoDisabled); len(d) != 1 || !d[0].IsWarning() {
		t.Errorf("no-disabled = %v, want one warning", d)
	}

	custom := newValidator(t, Options{}).Validate(loadUnit(t, content.KindIntegration, content.RepoCustom, files))
	if c := byRule(custom, RuleNoCustom); len(c) != 0 {
		t.Errorf("custom repository: no-custom = %v", c)
	}
}

func TestValidate_StepParameters(t *testing.T) {
	t.Parallel()

	files := contenttest.With(playbookFiles(), map[string]string{
		"steps/enrich_url.yaml": `identifier: s-1
instance_name: Enrich URL
name: Enrich
type: action
is_automatic: true
is_debug_mock_data: true
parameters:
  - name: PendingActionTimeout
    value: "120"
  - name: AsyncActionTimeout
    value: "600"
  - name: AsyncPollingInterval
    value: "900"
  - name: AssignedUsers
    value: "@Tier1"
`,
	})
	got := newValidator(t, Options{Index: blockIndex}).Validate(loadUnit(t, content.KindPlaybook, content.RepoCommunity, files))

	if sp := byRule(got, RuleStepParameters); len(sp) != 3 {
		t.Errorf("step-parameters = %v, want 3 violations", sp)
	}
	if dd := byRule(got, RuleDebugData); len(dd) != 1 || !dd[0].IsWarning() {
		t.Errorf("debug-data = %v, want one warning", dd)
	}
}

func TestValidate_Structural(t *testing.T) {
	t.Parallel()

	files := contenttest.With(playbookFiles(), map[string]string{
		"steps/run_block.yaml": `identifier: s-1
instance_name: Run Block
type: block
parameters:
  - name: NestedWorkflowIdentifier
    value: blk-9
`,
		"steps/Extra Step.yaml": `identifier: s-3
instance_name: Extra Step
type: output
`,
		"widgets/summary.html": "<div></div>",
		"overviews.yaml":       "",
	})
	got := newValidator(t, Options{Index: blockIndex}).Validate(loadUnit(t, content.KindPlaybook, content.RepoCommunity, files))

	checks := map[RuleID]int{
		RuleRequiredFiles:        1,
		RuleFileNaming:           1,
		RuleScriptMetadataParity: 1,
		RuleScriptNameCanonical:  1,
		RuleUniqueStepIDs:        1,
	}
	for id, want := range checks {
		if n := len(byRule(got, id)); n != want {
			t.Errorf("%s: got %d violations, want %d (all: %v)", id, n, want, got)
		}
	}
	for _, vi := range got {
		if vi.Severity != SeverityError {
			t.Errorf("structural violation %v is not an error", vi)
		}
	}
}

func TestValidate_StepGraph(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		enrich  string
		block   string
		want    int
		message string
	}{
		{name: "no parents"},
		{name: "ordered", block: "[s-1]"},
		{name: "unknown parent", block: "[s-9]", want: 1, message: `parent step "s-9" does not exist`},
		{name: "cycle", enrich: "[s-2]", block: "[s-1]", want: 1, message: "step cycle detected: s-1 -> s-2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			files := playbookFiles()
			if tt.enrich != "" {
				files["steps/enrich_url.yaml"] += "parent_step_ids: " + tt.enrich + "\n"
			}
			if tt.block != "" {
				files["steps/run_block.yaml"] += "parent_step_ids: " + tt.block + "\n"
			}
			got := byRule(newValidator(t, Options{Index: blockIndex}).
				Validate(loadUnit(t, content.KindPlaybook, content.RepoCommunity, files)), RuleStepGraph)
			if len(got) != tt.want {
				t.Fatalf("step-graph = %v, want %d violations", got, tt.want)
			}
			if tt.want > 0 && !strings.Contains(got[0].Message, tt.message) {
				t.Errorf("message = %q, want it to contain %q", got[0].Message, tt.message)
			}
		})
	}
}

func TestValidate_MappingTables(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		data    string
		rule    RuleID
		message string
	}{
		{
			name:    "unknown comparison",
			file:    content.MappingRulesFile,
			data:    "- source: Ping Tool\n  security_event_field_name: Host\n  raw_data_third_field_comparison_type: like\n",
			rule:    RuleMappingRules,
			message: `raw_data_third_field_comparison_type has unknown value "like"`,
		},
		{
			name:    "rule without source",
			file:    content.MappingRulesFile,
			data:    "- security_event_field_name: Host\n",
			rule:    RuleMappingRules,
			message: "rule 1 needs a source",
		},
		{
			name:    "family without name",
			file:    content.CustomFamiliesFile,
			data:    "- description: Nameless.\n",
			rule:    RuleCustomFamilies,
			message: "family 1 has no name",
		},
		{
			name:    "image not base64",
			file:    content.CustomFamiliesFile,
			data:    "- family: Host\n  image_base64: \"not base64!\"\n",
			rule:    RuleCustomFamilies,
			message: `family "Host" image is not valid base64`,
		},
		{
			name:    "family rule without destination",
			file:    content.CustomFamiliesFile,
			data:    "- family: Host\n  rules:\n    - primary_source: hostname\n      visual_family: Host\n",
			rule:    RuleCustomFamilies,
			message: "needs a primary source and destination",
		},
	}

	v := newValidator(t, Options{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			files := contenttest.With(contenttest.MappedIntegration("Ping_Tool"), map[string]string{tt.file: tt.data})
			got := byRule(v.Validate(loadUnit(t, content.KindIntegration, content.RepoCommunity, files)), tt.rule)
			if len(got) != 1 {
				t.Fatalf("%s = %v, want one violation", tt.rule, got)
			}
			if got[0].Path != tt.file || !strings.Contains(got[0].Message, tt.message) {
				t.Errorf("violation = %+v, want %q on %s", got[0], tt.message, tt.file)
			}
		})
	}
}

func TestValidate_SingleTrigger(t *testing.T) {
	t.Parallel()

	files := contenttest.With(playbookFiles(), map[string]string{
		"trigger.yaml": `- identifier: a
  type: vendor_name
- identifier: b
  type: vendor_name
`,
	})
	got := byRule(newValidator(t, Options{Index: blockIndex}).
		Validate(loadUnit(t, content.KindPlaybook, content.RepoCommunity, files)), RuleSingleTrigger)
	if len(got) != 1 || !strings.Contains(got[0].Message, "found 2") {
		t.Errorf("single-trigger = %v", got)
	}
}

func TestValidate_LoadParse(t *testing.T) {
	t.Parallel()

	files := contenttest.With(integrationFiles(), map[string]string{"definition.yaml": "identifier: [unclosed"})
	got := byRule(newValidator(t, Options{}).Validate(loadUnit(t, content.KindIntegration, content.RepoCommunity, files)), RuleLoadParse)
	if len(got) != 1 || got[0].Path != "definition.yaml" {
		t.Errorf("load-parse = %v", got)
	}
}

func TestValidate_SeverityOverrides(t *testing.T) {
	t.Parallel()

	missing := contenttest.With(integrationFiles(), map[string]string{"resources/ping_json_example.json": ""})
	u := loadUnit(t, content.KindIntegration, content.RepoCommunity, missing)

	off := newValidator(t, Options{Severities: map[RuleID]Severity{RuleResultExample: SeverityOff}})
	if got := off.Validate(u); len(got) != 0 {
		t.Errorf("rule turned off: got %v", got)
	}

	warn := newValidator(t, Options{Severities: map[RuleID]Severity{RuleResultExample: SeverityWarning}})
	got := warn.Validate(u)
	if len(got) != 1 || !got[0].IsWarning() || got.HasErrors() {
		t.Errorf("rule lowered to warning: got %v", got)
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"unknown rule", Options{Severities: map[RuleID]Severity{"nope": SeverityOff}}, ErrUnknownRule},
		{"structural override", Options{Severities: map[RuleID]Severity{RuleFileNaming: SeverityWarning}}, ErrStructuralOverride},
		{"bad severity", Options{Severities: map[RuleID]Severity{RuleDebugData: "loud"}}, ErrInvalidSeverity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := New(tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("New() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := New(Options{ResultPatterns: []string{"("}}); err == nil {
		t.Error("New() accepted an invalid result pattern")
	}
}

func TestValidateBuilt(t *testing.T) {
	t.Parallel()

	u := loadUnit(t, content.KindPlaybook, content.RepoCommunity, playbookFiles())
	long := strings.Repeat("x", MaxDescriptionLength+1)
	art := []byte(`{"Definition": {"Identifier": "pb-1", "Name": "Phishing Triage", "Description": "` + long + `"}}`)

	v := newValidator(t, Options{})
	got := v.ValidateBuilt(u, art, u)
	if lim := byRule(got, RuleArtifactLimits); len(lim) != 1 {
		t.Errorf("artifact-limits = %v, want one violation", lim)
	}
	if rt := byRule(got, RuleRoundTrip); len(rt) != 0 {
		t.Errorf("round-trip against itself = %v", rt)
	}

	changed := loadUnit(t, content.KindPlaybook, content.RepoCommunity,
		contenttest.With(playbookFiles(), map[string]string{"overviews.yaml": "- identifier: ov-2\n  name: Other\n"}))
	if rt := byRule(v.ValidateBuilt(u, nil, changed), RuleRoundTrip); len(rt) != 1 {
		t.Errorf("round-trip = %v, want one differing section", rt)
	}

	pre := newValidator(t, Options{OnlyPreBuild: true})
	if got := pre.ValidateBuilt(u, art, changed); got != nil {
		t.Errorf("only pre-build: ValidateBuilt() = %v", got)
	}
}

func TestValidateBuilt_FamilyDescription(t *testing.T) {
	t.Parallel()

	u := loadUnit(t, content.KindIntegration, content.RepoCommunity, contenttest.MappedIntegration("Ping_Tool"))
	long := strings.Repeat("x", MaxDescriptionLength+1)
	art := []byte(`{"Identifier": "Ping_Tool", "CustomFamilies": [{"Family": "Ping Host", "Description": "` + long + `"}]}`)

	lim := byRule(newValidator(t, Options{}).ValidateBuilt(u, art, nil), RuleArtifactLimits)
	if len(lim) != 1 || !strings.Contains(lim[0].Message, "description of family Ping Host") {
		t.Errorf("artifact-limits = %v, want one family description violation", lim)
	}
}

func TestViolations_Sort(t *testing.T) {
	t.Parallel()

	vs := Violations{
		{RuleID: "b", Path: "b.yaml", Message: "x"},
		{RuleID: "b", Path: "a.yaml", Message: "y"},
		{RuleID: "a", Path: "a.yaml", Message: "z"},
		{RuleID: "a", Path: "a.yaml", Message: "m"},
	}
	vs.Sort()

	want := []string{"a.yaml/a/m", "a.yaml/a/z", "a.yaml/b/y", "b.yaml/b/x"}
	for i, v := range vs {
		if got := v.Path + "/" + string(v.RuleID) + "/" + v.Message; got != want[i] {
			t.Errorf("vs[%d] = %s, want %s", i, got, want[i])
		}
	}
}
