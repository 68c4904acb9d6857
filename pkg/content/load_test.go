// SPDX-License-Identifier: MPL-2.0

package content_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/soarmarket/mp/internal/testutil"
	"github.com/soarmarket/mp/internal/testutil/contenttest"
	"github.com/soarmarket/mp/pkg/content"
)

func load(t *testing.T, kind content.UnitKind, files map[string]string, opts ...content.LoadOption) *content.Unit {
	t.Helper()

	u, err := content.Load(testutil.MapFS(files), content.Descriptor{
		Kind: kind, Repository: content.RepoCommunity, Name: "unit", Form: content.FormSource,
	}, opts...)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return u
}

func TestLoad_Integration(t *testing.T) {
	t.Parallel()

	u := load(t, content.KindIntegration, contenttest.Integration("Ping_Tool"))
	if len(u.LoadIssues) != 0 {
		t.Fatalf("unexpected load issues: %v", u.LoadIssues)
	}
	in, ok := u.Integration()
	if !ok {
		t.Fatalf("entity = %T, want *Integration", u.Entity)
	}

	if in.Definition.Identifier != "Ping_Tool" || in.Definition.Version != 2.0 {
		t.Errorf("definition = %+v", in.Definition)
	}
	if len(in.Definition.Parameters) != 2 || in.Definition.Parameters[0].Type != content.ParamBoolean {
		t.Errorf("parameters = %+v", in.Definition.Parameters)
	}
	if in.Project.Name != "ping-tool" || len(in.Project.Dependencies) != 2 {
		t.Errorf("project = %+v", in.Project)
	}
	if len(in.ReleaseNotes) != 2 {
		t.Errorf("release notes = %+v", in.ReleaseNotes)
	}

	if len(in.Scripts) != 1 {
		t.Fatalf("scripts = %d, want 1", len(in.Scripts))
	}
	s := in.Scripts[0]
	if s.Kind != content.ScriptAction || s.Stem != "ping" || !strings.Contains(s.Source, "add_result_json") {
		t.Errorf("script = %+v", s)
	}
	if !s.Meta.Enabled() {
		t.Error("script without is_enabled should default to enabled")
	}
	if len(s.Meta.DynamicResults) != 1 || s.Meta.DynamicResults[0].Example != `{"ok": true}` {
		t.Errorf("dynamic results = %+v", s.Meta.DynamicResults)
	}

	if len(in.Widgets) != 1 || in.Widgets[0].Meta.ActionName != "Ping" {
		t.Errorf("widgets = %+v", in.Widgets)
	}
	if len(in.Managers) != 1 || in.Managers[0].Name != "api_manager" {
		t.Errorf("managers = %+v", in.Managers)
	}
	// The result example is attached to its script, not shipped as a resource.
	var paths []string
	for _, r := range in.Resources {
		paths = append(paths, r.Path)
	}
	if strings.Join(paths, ",") != "resources/image.png,resources/logo.svg" {
		t.Errorf("resources = %v", paths)
	}
}

func TestLoad_MappingTables(t *testing.T) {
	t.Parallel()

	u := load(t, content.KindIntegration, contenttest.MappedIntegration("Ping_Tool"))
	if len(u.LoadIssues) != 0 {
		t.Fatalf("unexpected load issues: %v", u.LoadIssues)
	}
	in, _ := u.Integration()

	if len(in.CustomFamilies) != 1 {
		t.Fatalf("custom families = %+v", in.CustomFamilies)
	}
	fam := in.CustomFamilies[0]
	if fam.Family != "Ping Host" || !fam.IsCustom || len(fam.Rules) != 1 || fam.Rules[0].RelationType != "Destination" {
		t.Errorf("family = %+v", fam)
	}

	if len(in.MappingRules) != 2 {
		t.Fatalf("mapping rules = %+v", in.MappingRules)
	}
	first, second := in.MappingRules[0], in.MappingRules[1]
	if first.Transformation != content.TransformExtractByGroup || first.PrimaryComparison != content.CompareContains ||
		first.Extraction != content.ExtractDelimiter || first.TransformationParam != `host=(\S+)` {
		t.Errorf("first rule = %+v", first)
	}
	if second.Transformation != "" || second.Transformation.Code() != 0 || second.ThirdComparison.Code() != 0 {
		t.Errorf("second rule = %+v, want empty values resolving to default codes", second)
	}
}

func TestLoad_Playbook(t *testing.T) {
	t.Parallel()

	u := load(t, content.KindPlaybook, contenttest.Playbook("Phishing Triage", "pb-1", "blk-9"))
	if len(u.LoadIssues) != 0 {
		t.Fatalf("unexpected load issues: %v", u.LoadIssues)
	}
	pb, ok := u.Playbook()
	if !ok {
		t.Fatalf("entity = %T, want *Playbook", u.Entity)
	}
	if pb.IsBlock() || pb.Definition.Category != "Phishing" {
		t.Errorf("definition = %+v", pb.Definition)
	}
	if len(pb.Triggers) != 1 || pb.Triggers[0].Identifier != "tr-1" {
		t.Errorf("triggers = %+v", pb.Triggers)
	}
	if len(pb.Steps) != 2 || pb.Steps[0].FileStem != "enrich_url" || pb.Steps[1].FileStem != "run_block" {
		t.Fatalf("steps = %+v", pb.Steps)
	}
	if id, ok := pb.Steps[1].BlockReference(); !ok || id != "blk-9" {
		t.Errorf("BlockReference() = %q, %v", id, ok)
	}
	if _, ok := pb.Steps[0].BlockReference(); ok {
		t.Error("action step reported a block reference")
	}
	if v, ok := pb.Steps[0].Param("PendingActionTimeout"); !ok || v != "600" {
		t.Errorf("Param() = %q, %v", v, ok)
	}
	if len(pb.Widgets) != 1 || pb.Widgets[0].HTML != "<p>Summary</p>" {
		t.Errorf("widgets = %+v", pb.Widgets)
	}
}

func TestLoad_TriggerSequence(t *testing.T) {
	t.Parallel()

	files := contenttest.With(contenttest.Playbook("P", "p-1", "b"), map[string]string{
		"trigger.yaml": "- identifier: a\n  type: all\n- identifier: b\n  type: all\n",
	})
	pb, _ := load(t, content.KindPlaybook, files).Playbook()
	if len(pb.Triggers) != 2 {
		t.Errorf("triggers = %d, want 2", len(pb.Triggers))
	}
}

func TestLoad_Issues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		kind    content.UnitKind
		files   map[string]string
		path    string
		wantErr error
	}{
		{
			name:  "malformed definition",
			kind:  content.KindIntegration,
			files: contenttest.With(contenttest.Integration("T"), map[string]string{"definition.yaml": "identifier: [\n"}),
			path:  content.DefinitionFile,
		},
		{
			name: "missing example",
			kind: content.KindIntegration,
			files: contenttest.With(contenttest.Integration("T"), map[string]string{
				"resources/ping_json_example.json": "",
			}),
			path:    "actions/ping.yaml",
			wantErr: content.ErrMissingReference,
		},
		{
			name:  "malformed pyproject",
			kind:  content.KindIntegration,
			files: contenttest.With(contenttest.Integration("T"), map[string]string{"pyproject.toml": "[project\n"}),
			path:  content.PyprojectFile,
		},
		{
			name: "unknown step type",
			kind: content.KindPlaybook,
			files: contenttest.With(contenttest.Playbook("P", "p-1", "b"), map[string]string{
				"steps/enrich_url.yaml": "identifier: s-1\ninstance_name: Enrich URL\ntype: teleport\n",
			}),
			path:    "steps/enrich_url.yaml",
			wantErr: content.ErrInvalidStepType,
		},
		{
			name: "unknown playbook type",
			kind: content.KindPlaybook,
			files: contenttest.With(contenttest.Playbook("P", "p-1", "b"), map[string]string{
				"definition.yaml": "identifier: p-1\nname: P\ntype: macro\n",
			}),
			path:    content.DefinitionFile,
			wantErr: content.ErrInvalidPlaybookType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			u := load(t, tt.kind, tt.files)
			if len(u.LoadIssues) != 1 {
				t.Fatalf("load issues = %v, want exactly one", u.LoadIssues)
			}
			issue := u.LoadIssues[0]
			if issue.Path != tt.path {
				t.Errorf("issue path = %q, want %q", issue.Path, tt.path)
			}
			if tt.wantErr != nil && !errors.Is(issue, tt.wantErr) {
				t.Errorf("issue = %v, want %v", issue, tt.wantErr)
			}
		})
	}
}

func TestLoad_WithExclude(t *testing.T) {
	t.Parallel()

	files := contenttest.With(contenttest.Integration("Ping_Tool"), map[string]string{
		"tests/test_ping.py":           "def test_ping(): pass\n",
		"actions/__pycache__/ping.pyc": "\x00",
	})
	u := load(t, content.KindIntegration, files, content.WithExclude(func(rel string) bool {
		return rel == "tests" || strings.HasSuffix(rel, "__pycache__")
	}))
	for _, f := range u.Files {
		if strings.HasPrefix(f, "tests/") || strings.Contains(f, "__pycache__") {
			t.Errorf("excluded file %s was listed", f)
		}
	}
	if !u.HasFile("actions/ping.py") {
		t.Error("actions/ping.py missing")
	}
}

func TestLoad_InvalidKind(t *testing.T) {
	t.Parallel()

	_, err := content.Load(testutil.MapFS(nil), content.Descriptor{Kind: "widget"})
	if !errors.Is(err, content.ErrInvalidUnitKind) {
		t.Errorf("error = %v, want ErrInvalidUnitKind", err)
	}
}
