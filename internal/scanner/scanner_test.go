// SPDX-License-Identifier: MPL-2.0

package scanner

import (
	"context"
	"errors"
	"slices"
	"testing"
	"testing/fstest"

	"github.com/soarmarket/mp/internal/testutil"
	"github.com/soarmarket/mp/internal/testutil/contenttest"
	"github.com/soarmarket/mp/pkg/content"
)

const testRoot = "/repo"

func repoTree(extra ...map[string]string) fstest.MapFS {
	trees := []map[string]string{
		contenttest.InRepo(content.KindIntegration, content.RepoCommunity, "ping_tool", contenttest.Integration("Ping_Tool")),
		contenttest.InRepo(content.KindIntegration, content.RepoFirstParty, "mail_relay", contenttest.Integration("Mail_Relay")),
		contenttest.InRepo(content.KindPlaybook, content.RepoCommunity, "phishing_triage", contenttest.Playbook("Phishing Triage", "pb-1", "blk-9")),
		contenttest.InRepo(content.KindPlaybook, content.RepoPartner, "shared_enrichment", contenttest.Block("Shared Enrichment", "blk-9")),
	}
	return testutil.MapFS(testutil.Merge(append(trees, extra...)...))
}

func newScanner(t *testing.T, fsys fstest.MapFS, opts Options) *Scanner {
	t.Helper()

	opts.Root = testRoot
	opts.FS = fsys
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return s
}

func keys(descs []content.Descriptor) []string {
	out := make([]string, 0, len(descs))
	for _, d := range descs {
		out = append(out, d.Key())
	}
	return out
}

func TestSelect_All(t *testing.T) {
	t.Parallel()

	sel, err := newScanner(t, repoTree(), Options{}).Select(context.Background(), nil)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	want := []string{
		"integration/community/ping_tool",
		"integration/first_party/mail_relay",
		"playbook/community/phishing_triage",
		"playbook/partner/shared_enrichment",
	}
	if got := keys(sel.Units); !slices.Equal(got, want) {
		t.Errorf("units = %v, want %v", got, want)
	}
	if len(sel.Failures) != 0 {
		t.Errorf("failures = %v", sel.Failures)
	}

	for _, d := range sel.Units {
		if d.Name == "ping_tool" && d.Rel != "content/response_integrations/third_party/community/ping_tool" {
			t.Errorf("Rel = %q", d.Rel)
		}
	}
}

func TestSelect_ByName(t *testing.T) {
	t.Parallel()

	s := newScanner(t, repoTree(), Options{Kinds: []content.UnitKind{content.KindIntegration}})
	sel, err := s.Select(context.Background(), []string{"Ping Tool", "missing_one"})
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if got := keys(sel.Units); !slices.Equal(got, []string{"integration/community/ping_tool"}) {
		t.Errorf("units = %v", got)
	}
	if len(sel.Failures) != 1 {
		t.Fatalf("failures = %v, want one not-found", sel.Failures)
	}
	f := sel.Failures[0]
	if !errors.Is(f, ErrUnitNotFound) || f.Name != "missing_one" || f.Kind != content.KindIntegration {
		t.Errorf("failure = %v", f)
	}
}

func TestSelect_Duplicates(t *testing.T) {
	t.Parallel()

	dup := contenttest.InRepo(content.KindIntegration, content.RepoCommunity, "vendors/Ping-Tool", contenttest.Integration("Ping_Tool"))
	sel, err := newScanner(t, repoTree(dup), Options{}).Select(context.Background(), nil)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if slices.Contains(keys(sel.Units), "integration/community/ping_tool") {
		t.Error("duplicate unit was selected")
	}
	if len(sel.Failures) != 1 || !errors.Is(sel.Failures[0], ErrDuplicateUnit) {
		t.Fatalf("failures = %v, want one duplicate", sel.Failures)
	}
	if got := len(sel.Failures[0].Paths); got != 2 {
		t.Errorf("duplicate paths = %d, want 2", got)
	}
	// Units in other repository kinds are unaffected.
	if len(sel.Units) != 3 {
		t.Errorf("units = %v", keys(sel.Units))
	}
}

func TestSelect_Misplaced(t *testing.T) {
	t.Parallel()

	stray := contenttest.InRepo(content.KindIntegration, content.RepoCustom, "stray_playbook", contenttest.Playbook("Stray", "pb-2", "blk-9"))
	sel, err := newScanner(t, repoTree(stray), Options{}).Select(context.Background(), nil)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if len(sel.Failures) != 1 || !errors.Is(sel.Failures[0], ErrMisplacedUnit) {
		t.Fatalf("failures = %v, want one misplaced unit", sel.Failures)
	}
	d := sel.Failures[0].Descriptor()
	if d.Name != "stray_playbook" || d.Repository != content.RepoCustom {
		t.Errorf("descriptor = %+v", d)
	}
}

func TestSelect_PlaybookWithoutTrigger(t *testing.T) {
	t.Parallel()

	files := contenttest.With(contenttest.Playbook("Untriggered", "pb-3", "blk-9"), map[string]string{content.TriggerFile: ""})
	untriggered := contenttest.InRepo(content.KindPlaybook, content.RepoCommunity, "untriggered", files)
	sel, err := newScanner(t, repoTree(untriggered), Options{}).Select(context.Background(), nil)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if len(sel.Failures) != 0 {
		t.Errorf("failures = %v, want none", sel.Failures)
	}
	if !slices.Contains(keys(sel.Units), "playbook/community/untriggered") {
		t.Errorf("units = %v, want the playbook selected", keys(sel.Units))
	}
}

func TestSelect_Exclude(t *testing.T) {
	t.Parallel()

	s := newScanner(t, repoTree(), Options{Exclude: []string{"content/**/first_party/**"}})
	sel, err := s.Select(context.Background(), nil)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	if slices.Contains(keys(sel.Units), "integration/first_party/mail_relay") {
		t.Error("excluded unit was selected")
	}
}

func TestSelect_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newScanner(t, repoTree(), Options{}).Select(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestScan_Built(t *testing.T) {
	t.Parallel()

	fsys := testutil.MapFS(map[string]string{
		"response_integrations/third_party/community/ping_tool/ping_tool.json": "{}",
		"playbooks/first_party/triage/triage.json":                             "{}",
		"playbooks/first_party/notes/readme.md":                                "",
	})
	sel, err := newScanner(t, fsys, Options{Form: content.FormBuilt}).Select(context.Background(), nil)
	if err != nil {
		t.Fatalf("Select() error: %v", err)
	}
	want := []string{"integration/community/ping_tool", "playbook/first_party/triage"}
	if got := keys(sel.Units); !slices.Equal(got, want) {
		t.Errorf("units = %v, want %v", got, want)
	}
	for _, d := range sel.Units {
		if d.Form != content.FormBuilt {
			t.Errorf("%s form = %s", d.Name, d.Form)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		form   content.Form
		tree   content.UnitKind
		dir    string
		files  []string
		want   content.UnitKind
		wantOK bool
	}{
		{"integration", content.FormSource, content.KindIntegration, "x", []string{"definition.yaml", "pyproject.toml"}, content.KindIntegration, true},
		{"playbook", content.FormSource, content.KindIntegration, "x", []string{"definition.yaml", "trigger.yaml"}, content.KindPlaybook, true},
		{"playbook without trigger", content.FormSource, content.KindPlaybook, "x", []string{"definition.yaml"}, content.KindPlaybook, true},
		{"grouping directory", content.FormSource, content.KindPlaybook, "x", []string{"README.md"}, "", false},
		{"artifact", content.FormBuilt, content.KindPlaybook, "x", []string{"x.json"}, content.KindPlaybook, true},
		{"foreign artifact", content.FormBuilt, content.KindPlaybook, "x", []string{"y.json"}, "", false},
	}
	for _, tt := range tests {
		got, ok := Classify(tt.form, tt.tree, tt.dir, tt.files)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%s: Classify() = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNew_InvalidOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
	}{
		{"kind", Options{Kinds: []content.UnitKind{"widget"}}},
		{"repository", Options{Repositories: []content.RepositoryKind{"vendor"}}},
		{"pattern", Options{Exclude: []string{"content/[a"}}},
	}
	for _, tt := range tests {
		if _, err := New(tt.opts); err == nil {
			t.Errorf("%s: New() succeeded, want error", tt.name)
		}
	}
}

func TestBuildIndex(t *testing.T) {
	t.Parallel()

	lib := map[string]string{
		"packages/tipcommon/pyproject.toml": "[project]\nname = \"TIPCommon\"\nversion = \"2.0.1\"\n",
		"packages/broken/pyproject.toml":    "[project\n",
	}
	idx, err := BuildIndex(context.Background(), newScanner(t, repoTree(lib), Options{}))
	if err != nil {
		t.Fatalf("BuildIndex() error: %v", err)
	}

	if !idx.HasBlock("blk-9") {
		t.Error("block blk-9 not indexed")
	}
	if idx.HasBlock("pb-1") {
		t.Error("regular playbook indexed as a block")
	}
	if !idx.HasPlaybook("pb-1") {
		t.Error("playbook pb-1 not indexed")
	}
	if v, ok := idx.LibraryVersion("tipcommon"); !ok || v != "2.0.1" {
		t.Errorf("LibraryVersion() = %q, %v", v, ok)
	}
	if _, ok := idx.LibraryVersion("broken"); ok {
		t.Error("malformed library was indexed")
	}
}
