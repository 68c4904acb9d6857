// SPDX-License-Identifier: MPL-2.0

package validate

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/soarmarket/mp/pkg/content"
)

var fixedNow = time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC)

func integrationFiles() map[string]string {
	return map[string]string{
		"definition.yaml": `identifier: Ping_Tool
name: Ping Tool
description: Checks connectivity.
version: 2.0
parameters:
  - name: Verify SSL
    type: boolean
    default_value: "true"
`,
		"release_notes.yaml": `- version: 1.0
  publish_date: "2024-01-10"
  description: Initial release.
  change_tag: new
- version: 2.0
  publish_date: "2024-03-01"
  description: Adds ping.
  change_tag: change
`,
		"pyproject.toml": `[project]
name = "ping-tool"
version = "2.0"
dependencies = ["tipcommon==2.0.1", "requests>=2.31"]
`,
		"actions/ping.py": "def main():\n    result.add_result_json({\"ok\": True})\n",
		"actions/ping.yaml": `name: Ping
description: Pings the service.
`,
		"resources/ping_json_example.json": `{"ok": true}`,
	}
}

func playbookFiles() map[string]string {
	return map[string]string{
		"definition.yaml": `identifier: pb-1
name: Phishing Triage
version: 1.0
type: playbook
is_enabled: true
priority: 2
`,
		"display_info.yaml": `content_hub_display_name: Phishing Triage
author: Soar Team
`,
		"overviews.yaml": `- identifier: ov-1
  name: Default
  roles: [Analyst]
`,
		"release_notes.yaml": `- version: 1.0
  publish_date: "2024-05-01"
  description: Initial release.
  change_tag: new
`,
		"trigger.yaml": `identifier: tr-1
type: vendor_name
conditions:
  - field_name: vendor
    value: Mail
    match_type: equals
`,
		"steps/enrich_url.yaml": `identifier: s-1
instance_name: Enrich URL
name: Enrich
type: action
is_automatic: true
`,
		"steps/run_block.yaml": `identifier: s-2
instance_name: Run Block
name: Run Block
type: block
parameters:
  - name: NestedWorkflowIdentifier
    value: blk-9
`,
	}
}

// loadUnit loads files as a unit of the given kind from an in-memory tree.
func loadUnit(t *testing.T, kind content.UnitKind, repo content.RepositoryKind, files map[string]string) *content.Unit {
	t.Helper()

	fsys := fstest.MapFS{}
	for p, data := range files {
		fsys[p] = &fstest.MapFile{Data: []byte(data)}
	}
	u, err := content.Load(fsys, content.Descriptor{Kind: kind, Repository: repo, Name: "unit", Form: content.FormSource})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return u
}

func newValidator(t *testing.T, opts Options) *Validator {
	t.Helper()

	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	v, err := New(opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return v
}

func byRule(vs Violations, id RuleID) Violations {
	var out Violations
	for _, v := range vs {
		if v.RuleID == id {
			out = append(out, v)
		}
	}
	return out
}
