// SPDX-License-Identifier: MPL-2.0

package contenttest

import (
	"fmt"
	"maps"
	"path"
	"strings"

	"github.com/soarmarket/mp/pkg/content"
)

// Integration returns the source files of a small valid integration: one
// action publishing a JSON result with its example, a widget, a manager
// module and an icon. The display name is the identifier with underscores
// replaced by spaces.
func Integration(identifier string) map[string]string {
	return map[string]string{
		"definition.yaml": fmt.Sprintf(`identifier: %s
name: %s
description: Checks connectivity.
version: 2.0
categories: [Network]
parameters:
  - name: Verify SSL
    type: boolean
    default_value: "true"
  - name: API Root
    type: string
    is_mandatory: true
`, identifier, strings.ReplaceAll(identifier, "_", " ")),
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
		"actions/ping.py": `from core.api_manager import ApiManager


def main():
    root = extract_configuration_param(siemplify, param_name="API Root")
    host = extract_action_param(siemplify, param_name="Host")
    result.add_result_json(ApiManager(root).ping(host))
`,
		"actions/ping.yaml": `name: Ping
description: Pings the service.
parameters:
  - name: Host
    type: string
    is_mandatory: true
dynamic_results_metadata:
  - result_name: JsonResult
    show_result: true
    result_example_path: resources/ping_json_example.json
`,
		"resources/ping_json_example.json": `{"ok": true}`,
		"resources/logo.svg":               `<svg xmlns="http://www.w3.org/2000/svg"></svg>`,
		"resources/image.png":              "\x89PNG\r\n\x1a\n",
		"widgets/ping_result.yaml": `title: Ping Result
type: html
action_name: Ping
`,
		"widgets/ping_result.html": `<div class="result">{{ .ok }}</div>`,
		"core/api_manager.py":      "class ApiManager:\n    pass\n",
	}
}

// Playbook returns the source files of a valid playbook whose block step
// references blockID.
func Playbook(name, identifier, blockID string) map[string]string {
	return map[string]string{
		"definition.yaml": fmt.Sprintf(`identifier: %s
name: %s
description: Triage phishing alerts.
version: 1.0
type: playbook
is_enabled: true
priority: 2
category_name: Phishing
`, identifier, name),
		"display_info.yaml": fmt.Sprintf(`content_hub_display_name: %s
author: Soar Team
dependent_integrations: [Ping_Tool]
`, name),
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
action_provider: Scripts
action_name: Ping_Tool_Ping
integration: Ping_Tool
is_automatic: true
parameters:
  - name: PendingActionTimeout
    value: "600"
`,
		"steps/run_block.yaml": fmt.Sprintf(`identifier: s-2
instance_name: Run Block
name: Run Block
type: block
parent_step_ids: [s-1]
parameters:
  - name: NestedWorkflowIdentifier
    value: %s
`, blockID),
		"widgets/summary.yaml": `title: Summary
type: html
order: 1
step_id: s-1
`,
		"widgets/summary.html": `<p>Summary</p>`,
	}
}

// Block returns the source files of a valid block.
func Block(name, identifier string) map[string]string {
	files := Playbook(name, identifier, "")
	delete(files, "steps/run_block.yaml")
	files["definition.yaml"] = fmt.Sprintf(`identifier: %s
name: %s
description: Shared enrichment.
version: 1.0
type: block
is_enabled: true
priority: 1
`, identifier, name)
	return files
}

// MappedIntegration returns Integration with a custom family and two event
// mapping rules, one of which relies on the default enumeration values.
func MappedIntegration(identifier string) map[string]string {
	return With(Integration(identifier), map[string]string{
		content.CustomFamiliesFile: `- family: Ping Host
  description: Hosts reached by ping.
  image_base64: PHN2Zy8+
  is_custom: true
  rules:
    - primary_source: hostname
      relation_type: Destination
      primary_destination: address
      visual_family: Ping Host
`,
		content.MappingRulesFile: `- source: Ping Tool
  product: Ping
  event_name: reply
  security_event_field_name: DestinationHostName
  transformation_function: extract_by_regex_with_group
  transformation_function_param: "host=(\\S+)"
  raw_data_primary_field_match_term: host
  raw_data_primary_field_comparison_type: contains
  is_artifact: true
  extraction_function: delimiter
  extraction_function_param: ","
- source: Ping Tool
  security_event_field_name: StartTime
  raw_data_primary_field_match_term: sent_at
  is_artifact: false
`,
	})
}

// With returns a copy of files with changes applied. An empty value deletes
// the path.
func With(files map[string]string, changes map[string]string) map[string]string {
	out := maps.Clone(files)
	for p, data := range changes {
		if data == "" {
			delete(out, p)
			continue
		}
		out[p] = data
	}
	return out
}

// InRepo places unit files at their source location in a repository tree.
func InRepo(kind content.UnitKind, repo content.RepositoryKind, name string, files map[string]string) map[string]string {
	dir := path.Join(content.SourceDir(kind, repo), name)
	out := make(map[string]string, len(files))
	for p, data := range files {
		out[path.Join(dir, p)] = data
	}
	return out
}
