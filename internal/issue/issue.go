// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalog entry.
type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	InvalidRootId
	InvalidWorkersId
	ConflictingFlagsId
	InvalidRuleSeverityId
	UnitNotFoundId
	DuplicateUnitId
	OverlappingOutputId
	BundleFailedId
	PublishFailedId
)

type (
	// MarkdownMsg is Markdown text rendered to the terminal.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	HttpLink string

	// Issue is a catalog entry: guidance for one class of run-fatal error.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

// Id returns the catalog id.
func (i *Issue) Id() Id {
	return i.id
}

// MarkdownMsg returns the unrendered guidance.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// DocLinks returns a copy of the documentation links.
func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render renders the guidance with the given glamour style ("dark",
// "light", "notty" or a JSON style path).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("\n- <" + string(link) + ">")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Search locations (in order of precedence):
1. The file passed with ` + "`--config`" + `
2. ` + "`$XDG_CONFIG_HOME/mp/config.cue`" + `
3. ` + "`./mp.cue`" + `

## Things you can try:
- Print the effective configuration:
~~~
$ mp config show
~~~

- Check the CUE syntax of the file
- Remove unknown keys; the schema is closed`,
	}

	invalidRootIssue = &Issue{
		id: InvalidRootId,
		mdMsg: `
# Repository root not found!

The content root does not exist or is not a directory.

## Things you can try:
- Run mp from the repository root, or pass it explicitly:
~~~
$ mp validate repository --root /path/to/marketplace
~~~

- For builds from another tree, use ` + "`--src`" + ` and ` + "`--dst`",
	}

	invalidWorkersIssue = &Issue{
		id: InvalidWorkersId,
		mdMsg: `
# Invalid worker count!

The number of parallel workers must be between 1 and 10.

## Things you can try:
~~~
$ mp build repository --workers 4
~~~

- Or set ` + "`workers`" + ` in your configuration file`,
	}

	conflictingFlagsIssue = &Issue{
		id: ConflictingFlagsId,
		mdMsg: `
# Conflicting flags!

` + "`--custom`" + ` builds the custom repository tree into its fixed output
directory. It cannot be combined with ` + "`--src`" + `, ` + "`--dst`" + ` or
` + "`--deconstruct`" + `.

## Things you can try:
- Drop ` + "`--custom`" + ` and pass both directories explicitly
- Or drop ` + "`--src`" + `, ` + "`--dst`" + ` and ` + "`--deconstruct`",
	}

	invalidRuleSeverityIssue = &Issue{
		id: InvalidRuleSeverityId,
		mdMsg: `
# Invalid rule configuration!

A rule listed under ` + "`rules`" + ` is unknown, is structural, or has a
severity other than ` + "`error`" + `, ` + "`warning`" + ` or ` + "`off`" + `.

Structural rules (file layout, naming, parsing) always report errors and
cannot be reconfigured.

## Example:
~~~cue
rules: {
	"param-references": "error"
	"no-disabled":      "off"
}
~~~`,
	}

	unitNotFoundIssue = &Issue{
		id: UnitNotFoundId,
		mdMsg: `
# Unit not found!

No integration or playbook matched the requested name. Names are compared
in their canonical form: ` + "`Get Alert Details`" + ` and
` + "`get_alert_details`" + ` are the same unit.

## Things you can try:
- Check the spelling of the name
- Check that the unit directory has a ` + "`definition.yaml`" + `
- Check that the directory is not excluded in your configuration`,
	}

	duplicateUnitIssue = &Issue{
		id: DuplicateUnitId,
		mdMsg: `
# Duplicate unit name!

Two directories of the same repository kind resolve to the same canonical
name. Neither is processed until the conflict is resolved.

## Things you can try:
- Rename or remove one of the directories listed above`,
	}

	overlappingOutputIssue = &Issue{
		id: OverlappingOutputId,
		mdMsg: `
# Overlapping output!

Two units of this run would write into the same output directory.

## Things you can try:
- Build the units in separate runs
- Rename one of the units`,
	}

	bundleFailedIssue = &Issue{
		id: BundleFailedId,
		mdMsg: `
# Failed to bundle the output!

The built artifacts could not be packed into a ` + "`tar.zst`" + ` bundle.

## Things you can try:
- Check that the output directory is readable
- Check the free space of the bundle directory`,
	}

	publishFailedIssue = &Issue{
		id: PublishFailedId,
		mdMsg: `
# Failed to publish the bundle!

The bundle could not be uploaded to the configured bucket.

## Things you can try:
- Check ` + "`publish.bucket`" + ` and ` + "`publish.region`" + ` in your configuration
- Check your credentials (environment, shared profile, or static keys)
- For S3-compatible stores, set ` + "`publish.endpoint`" + ` and ` + "`publish.use_path_style: true`",
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():    configLoadFailedIssue,
		invalidRootIssue.Id():         invalidRootIssue,
		invalidWorkersIssue.Id():      invalidWorkersIssue,
		conflictingFlagsIssue.Id():    conflictingFlagsIssue,
		invalidRuleSeverityIssue.Id(): invalidRuleSeverityIssue,
		unitNotFoundIssue.Id():        unitNotFoundIssue,
		duplicateUnitIssue.Id():       duplicateUnitIssue,
		overlappingOutputIssue.Id():   overlappingOutputIssue,
		bundleFailedIssue.Id():        bundleFailedIssue,
		publishFailedIssue.Id():       publishFailedIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	out := slices.Collect(maps.Values(issues))
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id - b.id) })
	return out
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
