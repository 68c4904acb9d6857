// SPDX-License-Identifier: MPL-2.0

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/soarmarket/mp/internal/pipeline"
	"github.com/soarmarket/mp/internal/validate"
)

// Options configures Write.
type Options struct {
	Format Format
	// Verbose lists succeeded units in the text summary as well.
	Verbose bool
	// GlamourStyle renders Markdown through glamour with the given style
	// ("dark", "light", "notty" or a JSON style path). When empty, raw
	// Markdown is written.
	GlamourStyle string
}

var renderMarkdown = glamour.Render

// Write renders r to w.
func Write(w io.Writer, r *pipeline.Report, opts Options) error {
	if r == nil {
		return errors.New("nil report")
	}
	if opts.Format == "" {
		opts.Format = FormatText
	}
	if ok, errs := opts.Format.IsValid(); !ok {
		return errors.Join(errs...)
	}

	var out string
	switch opts.Format {
	case FormatText:
		out = Text(r, opts.Verbose)
	case FormatMarkdown:
		out = Markdown(r)
		if opts.GlamourStyle != "" {
			rendered, err := renderMarkdown(out, opts.GlamourStyle)
			if err != nil {
				return fmt.Errorf("render markdown report: %w", err)
			}
			out = rendered
		}
	case FormatJSON:
		data, err := JSON(r)
		if err != nil {
			return err
		}
		out = string(data)
	}
	_, err := io.WriteString(w, out)
	return err
}

// JSON encodes the report with a trailing newline.
func JSON(r *pipeline.Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// Text renders the styled summary. Units without findings are listed only
// when verbose is set.
func Text(r *pipeline.Report, verbose bool) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("mp %s", r.Operation)))
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("  run %s, %s", r.RunID, r.Duration.Round(time.Millisecond))))
	sb.WriteString("\n\n")

	for _, u := range r.Units {
		if u.Status == pipeline.StatusSucceeded && !verbose {
			continue
		}
		sb.WriteString(statusMark(u.Status))
		sb.WriteString(" ")
		sb.WriteString(unitStyle.Render(u.Name))
		sb.WriteString(mutedStyle.Render(fmt.Sprintf(" (%s, %s)", u.Kind, u.Repository)))
		sb.WriteString("\n")
		if u.Error != "" {
			sb.WriteString("    ")
			sb.WriteString(errorStyle.Render(u.Error))
			sb.WriteString("\n")
		}
		for _, v := range u.Violations {
			sb.WriteString("    ")
			sb.WriteString(severityStyle(v.Severity).Render(fmt.Sprintf("%-7s", v.Severity)))
			sb.WriteString(" ")
			sb.WriteString(v.Error())
			sb.WriteString(" ")
			sb.WriteString(ruleStyle.Render("[" + v.RuleID.String() + "]"))
			sb.WriteString("\n")
		}
	}

	for _, idx := range r.Indexes {
		sb.WriteString(mutedStyle.Render("index " + idx))
		sb.WriteString("\n")
	}

	c := r.Counts
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%d units: ", c.Total()))
	sb.WriteString(successStyle.Render(fmt.Sprintf("%d succeeded", c.Succeeded)))
	sb.WriteString(", ")
	sb.WriteString(warningStyle.Render(fmt.Sprintf("%d warned", c.Warned)))
	sb.WriteString(", ")
	sb.WriteString(errorStyle.Render(fmt.Sprintf("%d failed", c.Failed)))
	sb.WriteString(", ")
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("%d skipped", c.Skipped)))
	sb.WriteString("\n")
	return sb.String()
}

// Markdown renders the report as a Markdown document.
func Markdown(r *pipeline.Report) string {
	var sb strings.Builder
	c := r.Counts

	fmt.Fprintf(&sb, "# mp %s\n\n", r.Operation)
	fmt.Fprintf(&sb, "Run `%s` started %s and took %s.\n\n",
		r.RunID, r.StartedAt.UTC().Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	sb.WriteString("| Succeeded | Warned | Failed | Skipped |\n")
	sb.WriteString("|---|---|---|---|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d |\n", c.Succeeded, c.Warned, c.Failed, c.Skipped)

	for _, u := range r.Units {
		if u.Status == pipeline.StatusSucceeded {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", u.Name)
		fmt.Fprintf(&sb, "%s %s: **%s**\n", u.Repository, u.Kind, u.Status)
		if u.Error != "" {
			fmt.Fprintf(&sb, "\n> %s\n", escapeCell(u.Error))
		}
		if len(u.Violations) == 0 {
			continue
		}
		sb.WriteString("\n| Severity | Rule | Path | Message |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, v := range u.Violations {
			fmt.Fprintf(&sb, "| %s | `%s` | %s | %s |\n",
				v.Severity, v.RuleID, escapeCell(v.Path), escapeCell(v.Message))
		}
	}

	if len(r.Indexes) > 0 {
		sb.WriteString("\n## Indexes\n\n")
		for _, idx := range r.Indexes {
			fmt.Fprintf(&sb, "- `%s`\n", idx)
		}
	}
	return sb.String()
}

func statusMark(s pipeline.Status) string {
	switch s {
	case pipeline.StatusSucceeded:
		return successStyle.Render("✓")
	case pipeline.StatusWarned:
		return warningStyle.Render("!")
	case pipeline.StatusFailed:
		return errorStyle.Render("✗")
	default:
		return mutedStyle.Render("-")
	}
}

func severityStyle(s validate.Severity) lipgloss.Style {
	if s == validate.SeverityError {
		return errorStyle
	}
	return warningStyle
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
