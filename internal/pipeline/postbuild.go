// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/soarmarket/mp/internal/validate"
	"github.com/soarmarket/mp/pkg/artifact"
	"github.com/soarmarket/mp/pkg/content"
)

const (
	// MarketplaceIndexFile lists the built integrations.
	MarketplaceIndexFile = "marketplace.json"
	// PlaybooksIndexFile lists the built playbooks and blocks.
	PlaybooksIndexFile = "playbooks.json"
)

// checkDuplicateIntegrations flags integrations whose identifiers share a
// canonical form across repository kinds. Every offending unit gets an
// error violation and loses its output.
func checkDuplicateIntegrations(units []UnitResult) {
	groups := map[string][]int{}
	for i, u := range units {
		if u.Kind != content.KindIntegration || u.identifier == "" {
			continue
		}
		key := content.Canonical(u.identifier)
		groups[key] = append(groups[key], i)
	}

	for _, idx := range groups {
		if len(idx) < 2 {
			continue
		}
		for _, i := range idx {
			u := &units[i]
			var others []string
			for _, j := range idx {
				if j != i {
					others = append(others, units[j].Repository.String()+"/"+units[j].Name)
				}
			}
			slices.Sort(others)
			u.Violations = append(u.Violations, validate.Violation{
				RuleID:   validate.RuleDuplicateIntegration,
				Severity: validate.SeverityError,
				Path:     content.DefinitionFile,
				Message:  fmt.Sprintf("identifier %q is also used by %s", u.identifier, strings.Join(others, ", ")),
			})
			u.entry = nil
			if u.Output != "" {
				if err := os.RemoveAll(filepath.Dir(u.Output)); err != nil {
					slog.Warn("remove output of duplicate integration", "unit", u.Name, "error", err)
				}
				u.Output = ""
			}
			u.settle()
		}
	}
}

// writeIndexes writes the marketplace indexes for the unit kinds present in
// the run and returns the written paths.
func writeIndexes(outRoot string, units []UnitResult) ([]string, error) {
	byKind := map[content.UnitKind][]IndexEntry{}
	for _, u := range units {
		if _, seen := byKind[u.Kind]; !seen {
			byKind[u.Kind] = []IndexEntry{}
		}
		if u.Status == StatusFailed || u.entry == nil {
			continue
		}
		byKind[u.Kind] = append(byKind[u.Kind], *u.entry)
	}

	files := map[content.UnitKind]string{
		content.KindIntegration: filepath.Join(outRoot, content.IntegrationsDirName, MarketplaceIndexFile),
		content.KindPlaybook:    filepath.Join(outRoot, content.PlaybooksDirName, PlaybooksIndexFile),
	}
	var written []string
	for _, kind := range content.UnitKinds() {
		entries, ok := byKind[kind]
		if !ok {
			continue
		}
		slices.SortFunc(entries, func(a, b IndexEntry) int {
			return cmp.Or(cmp.Compare(a.Identifier, b.Identifier), cmp.Compare(a.Repository, b.Repository))
		})
		data, err := artifact.Encode(entries)
		if err != nil {
			return written, err
		}
		file := files[kind]
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return written, fmt.Errorf("create %s: %w", filepath.Dir(file), err)
		}
		if err := os.WriteFile(file, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", file, err)
		}
		written = append(written, file)
	}
	return written, nil
}
