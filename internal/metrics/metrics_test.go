// SPDX-License-Identifier: MPL-2.0

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/soarmarket/mp/internal/pipeline"
	"github.com/soarmarket/mp/internal/validate"
)

func sampleReport() *pipeline.Report {
	return &pipeline.Report{
		RunID:     "r1",
		Operation: pipeline.OpValidate,
		StartedAt: time.Unix(1735732800, 0),
		Duration:  2 * time.Second,
		Counts:    pipeline.Counts{Succeeded: 2, Failed: 1},
		Units: []pipeline.UnitResult{
			{Name: "a", Status: pipeline.StatusSucceeded},
			{Name: "b", Status: pipeline.StatusSucceeded},
			{Name: "c", Status: pipeline.StatusFailed, Violations: validate.Violations{
				{RuleID: "release-notes", Severity: validate.SeverityError, Message: "x"},
				{RuleID: "release-notes", Severity: validate.SeverityError, Message: "y"},
				{RuleID: "no-disabled", Severity: validate.SeverityWarning, Message: "z"},
			}},
		},
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg, err := Registry(sampleReport())
	if err != nil {
		t.Fatalf("Registry() error = %v", err)
	}
	n, err := testutil.GatherAndCount(reg, "mp_units")
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("mp_units has %d series, want one per status", n)
	}
	n, err = testutil.GatherAndCount(reg, "mp_violations")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("mp_violations has %d series, want 2", n)
	}
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mp.prom")
	if err := WriteTextfile(path, sampleReport()); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{
		`mp_units{operation="validate",run_id="r1",status="failed"} 1`,
		`mp_units{operation="validate",run_id="r1",status="succeeded"} 2`,
		`mp_violations{operation="validate",rule="release-notes",run_id="r1",severity="error"} 2`,
		`mp_run_duration_seconds{operation="validate",run_id="r1"} 2`,
		`mp_run_start_timestamp_seconds{operation="validate",run_id="r1"} 1.7357328e+09`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q:\n%s", want, out)
		}
	}
}

func TestWriteTextfile_BadPath(t *testing.T) {
	t.Parallel()

	if err := WriteTextfile(filepath.Join(t.TempDir(), "missing", "mp.prom"), sampleReport()); err == nil {
		t.Error("WriteTextfile() into a missing directory should fail")
	}
}
