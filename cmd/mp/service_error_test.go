// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/soarmarket/mp/internal/issue"
)

func TestNewServiceError_PanicsOnNilErr(t *testing.T) {
	t.Parallel()

	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on nil Err, got none")
		}
		if msg, ok := r.(string); !ok || msg != "ServiceError: Err must not be nil" {
			t.Fatalf("unexpected panic: %v", r)
		}
	}()

	newServiceError(nil, 0, "")
}

func TestServiceError_ErrorAndUnwrap(t *testing.T) {
	t.Parallel()

	underlying := errors.New("underlying error")
	svcErr := newServiceError(underlying, issue.BundleFailedId, "")

	if svcErr.Error() != "underlying error" {
		t.Errorf("Error() = %q, want %q", svcErr.Error(), "underlying error")
	}
	if !errors.Is(svcErr, underlying) {
		t.Error("errors.Is should find underlying error via Unwrap")
	}
	if svcErr.IssueID != issue.BundleFailedId {
		t.Errorf("IssueID = %d, want %d", svcErr.IssueID, issue.BundleFailedId)
	}
}

func TestRenderServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		svcErr   *ServiceError
		want     string
		contains string
	}{
		{name: "nil", svcErr: nil, want: ""},
		{name: "styled message only", svcErr: newServiceError(errors.New("x"), 0, "only this"), want: "only this"},
		{
			name:     "with catalog entry",
			svcErr:   newServiceError(errors.New("x"), issue.ConflictingFlagsId, "styled: "),
			contains: "Conflicting flags",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			renderServiceError(&buf, tt.svcErr, "notty")

			got := buf.String()
			if tt.contains == "" {
				if got != tt.want {
					t.Errorf("output = %q, want %q", got, tt.want)
				}
				return
			}
			if !strings.HasPrefix(got, "styled: ") || !strings.Contains(got, tt.contains) {
				t.Errorf("output = %q, want styled prefix and %q", got, tt.contains)
			}
		})
	}
}

func TestFormatErrorForDisplay(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain")
	if got := formatErrorForDisplay(plain, true); got != "plain" {
		t.Errorf("plain error = %q", got)
	}

	ae := issue.NewErrorContext().
		WithOperation("bundle output").
		WithSuggestion("Check the free space").
		Wrap(errors.New("disk full")).
		BuildError()
	got := formatErrorForDisplay(ae, false)
	if !strings.Contains(got, "failed to bundle output: disk full") || !strings.Contains(got, "Check the free space") {
		t.Errorf("actionable error = %q", got)
	}
	if strings.Contains(got, "Error chain:") {
		t.Error("non-verbose output contains the error chain")
	}
	if got := formatErrorForDisplay(ae, true); !strings.Contains(got, "Error chain:") {
		t.Errorf("verbose output lacks the error chain: %q", got)
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")
	if got := (&ExitError{Code: ExitConfig, Err: cause}).Error(); got != "cause" {
		t.Errorf("Error() = %q", got)
	}
	if got := (&ExitError{Code: ExitFailed}).Error(); got != "exit status 1" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(&ExitError{Code: ExitConfig, Err: cause}, cause) {
		t.Error("errors.Is should find the cause")
	}
}
