// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
	"time"

	"github.com/soarmarket/mp/internal/report"
	"github.com/soarmarket/mp/internal/validate"
)

func TestColorScheme_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   ColorScheme
		want    bool
		wantErr bool
	}{
		{ColorSchemeAuto, true, false},
		{ColorSchemeDark, true, false},
		{ColorSchemeLight, true, false},
		{"", false, true},
		{"solarized", false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			t.Parallel()

			isValid, errs := tt.value.IsValid()
			if isValid != tt.want {
				t.Errorf("ColorScheme(%q).IsValid() = %v, want %v", tt.value, isValid, tt.want)
			}
			if tt.wantErr {
				if len(errs) == 0 || !errors.Is(errs[0], ErrInvalidColorScheme) {
					t.Errorf("expected ErrInvalidColorScheme, got %v", errs)
				}
			} else if len(errs) > 0 {
				t.Errorf("expected no errors, got %v", errs)
			}
		})
	}
}

func TestValidateWorkers(t *testing.T) {
	t.Parallel()

	for _, n := range []int{1, 4, 10} {
		if err := ValidateWorkers(n); err != nil {
			t.Errorf("ValidateWorkers(%d) = %v", n, err)
		}
	}
	for _, n := range []int{-1, 0, 11} {
		err := ValidateWorkers(n)
		var we *InvalidWorkersError
		if !errors.As(err, &we) || we.Value != n || !errors.Is(err, ErrInvalidWorkers) {
			t.Errorf("ValidateWorkers(%d) = %v", n, err)
		}
	}
}

func TestConfig_IsValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(*Config) {}, nil},
		{"workers out of range", func(c *Config) { c.Workers = 11 }, ErrInvalidWorkers},
		{"bad exclude glob", func(c *Config) { c.Exclude = []string{"content/[a"} }, ErrInvalidExcludePattern},
		{"bad severity", func(c *Config) {
			c.Rules = map[validate.RuleID]validate.Severity{"no-disabled": "fatal"}
		}, validate.ErrInvalidSeverity},
		{"severity off", func(c *Config) {
			c.Rules = map[validate.RuleID]validate.Severity{"no-disabled": validate.SeverityOff}
		}, nil},
		{"zero time bound", func(c *Config) { c.TimeBound = 0 }, ErrInvalidTimeBound},
		{"bad color scheme", func(c *Config) { c.UI.ColorScheme = "blue" }, ErrInvalidColorScheme},
		{"bad format", func(c *Config) { c.UI.Format = "yaml" }, report.ErrInvalidFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(cfg)
			ok, errs := cfg.IsValid()
			if tt.wantErr == nil {
				if !ok {
					t.Errorf("IsValid() = false, %v", errs)
				}
				return
			}
			if ok || len(errs) != 1 {
				t.Fatalf("IsValid() = %v, %v", ok, errs)
			}
			if !errors.Is(errs[0], ErrInvalidConfig) || !errors.Is(errs[0], tt.wantErr) {
				t.Errorf("error = %v, want %v", errs[0], tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Workers != 4 || cfg.TimeBound != 2*time.Minute || cfg.OutputDir != "out" {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
	if cfg.UI.Format != report.FormatText || cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("DefaultConfig().UI = %+v", cfg.UI)
	}
	if cfg.RaiseErrorOnViolations {
		t.Error("RaiseErrorOnViolations should default to false")
	}
}
