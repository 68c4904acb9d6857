// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soarmarket/mp/internal/issue"
	"github.com/soarmarket/mp/internal/report"
	"github.com/soarmarket/mp/internal/validate"
)

// isolated returns options that only see files under a fresh temp dir.
func isolated(t *testing.T) (LoadOptions, string) {
	t.Helper()

	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "xdg", AppName)
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return LoadOptions{ConfigDirPath: cfgDir, BaseDir: dir}, dir
}

func writeFile(t *testing.T, path, body string) string {
	t.Helper()

	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func TestLoad_DefaultsWhenNoConfigFile(t *testing.T) {
	t.Parallel()

	opts, _ := isolated(t)
	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty", cfg.Source)
	}
	want := DefaultConfig()
	if cfg.Workers != want.Workers || cfg.TimeBound != want.TimeBound || cfg.Bundle.Dir != want.Bundle.Dir {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoad_CustomPath(t *testing.T) {
	t.Parallel()

	opts, dir := isolated(t)
	opts.ConfigFilePath = writeFile(t, filepath.Join(dir, "custom.cue"), `
root:       "/srv/marketplace"
workers:    8
time_bound: "90s"
exclude: ["content/**/legacy/**"]
rules: {
	"no-disabled":  "error"
	"verify-ssl":   "off"
}
result_patterns: ["add_result_json\\("]
raise_error_on_violations: true
publish: {
	bucket:         "content"
	use_path_style: true
}
ui: format: "json"
`)

	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != opts.ConfigFilePath {
		t.Errorf("Source = %q", cfg.Source)
	}
	if cfg.Root != "/srv/marketplace" || cfg.Workers != 8 || cfg.TimeBound != 90*time.Second {
		t.Errorf("scalars = %q %d %s", cfg.Root, cfg.Workers, cfg.TimeBound)
	}
	if len(cfg.Exclude) != 1 || cfg.Exclude[0] != "content/**/legacy/**" {
		t.Errorf("Exclude = %v", cfg.Exclude)
	}
	if cfg.Rules["no-disabled"] != validate.SeverityError || cfg.Rules["verify-ssl"] != validate.SeverityOff {
		t.Errorf("Rules = %v", cfg.Rules)
	}
	if len(cfg.ResultPatterns) != 1 || cfg.ResultPatterns[0] != `add_result_json\(` {
		t.Errorf("ResultPatterns = %v", cfg.ResultPatterns)
	}
	if !cfg.RaiseErrorOnViolations || cfg.Publish.Bucket != "content" || !cfg.Publish.UsePathStyle {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.UI.Format != report.FormatJSON || cfg.UI.ColorScheme != ColorSchemeAuto {
		t.Errorf("UI = %+v", cfg.UI)
	}
	if cfg.OutputDir != "out" {
		t.Errorf("OutputDir = %q, want the default", cfg.OutputDir)
	}
}

func TestLoad_LookupOrder(t *testing.T) {
	t.Parallel()

	opts, dir := isolated(t)
	local := writeFile(t, filepath.Join(dir, LocalConfigFile), "workers: 2\n")

	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != local || cfg.Workers != 2 {
		t.Errorf("local config not used: %q %d", cfg.Source, cfg.Workers)
	}

	user := writeFile(t, filepath.Join(opts.ConfigDirPath, ConfigFileName+"."+ConfigFileExt), "workers: 3\n")
	cfg, err = NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source != user || cfg.Workers != 3 {
		t.Errorf("user config should win over the local one: %q %d", cfg.Source, cfg.Workers)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		missing  bool
		contains string
	}{
		{name: "missing file", missing: true, contains: "config file not found"},
		{name: "syntax error", body: "workers: [", contains: "load configuration"},
		{name: "workers out of range", body: "workers: 11\n", contains: "workers"},
		{name: "unknown key", body: "container_engine: \"docker\"\n", contains: "container_engine"},
		{name: "bad severity", body: "rules: {\"no-disabled\": \"fatal\"}\n", contains: "rules"},
		{name: "bad duration", body: "time_bound: \"soon\"\n", contains: "time_bound"},
		{name: "bad format", body: "ui: format: \"html\"\n", contains: "ui.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts, dir := isolated(t)
			opts.ConfigFilePath = filepath.Join(dir, "mp.cue")
			if !tt.missing {
				writeFile(t, opts.ConfigFilePath, tt.body)
			}

			_, err := NewProvider().Load(context.Background(), opts)
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q should contain %q", err, tt.contains)
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("error should be actionable, got %T", err)
			}
			if ae.Issue != issue.ConfigLoadFailedId || !ae.HasSuggestions() {
				t.Errorf("actionable error = %+v", ae)
			}
		})
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts, _ := isolated(t)
	if _, err := NewProvider().Load(ctx, opts); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestLoad_InvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := NewProvider().Load(context.Background(), LoadOptions{BaseDir: "  "})
	if !errors.Is(err, ErrInvalidLoadOptions) {
		t.Errorf("Load() error = %v", err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Workers = 6
	cfg.Rules = map[validate.RuleID]validate.Severity{
		"verify-ssl":  validate.SeverityOff,
		"no-disabled": validate.SeverityError,
	}
	cfg.ResultPatterns = []string{`\.add_result_json\(`}
	cfg.Publish.Bucket = "content"
	cfg.UI.ColorScheme = ColorSchemeDark

	generated := GenerateCUE(cfg)
	if strings.Index(generated, "no-disabled") > strings.Index(generated, "verify-ssl") {
		t.Error("rules are not sorted")
	}

	opts, dir := isolated(t)
	opts.ConfigFilePath = writeFile(t, filepath.Join(dir, "generated.cue"), generated)
	loaded, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("generated CUE does not load: %v\n%s", err, generated)
	}
	if loaded.Workers != 6 || loaded.Rules["verify-ssl"] != validate.SeverityOff ||
		loaded.ResultPatterns[0] != cfg.ResultPatterns[0] || loaded.Publish.Bucket != "content" ||
		loaded.UI.ColorScheme != ColorSchemeDark || loaded.TimeBound != cfg.TimeBound {
		t.Errorf("round trip = %+v", loaded)
	}
}

func TestConfigDir(t *testing.T) {
	t.Parallel()

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if filepath.Base(dir) != AppName {
		t.Errorf("ConfigDir() = %q, want it to end in %q", dir, AppName)
	}
}
