// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/soarmarket/mp/internal/report"
	"github.com/soarmarket/mp/internal/validate"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"

	// MinWorkers and MaxWorkers bound the worker pool.
	MinWorkers = 1
	MaxWorkers = 10
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidWorkers is returned when the worker count is out of range.
	ErrInvalidWorkers = errors.New("invalid worker count")
	// ErrInvalidExcludePattern is returned for a malformed exclusion glob.
	ErrInvalidExcludePattern = errors.New("invalid exclude pattern")
	// ErrInvalidTimeBound is returned when the time bound is not positive.
	ErrInvalidTimeBound = errors.New("invalid time bound")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not recognized.
	// It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// InvalidWorkersError is returned when the worker count is out of range.
	InvalidWorkersError struct {
		Value int
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the application configuration.
	Config struct {
		// Root is the content repository root.
		Root string `json:"root" mapstructure:"root"`
		// OutputDir receives build output. Relative paths resolve against Root.
		OutputDir string `json:"output_dir" mapstructure:"output_dir"`
		// Workers is the number of units processed in parallel.
		Workers int `json:"workers" mapstructure:"workers"`
		// Exclude lists doublestar globs of paths to ignore.
		Exclude []string `json:"exclude" mapstructure:"exclude"`
		// Rules overrides rule severities.
		Rules map[validate.RuleID]validate.Severity `json:"rules" mapstructure:"rules"`
		// ResultPatterns extend the built-in structured-result patterns.
		ResultPatterns []string `json:"result_patterns" mapstructure:"result_patterns"`
		// RaiseErrorOnViolations fails the run on warnings.
		RaiseErrorOnViolations bool `json:"raise_error_on_violations" mapstructure:"raise_error_on_violations"`
		// TimeBound is the per-unit duration above which a warning is reported.
		TimeBound time.Duration `json:"time_bound" mapstructure:"time_bound"`
		Bundle    BundleConfig  `json:"bundle" mapstructure:"bundle"`
		Publish   PublishConfig `json:"publish" mapstructure:"publish"`
		UI        UIConfig      `json:"ui" mapstructure:"ui"`

		// Source is the file the configuration was read from, if any.
		Source string `json:"-" mapstructure:"-"`
	}

	// BundleConfig configures output bundles.
	BundleConfig struct {
		// Dir receives bundles. Relative paths resolve against Root.
		Dir string `json:"dir" mapstructure:"dir"`
	}

	// PublishConfig locates the bucket bundles are published to.
	PublishConfig struct {
		Bucket       string `json:"bucket" mapstructure:"bucket"`
		Prefix       string `json:"prefix" mapstructure:"prefix"`
		Region       string `json:"region" mapstructure:"region"`
		Endpoint     string `json:"endpoint" mapstructure:"endpoint"`
		UsePathStyle bool   `json:"use_path_style" mapstructure:"use_path_style"`
		AccessKey    string `json:"access_key" mapstructure:"access_key"`
		SecretKey    string `json:"secret_key" mapstructure:"secret_key"`
	}

	// UIConfig configures the user interface.
	UIConfig struct {
		// ColorScheme selects the glamour style of Markdown output.
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables debug logging and the error chain of failures.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// Format is the report rendering.
		Format report.Format `json:"format" mapstructure:"format"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Root:      ".",
		OutputDir: "out",
		Workers:   4,
		Exclude:   []string{"**/__pycache__/**", "**/.DS_Store"},
		TimeBound: 2 * time.Minute,
		Bundle:    BundleConfig{Dir: "dist"},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Format:      report.FormatText,
		},
	}
}

// String returns the string representation of the ColorScheme.
func (c ColorScheme) String() string { return string(c) }

// IsValid returns whether the ColorScheme is one of the defined color schemes,
// and a list of validation errors if it is not.
func (c ColorScheme) IsValid() (bool, []error) {
	switch c {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: c}}
	}
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// Error implements the error interface for InvalidWorkersError.
func (e *InvalidWorkersError) Error() string {
	return fmt.Sprintf("invalid worker count %d (valid: %d to %d)", e.Value, MinWorkers, MaxWorkers)
}

// Unwrap returns ErrInvalidWorkers for errors.Is() compatibility.
func (e *InvalidWorkersError) Unwrap() error { return ErrInvalidWorkers }

// ValidateWorkers checks that n is within the worker pool bounds.
func ValidateWorkers(n int) error {
	if n < MinWorkers || n > MaxWorkers {
		return &InvalidWorkersError{Value: n}
	}
	return nil
}

// IsValid returns whether the UIConfig has valid fields.
func (c UIConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Format.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	return len(errs) == 0, errs
}

// IsValid returns whether the Config has valid fields. Rule ids are not
// checked here: the validator knows the registered rules.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if err := ValidateWorkers(c.Workers); err != nil {
		errs = append(errs, err)
	}
	for _, p := range c.Exclude {
		if !doublestar.ValidatePattern(p) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidExcludePattern, p))
		}
	}
	for id, sev := range c.Rules {
		if valid, fieldErrs := sev.IsValid(); !valid {
			for _, e := range fieldErrs {
				errs = append(errs, fmt.Errorf("rules.%s: %w", id, e))
			}
		}
	}
	if c.TimeBound <= 0 {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidTimeBound, c.TimeBound))
	}
	if valid, fieldErrs := c.UI.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return "invalid config: " + e.FieldErrors[0].Error()
	}
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig and the field errors for errors.Is()
// compatibility.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
