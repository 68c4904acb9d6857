// SPDX-License-Identifier: MPL-2.0

package content

import (
	"errors"
	"fmt"
)

// Integration source layout.
const (
	ActionsDir     = "actions"
	ConnectorsDir  = "connectors"
	JobsDir        = "jobs"
	CoreDir        = "core"
	PyprojectFile  = "pyproject.toml"
	ScriptSuffix   = ".py"
	MetadataSuffix = ".yaml"
	WidgetSuffix   = ".html"

	// DefaultResultName is the dynamic result every action may publish as JSON.
	DefaultResultName = "JsonResult"

	// VerifySSLParam is the conventional name of the TLS verification parameter.
	VerifySSLParam = "Verify SSL"
)

const (
	// ScriptAction is an action script invoked from playbook steps.
	ScriptAction ScriptKind = "action"
	// ScriptConnector is a connector script that ingests alerts.
	ScriptConnector ScriptKind = "connector"
	// ScriptJob is a scheduled job script.
	ScriptJob ScriptKind = "job"
)

const (
	ParamString       ParamType = "string"
	ParamBoolean      ParamType = "boolean"
	ParamInteger      ParamType = "integer"
	ParamPassword     ParamType = "password"
	ParamIP           ParamType = "ip"
	ParamEmail        ParamType = "email"
	ParamContent      ParamType = "content"
	ParamUser         ParamType = "user"
	ParamStage        ParamType = "stage"
	ParamDDL          ParamType = "ddl"
	ParamMultiChoice  ParamType = "multi_choice_parameter"
	ParamMultiValues  ParamType = "multi_values"
	ParamCasePriority ParamType = "case_priorities"
)

// ErrInvalidParamType is returned when a ParamType value is not recognized.
var ErrInvalidParamType = errors.New("invalid parameter type")

// paramTypeCodes maps parameter types to the numeric codes of the platform format.
var paramTypeCodes = map[ParamType]int{
	ParamString:       0,
	ParamBoolean:      1,
	ParamInteger:      2,
	ParamPassword:     3,
	ParamIP:           4,
	ParamEmail:        5,
	ParamContent:      6,
	ParamUser:         7,
	ParamStage:        8,
	ParamCasePriority: 9,
	ParamDDL:          15,
	ParamMultiValues:  16,
	ParamMultiChoice:  21,
}

type (
	// ScriptKind distinguishes the three script-bearing integration components.
	ScriptKind string

	// ParamType is the declared type of a script or integration parameter.
	ParamType string

	// InvalidParamTypeError is returned when a ParamType value is not recognized.
	InvalidParamTypeError struct {
		Value ParamType
	}

	// Integration is a response integration.
	Integration struct {
		Definition     IntegrationDefinition
		Project        Project
		Scripts        []Script
		Widgets        []ActionWidget
		Managers       []Manager
		Resources      []Resource
		ReleaseNotes   []ReleaseNote
		CustomFamilies []CustomFamily
		MappingRules   []MappingRule
	}

	// IntegrationDefinition is the content of definition.yaml.
	IntegrationDefinition struct {
		Identifier           string      `yaml:"identifier"`
		Name                 string      `yaml:"name"`
		Description          string      `yaml:"description"`
		Version              float64     `yaml:"version"`
		Categories           []string    `yaml:"categories,omitempty"`
		SupportedEntityTypes []string    `yaml:"supported_entity_types,omitempty"`
		IsCustom             bool        `yaml:"is_custom"`
		IsCertified          bool        `yaml:"is_certified"`
		Parameters           []Parameter `yaml:"parameters,omitempty"`
	}

	// Parameter is a configuration or script parameter.
	Parameter struct {
		Name           string    `yaml:"name"`
		Type           ParamType `yaml:"type"`
		Description    string    `yaml:"description,omitempty"`
		IsMandatory    bool      `yaml:"is_mandatory"`
		DefaultValue   string    `yaml:"default_value,omitempty"`
		OptionalValues []string  `yaml:"optional_values,omitempty"`
	}

	// Script is an action, connector or job: a Python source file paired with
	// a metadata descriptor of the same stem.
	Script struct {
		Kind   ScriptKind
		Stem   string
		Source string
		Meta   ScriptMeta
	}

	// ScriptMeta is the metadata descriptor of a script.
	ScriptMeta struct {
		Name             string          `yaml:"name"`
		Description      string          `yaml:"description"`
		IsCustom         bool            `yaml:"is_custom"`
		IsEnabled        *bool           `yaml:"is_enabled,omitempty"`
		IsAsync          bool            `yaml:"is_async,omitempty"`
		ScriptResultName string          `yaml:"script_result_name,omitempty"`
		Parameters       []Parameter     `yaml:"parameters,omitempty"`
		DynamicResults   []DynamicResult `yaml:"dynamic_results_metadata,omitempty"`
		SimulationData   string          `yaml:"simulation_data_json,omitempty"`
	}

	// DynamicResult describes a named structured result a script publishes.
	DynamicResult struct {
		ResultName  string `yaml:"result_name"`
		ShowResult  bool   `yaml:"show_result"`
		ExamplePath string `yaml:"result_example_path,omitempty"`
		// Example is the content of ExamplePath, filled by Load.
		Example string `yaml:"-"`
	}

	// ActionWidget is an HTML widget rendered for an action result.
	ActionWidget struct {
		Stem string
		Meta ActionWidgetMeta
		HTML string
	}

	// ActionWidgetMeta is the metadata descriptor of an action widget.
	ActionWidgetMeta struct {
		Title       string `yaml:"title"`
		Description string `yaml:"description,omitempty"`
		Type        string `yaml:"type"`
		Scope       string `yaml:"scope,omitempty"`
		ActionName  string `yaml:"action_name"`
	}

	// Manager is a shared Python module under core/.
	Manager struct {
		Name   string
		Source string
	}

	// Resource is any other file shipped under resources/, such as icons.
	Resource struct {
		// Path is the slash-separated path relative to the unit root.
		Path string
		Data []byte
	}
)

// Error implements the error interface.
func (e *InvalidParamTypeError) Error() string {
	return fmt.Sprintf("invalid parameter type %q", e.Value)
}

// Unwrap returns ErrInvalidParamType for errors.Is() compatibility.
func (e *InvalidParamTypeError) Unwrap() error { return ErrInvalidParamType }

// IsValid returns whether the ParamType is a known parameter type.
func (p ParamType) IsValid() (bool, []error) {
	if _, ok := paramTypeCodes[p]; ok {
		return true, nil
	}
	return false, []error{&InvalidParamTypeError{Value: p}}
}

// Code returns the platform numeric code of the type, or -1 when unknown.
func (p ParamType) Code() int {
	if c, ok := paramTypeCodes[p]; ok {
		return c
	}
	return -1
}

// HasOptions reports whether values of the type are picked from a fixed list.
func (p ParamType) HasOptions() bool {
	return p == ParamDDL || p == ParamMultiChoice || p == ParamMultiValues
}

// ParamTypeFromCode resolves a platform numeric code.
func ParamTypeFromCode(code int) (ParamType, bool) {
	for t, c := range paramTypeCodes {
		if c == code {
			return t, true
		}
	}
	return "", false
}

// Dir returns the source directory of the script kind.
func (k ScriptKind) Dir() string {
	switch k {
	case ScriptAction:
		return ActionsDir
	case ScriptConnector:
		return ConnectorsDir
	case ScriptJob:
		return JobsDir
	default:
		return ""
	}
}

// ScriptKinds returns the script kinds in source layout order.
func ScriptKinds() []ScriptKind {
	return []ScriptKind{ScriptAction, ScriptConnector, ScriptJob}
}

// Enabled reports whether the script is enabled; a missing flag means enabled.
func (m ScriptMeta) Enabled() bool {
	return m.IsEnabled == nil || *m.IsEnabled
}

// ScriptPath returns the relative path of the script source.
func (s Script) ScriptPath() string { return s.Kind.Dir() + "/" + s.Stem + ScriptSuffix }

// MetadataPath returns the relative path of the script metadata descriptor.
func (s Script) MetadataPath() string { return s.Kind.Dir() + "/" + s.Stem + MetadataSuffix }

// UnitKind implements Entity.
func (*Integration) UnitKind() UnitKind { return KindIntegration }

// DeclaredVersion implements Entity.
func (in *Integration) DeclaredVersion() float64 { return in.Definition.Version }

func (*Integration) sealed() {}

// ScriptsOf returns the scripts of a given kind, in load order.
func (in *Integration) ScriptsOf(kind ScriptKind) []Script {
	var out []Script
	for _, s := range in.Scripts {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}
