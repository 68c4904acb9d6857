// SPDX-License-Identifier: MPL-2.0

// Package artifact defines the single-file deployable format consumed by the
// host platform: one JSON document per content unit, with PascalCase keys,
// embedded script payloads, an ordered step array and merged widget records.
//
// Optional sections are modeled so that a missing key can be told apart
// from an empty one: slices stay nil and pointers stay nil when a key is
// absent. Encoders must therefore emit empty, non-nil values for sections
// that are present but empty.
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// indent is the fixed indentation of encoded artifacts.
const indent = "    "

// ErrMissingIdentifier is returned when a decoded artifact has no identifier.
var ErrMissingIdentifier = errors.New("artifact has no identifier")

type (
	// Integration is the deployable form of an integration.
	Integration struct {
		Identifier            string         `json:"Identifier"`
		DisplayName           string         `json:"DisplayName"`
		Description           string         `json:"Description"`
		Version               float64        `json:"Version"`
		Categories            []string       `json:"Categories"`
		SupportedEntityTypes  []string       `json:"SupportedEntityTypes"`
		IsCustom              bool           `json:"IsCustom"`
		IsCertified           bool           `json:"IsCertified"`
		IntegrationProperties []Parameter    `json:"IntegrationProperties"`
		Package               *Package       `json:"Package"`
		ReleaseNotes          []ReleaseNote  `json:"ReleaseNotes"`
		Actions               []Script       `json:"Actions"`
		Connectors            []Script       `json:"Connectors"`
		Jobs                  []Script       `json:"Jobs"`
		ActionWidgets         []ActionWidget `json:"ActionWidgets"`
		Managers              []Manager      `json:"Managers"`
		Resources             []Resource     `json:"Resources"`
		CustomFamilies        []CustomFamily `json:"CustomFamilies,omitempty"`
		MappingRules          []MappingRule  `json:"MappingRules,omitempty"`
	}

	// Package carries the Python packaging metadata and dependency pins.
	Package struct {
		Name           string   `json:"Name"`
		Version        string   `json:"Version"`
		Description    string   `json:"Description,omitempty"`
		RequiresPython string   `json:"RequiresPython,omitempty"`
		Dependencies   []string `json:"Dependencies"`
	}

	// Parameter is a script or configuration parameter.
	Parameter struct {
		Name           string   `json:"Name"`
		Type           int      `json:"Type"`
		Description    string   `json:"Description,omitempty"`
		IsMandatory    bool     `json:"IsMandatory"`
		DefaultValue   string   `json:"DefaultValue,omitempty"`
		OptionalValues []string `json:"OptionalValues,omitempty"`
	}

	// Script is an action, connector or job with its embedded source.
	Script struct {
		Name                   string          `json:"Name"`
		Description            string          `json:"Description"`
		Script                 string          `json:"Script"`
		IsCustom               bool            `json:"IsCustom"`
		IsEnabled              bool            `json:"IsEnabled"`
		IsAsync                bool            `json:"IsAsync,omitempty"`
		ScriptResultName       string          `json:"ScriptResultName,omitempty"`
		Parameters             []Parameter     `json:"Parameters"`
		DynamicResultsMetadata []DynamicResult `json:"DynamicResultsMetadata,omitempty"`
		SimulationDataJSON     string          `json:"SimulationDataJson,omitempty"`
	}

	// DynamicResult is a named structured result with its embedded example.
	DynamicResult struct {
		ResultName    string `json:"ResultName"`
		ShowResult    bool   `json:"ShowResult"`
		ResultExample string `json:"ResultExample,omitempty"`
	}

	// ActionWidget merges an action widget's metadata and HTML.
	ActionWidget struct {
		Title       string `json:"Title"`
		Description string `json:"Description,omitempty"`
		Type        string `json:"Type"`
		Scope       string `json:"Scope,omitempty"`
		ActionName  string `json:"ActionName"`
		HTMLContent string `json:"HtmlContent"`
	}

	// Manager is an embedded shared module.
	Manager struct {
		Name   string `json:"Name"`
		Script string `json:"Script"`
	}

	// Resource is an embedded file. SVG icons are carried as Text; every
	// other file as Content, which encoding/json renders in base64.
	Resource struct {
		Path    string `json:"Path"`
		Text    string `json:"Text,omitempty"`
		Content []byte `json:"Content,omitempty"`
	}

	// CustomFamily is a visual entity family with its relation rules.
	CustomFamily struct {
		Family      string       `json:"Family"`
		Description string       `json:"Description"`
		ImageBase64 string       `json:"ImageBase64"`
		IsCustom    bool         `json:"IsCustom"`
		Rules       []FamilyRule `json:"Rules"`
	}

	// FamilyRule relates source entities to destination entities.
	FamilyRule struct {
		PrimarySource        string `json:"PrimarySource"`
		SecondarySource      string `json:"SecondarySource,omitempty"`
		ThirdSource          string `json:"ThirdSource,omitempty"`
		FourthSource         string `json:"FourthSource,omitempty"`
		RelationType         string `json:"RelationType"`
		PrimaryDestination   string `json:"PrimaryDestination"`
		SecondaryDestination string `json:"SecondaryDestination,omitempty"`
		ThirdDestination     string `json:"ThirdDestination,omitempty"`
		FourthDestination    string `json:"FourthDestination,omitempty"`
		VisualFamily         string `json:"VisualFamily"`
	}

	// MappingRule maps a raw event field onto a security event field.
	// Enumerations are carried as platform numeric codes.
	MappingRule struct {
		Source                              string `json:"Source"`
		Product                             string `json:"Product,omitempty"`
		EventName                           string `json:"EventName,omitempty"`
		SecurityEventFieldName              string `json:"SecurityEventFieldName"`
		TransformationFunction              int    `json:"TransformationFunction"`
		TransformationFunctionParam         string `json:"TransformationFunctionParam,omitempty"`
		RawDataPrimaryFieldMatchTerm        string `json:"RawDataPrimaryFieldMatchTerm"`
		RawDataPrimaryFieldComparisonType   int    `json:"RawDataPrimaryFieldComparisonType"`
		RawDataSecondaryFieldMatchTerm      string `json:"RawDataSecondaryFieldMatchTerm,omitempty"`
		RawDataSecondaryFieldComparisonType int    `json:"RawDataSecondaryFieldComparisonType"`
		RawDataThirdFieldMatchTerm          string `json:"RawDataThirdFieldMatchTerm,omitempty"`
		RawDataThirdFieldComparisonType     int    `json:"RawDataThirdFieldComparisonType"`
		IsArtifact                          bool   `json:"IsArtifact"`
		ExtractionFunctionParam             string `json:"ExtractionFunctionParam,omitempty"`
		ExtractionFunction                  int    `json:"ExtractionFunction"`
	}

	// ReleaseNote is one release log entry.
	ReleaseNote struct {
		Version     float64 `json:"Version"`
		PublishTime int64   `json:"PublishTime"`
		Description string  `json:"Description"`
		New         bool    `json:"New"`
		Regressive  bool    `json:"Regressive"`
		Removed     bool    `json:"Removed"`
		Ticket      string  `json:"Ticket,omitempty"`
		ItemName    string  `json:"ItemName"`
		ItemType    string  `json:"ItemType"`
	}

	// Playbook is the deployable form of a playbook or block.
	Playbook struct {
		CategoryName             string             `json:"CategoryName"`
		OverviewTemplatesDetails []OverviewTemplate `json:"OverviewTemplatesDetails"`
		WidgetTemplates          []Widget           `json:"WidgetTemplates"`
		Definition               PlaybookDefinition `json:"Definition"`
		DisplayInfo              *DisplayInfo       `json:"DisplayInfo"`
		ReleaseNotes             []ReleaseNote      `json:"ReleaseNotes"`
	}

	// PlaybookDefinition holds the playbook graph.
	PlaybookDefinition struct {
		Identifier   string    `json:"Identifier"`
		Name         string    `json:"Name"`
		Description  string    `json:"Description"`
		Version      float64   `json:"Version"`
		PlaybookType int       `json:"PlaybookType"`
		IsEnable     bool      `json:"IsEnable"`
		Priority     int       `json:"Priority"`
		Tags         []string  `json:"Tags,omitempty"`
		Steps        []Step    `json:"Steps"`
		Triggers     []Trigger `json:"Triggers"`
	}

	// Step is one entry of the flat step array.
	Step struct {
		Identifier              string          `json:"Identifier"`
		InstanceName            string          `json:"InstanceName"`
		Name                    string          `json:"Name"`
		Description             string          `json:"Description,omitempty"`
		Type                    int             `json:"Type"`
		ActionProvider          string          `json:"ActionProvider,omitempty"`
		ActionName              string          `json:"ActionName,omitempty"`
		Integration             string          `json:"Integration,omitempty"`
		IsAutomatic             bool            `json:"IsAutomatic"`
		IsSkippable             bool            `json:"IsSkippable"`
		AutoSkipOnFailure       bool            `json:"AutoSkipOnFailure"`
		ParentStepIdentifiers   []string        `json:"ParentStepIdentifiers"`
		PreviousResultCondition string          `json:"PreviousResultCondition,omitempty"`
		Parameters              []StepParameter `json:"Parameters"`
		IsDebugMockData         bool            `json:"IsDebugMockData"`
		StepDebugData           *StepDebugData  `json:"StepDebugData,omitempty"`
	}

	// StepParameter is a name/value pair of a step.
	StepParameter struct {
		Name  string `json:"Name"`
		Value string `json:"Value"`
	}

	// StepDebugData is mock output used in debug runs.
	StepDebugData struct {
		ResultValue string `json:"ResultValue"`
		ResultJSON  string `json:"ResultJson,omitempty"`
	}

	// Trigger decides which alerts start the playbook.
	Trigger struct {
		Identifier      string             `json:"Identifier"`
		Type            string             `json:"Type"`
		LogicalOperator string             `json:"LogicalOperator,omitempty"`
		Conditions      []TriggerCondition `json:"Conditions"`
	}

	// TriggerCondition is one trigger condition.
	TriggerCondition struct {
		FieldName string `json:"FieldName"`
		Value     string `json:"Value"`
		MatchType string `json:"MatchType"`
	}

	// OverviewTemplate is an overview template with the roles allowed to see it.
	OverviewTemplate struct {
		Identifier string   `json:"Identifier"`
		Name       string   `json:"Name"`
		Roles      []string `json:"Roles"`
	}

	// Widget merges a playbook widget's metadata and HTML.
	Widget struct {
		Title               string `json:"Title"`
		Description         string `json:"Description,omitempty"`
		Type                string `json:"Type"`
		Order               int    `json:"Order"`
		Size                string `json:"Size,omitempty"`
		StepIdentifier      string `json:"StepIdentifier,omitempty"`
		BlockStepIdentifier string `json:"BlockStepIdentifier,omitempty"`
		HTMLContent         string `json:"HtmlContent"`
	}

	// DisplayInfo is the content hub metadata of a playbook.
	DisplayInfo struct {
		ContentHubDisplayName string   `json:"ContentHubDisplayName"`
		Author                string   `json:"Author"`
		ContactEmail          string   `json:"ContactEmail,omitempty"`
		IsVerified            bool     `json:"IsVerified"`
		DependentIntegrations []string `json:"DependentIntegrations"`
	}
)

// Encode renders an artifact deterministically: fixed indentation, struct
// field order and a trailing newline. HTML characters are not escaped so
// embedded widget templates stay byte-identical to their sources.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", indent)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeIntegration parses an integration artifact.
func DecodeIntegration(data []byte) (*Integration, error) {
	var a Integration
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode integration artifact: %w", err)
	}
	if a.Identifier == "" {
		return nil, ErrMissingIdentifier
	}
	return &a, nil
}

// DecodePlaybook parses a playbook artifact.
func DecodePlaybook(data []byte) (*Playbook, error) {
	var a Playbook
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode playbook artifact: %w", err)
	}
	if a.Definition.Identifier == "" {
		return nil, ErrMissingIdentifier
	}
	return &a, nil
}
