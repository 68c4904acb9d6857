// SPDX-License-Identifier: MPL-2.0

package content

import (
	"errors"
	"fmt"
)

// Playbook source layout.
const (
	DisplayInfoFile = "display_info.yaml"
	OverviewsFile   = "overviews.yaml"
	TriggerFile     = "trigger.yaml"
	StepsDir        = "steps"

	// NestedWorkflowParam names the step parameter holding a block identifier.
	NestedWorkflowParam = "NestedWorkflowIdentifier"
)

const (
	PlaybookRegular PlaybookType = "playbook"
	PlaybookBlock   PlaybookType = "block"
)

// Step types, in platform code order.
const (
	StepAction                   StepType = "action"
	StepMultiChoiceQuestion      StepType = "multi_choice_question"
	StepPreviousAction           StepType = "previous_action"
	StepCaseDataCondition        StepType = "case_data_condition"
	StepCondition                StepType = "condition"
	StepBlock                    StepType = "block"
	StepOutput                   StepType = "output"
	StepParallelActionsContainer StepType = "parallel_actions_container"
	StepForEachStartLoop         StepType = "for_each_start_loop"
	StepForEachEndLoop           StepType = "for_each_end_loop"
)

var (
	// ErrInvalidStepType is returned when a StepType value is not recognized.
	ErrInvalidStepType = errors.New("invalid step type")
	// ErrInvalidPlaybookType is returned when a PlaybookType value is not recognized.
	ErrInvalidPlaybookType = errors.New("invalid playbook type")

	stepTypes = []StepType{
		StepAction,
		StepMultiChoiceQuestion,
		StepPreviousAction,
		StepCaseDataCondition,
		StepCondition,
		StepBlock,
		StepOutput,
		StepParallelActionsContainer,
		StepForEachStartLoop,
		StepForEachEndLoop,
	}
)

type (
	// PlaybookType distinguishes regular playbooks from reusable blocks.
	PlaybookType string

	// StepType is the kind of a playbook step.
	StepType string

	// InvalidStepTypeError is returned when a StepType value is not recognized.
	InvalidStepTypeError struct {
		Value StepType
	}

	// InvalidPlaybookTypeError is returned when a PlaybookType value is not recognized.
	InvalidPlaybookTypeError struct {
		Value PlaybookType
	}

	// Playbook is a playbook or block.
	Playbook struct {
		Definition   PlaybookDefinition
		DisplayInfo  DisplayInfo
		Overviews    []Overview
		ReleaseNotes []ReleaseNote
		// Triggers holds every trigger declared in trigger.yaml; a valid
		// playbook has exactly one.
		Triggers []Trigger
		Steps    []Step
		Widgets  []PlaybookWidget
	}

	// PlaybookDefinition is the content of definition.yaml.
	PlaybookDefinition struct {
		Identifier  string       `yaml:"identifier"`
		Name        string       `yaml:"name"`
		Description string       `yaml:"description"`
		Version     float64      `yaml:"version"`
		Type        PlaybookType `yaml:"type"`
		IsEnabled   bool         `yaml:"is_enabled"`
		Priority    int          `yaml:"priority"`
		Category    string       `yaml:"category_name,omitempty"`
		Tags        []string     `yaml:"tags,omitempty"`
	}

	// DisplayInfo is the content hub metadata of a playbook.
	DisplayInfo struct {
		DisplayName           string   `yaml:"content_hub_display_name"`
		Author                string   `yaml:"author"`
		ContactEmail          string   `yaml:"contact_email,omitempty"`
		IsVerified            bool     `yaml:"is_verified"`
		DependentIntegrations []string `yaml:"dependent_integrations,omitempty"`
	}

	// Overview is an overview template shown when the playbook runs.
	Overview struct {
		Identifier string   `yaml:"identifier"`
		Name       string   `yaml:"name"`
		Roles      []string `yaml:"roles,omitempty"`
	}

	// Trigger decides which alerts start the playbook.
	Trigger struct {
		Identifier      string             `yaml:"identifier"`
		Type            string             `yaml:"type"`
		LogicalOperator string             `yaml:"logical_operator,omitempty"`
		Conditions      []TriggerCondition `yaml:"conditions,omitempty"`
	}

	// TriggerCondition is one condition of a trigger.
	TriggerCondition struct {
		FieldName string `yaml:"field_name"`
		Value     string `yaml:"value"`
		MatchType string `yaml:"match_type"`
	}

	// Step is one node of the playbook graph.
	Step struct {
		Identifier              string          `yaml:"identifier"`
		InstanceName            string          `yaml:"instance_name"`
		Name                    string          `yaml:"name"`
		Description             string          `yaml:"description,omitempty"`
		Type                    StepType        `yaml:"type"`
		ActionProvider          string          `yaml:"action_provider,omitempty"`
		ActionName              string          `yaml:"action_name,omitempty"`
		Integration             string          `yaml:"integration,omitempty"`
		IsAutomatic             bool            `yaml:"is_automatic"`
		IsSkippable             bool            `yaml:"is_skippable"`
		AutoSkipOnFailure       bool            `yaml:"auto_skip_on_failure,omitempty"`
		ParentStepIdentifiers   []string        `yaml:"parent_step_ids,omitempty"`
		PreviousResultCondition string          `yaml:"previous_result_condition,omitempty"`
		Parameters              []StepParameter `yaml:"parameters,omitempty"`
		IsDebugMockData         bool            `yaml:"is_debug_mock_data,omitempty"`
		DebugData               *StepDebugData  `yaml:"step_debug_data,omitempty"`

		// FileStem is the name of the step file without extension.
		FileStem string `yaml:"-"`
	}

	// StepParameter is a name/value pair configured on a step.
	StepParameter struct {
		Name  string `yaml:"name"`
		Value string `yaml:"value"`
	}

	// StepDebugData is mock output used when a playbook runs in debug mode.
	StepDebugData struct {
		ResultValue string `yaml:"result_value"`
		ResultJSON  string `yaml:"result_json,omitempty"`
	}

	// PlaybookWidget is an overview widget: metadata plus an HTML template.
	PlaybookWidget struct {
		Stem string
		Meta PlaybookWidgetMeta
		HTML string
	}

	// PlaybookWidgetMeta is the metadata descriptor of a playbook widget.
	PlaybookWidgetMeta struct {
		Title           string `yaml:"title"`
		Description     string `yaml:"description,omitempty"`
		Type            string `yaml:"type"`
		Order           int    `yaml:"order"`
		Size            string `yaml:"size,omitempty"`
		StepIdentifier  string `yaml:"step_id,omitempty"`
		BlockIdentifier string `yaml:"block_step_id,omitempty"`
	}
)

// Error implements the error interface.
func (e *InvalidStepTypeError) Error() string {
	return fmt.Sprintf("invalid step type %q", e.Value)
}

// Unwrap returns ErrInvalidStepType for errors.Is() compatibility.
func (e *InvalidStepTypeError) Unwrap() error { return ErrInvalidStepType }

// Error implements the error interface.
func (e *InvalidPlaybookTypeError) Error() string {
	return fmt.Sprintf("invalid playbook type %q (valid: playbook, block)", e.Value)
}

// Unwrap returns ErrInvalidPlaybookType for errors.Is() compatibility.
func (e *InvalidPlaybookTypeError) Unwrap() error { return ErrInvalidPlaybookType }

// IsValid returns whether the StepType is a known step type.
func (t StepType) IsValid() (bool, []error) {
	if t.Code() >= 0 {
		return true, nil
	}
	return false, []error{&InvalidStepTypeError{Value: t}}
}

// Code returns the platform numeric code of the step type, or -1 when unknown.
func (t StepType) Code() int {
	for i, st := range stepTypes {
		if st == t {
			return i
		}
	}
	return -1
}

// StepTypeFromCode resolves a platform numeric step type code.
func StepTypeFromCode(code int) (StepType, bool) {
	if code < 0 || code >= len(stepTypes) {
		return "", false
	}
	return stepTypes[code], true
}

// IsValid returns whether the PlaybookType is a known type. The empty type
// is accepted and treated as PlaybookRegular.
func (t PlaybookType) IsValid() (bool, []error) {
	switch t {
	case "", PlaybookRegular, PlaybookBlock:
		return true, nil
	default:
		return false, []error{&InvalidPlaybookTypeError{Value: t}}
	}
}

// Code returns the platform numeric code: 0 for playbooks, 1 for blocks.
func (t PlaybookType) Code() int {
	if t == PlaybookBlock {
		return 1
	}
	return 0
}

// PlaybookTypeFromCode resolves a platform numeric playbook type code.
func PlaybookTypeFromCode(code int) PlaybookType {
	if code == 1 {
		return PlaybookBlock
	}
	return PlaybookRegular
}

// Param returns the value of the named step parameter.
func (s Step) Param(name string) (string, bool) {
	for _, p := range s.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// BlockReference returns the nested block identifier of a block step.
func (s Step) BlockReference() (string, bool) {
	if s.Type != StepBlock {
		return "", false
	}
	id, ok := s.Param(NestedWorkflowParam)
	return id, ok && id != ""
}

// UnitKind implements Entity.
func (*Playbook) UnitKind() UnitKind { return KindPlaybook }

// DeclaredVersion implements Entity.
func (pb *Playbook) DeclaredVersion() float64 { return pb.Definition.Version }

func (*Playbook) sealed() {}

// IsBlock reports whether the playbook is a reusable block.
func (pb *Playbook) IsBlock() bool { return pb.Definition.Type == PlaybookBlock }
