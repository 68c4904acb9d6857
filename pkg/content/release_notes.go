// SPDX-License-Identifier: MPL-2.0

package content

import (
	"errors"
	"fmt"
	"time"
)

const (
	// TagNew marks a release note introducing new functionality.
	TagNew ChangeTag = "new"
	// TagChange marks an ordinary change or fix.
	TagChange ChangeTag = "change"
	// TagRegressive marks a change that breaks existing behavior.
	TagRegressive ChangeTag = "regressive"
	// TagRemoved marks the removal of functionality.
	TagRemoved ChangeTag = "removed"

	// DateLayout is the layout of release note publish dates.
	DateLayout = "2006-01-02"

	// MinimumVersion is the lowest version a unit may declare.
	MinimumVersion = 1.0
)

// ErrInvalidChangeTag is returned when a ChangeTag value is not recognized.
var ErrInvalidChangeTag = errors.New("invalid change tag")

type (
	// ChangeTag classifies a release note entry.
	ChangeTag string

	// ReleaseNote is one entry of a unit's release log.
	ReleaseNote struct {
		Version     float64   `yaml:"version"`
		PublishDate string    `yaml:"publish_date"`
		Description string    `yaml:"description"`
		ChangeTag   ChangeTag `yaml:"change_tag"`
		Ticket      string    `yaml:"ticket,omitempty"`
	}

	// InvalidChangeTagError is returned when a ChangeTag value is not recognized.
	InvalidChangeTagError struct {
		Value ChangeTag
	}
)

// Error implements the error interface.
func (e *InvalidChangeTagError) Error() string {
	return fmt.Sprintf("invalid change tag %q (valid: new, change, regressive, removed)", e.Value)
}

// Unwrap returns ErrInvalidChangeTag for errors.Is() compatibility.
func (e *InvalidChangeTagError) Unwrap() error { return ErrInvalidChangeTag }

// IsValid returns whether the ChangeTag is one of the defined tags.
// The empty tag is accepted and treated as TagChange.
func (t ChangeTag) IsValid() (bool, []error) {
	switch t {
	case "", TagNew, TagChange, TagRegressive, TagRemoved:
		return true, nil
	default:
		return false, []error{&InvalidChangeTagError{Value: t}}
	}
}

// Normalized maps the empty tag to TagChange.
func (t ChangeTag) Normalized() ChangeTag {
	if t == "" {
		return TagChange
	}
	return t
}

// PublishTime parses the publish date as midnight UTC.
func (n ReleaseNote) PublishTime() (time.Time, error) {
	return time.Parse(DateLayout, n.PublishDate)
}

// PlaceholderReleaseNote is written when an exported artifact carries no
// release notes. It must be completed by hand before the unit is published.
func PlaceholderReleaseNote(now time.Time) ReleaseNote {
	return ReleaseNote{
		Version:     MinimumVersion,
		PublishDate: now.UTC().Format(DateLayout),
		Description: "Release description",
		ChangeTag:   TagNew,
	}
}
