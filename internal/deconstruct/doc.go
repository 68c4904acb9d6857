// SPDX-License-Identifier: MPL-2.0

// Package deconstruct regenerates the editable source layout of a unit from
// its deployable artifact.
//
// It is the inverse of package build: every child record becomes one file
// named after the canonical form of its name, so that building the result
// reproduces an equivalent artifact. Exports from the live platform are
// often incomplete; missing sections are filled with placeholders that are
// reported as warnings so the author completes them before publishing.
package deconstruct
