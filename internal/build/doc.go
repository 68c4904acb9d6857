// SPDX-License-Identifier: MPL-2.0

// Package build turns a loaded source unit into its deployable artifact.
//
// Builds are pure functions of the unit: child lists are sorted by canonical
// name and the artifact is encoded with a fixed layout, so building the same
// source twice yields byte-identical output regardless of the order in
// which files were read.
package build
