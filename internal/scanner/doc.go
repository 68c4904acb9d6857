// SPDX-License-Identifier: MPL-2.0

// Package scanner discovers content units in a repository or output tree
// and builds the repository-wide index used to resolve cross-unit
// references.
//
// A directory is a unit when its marker files say so (see Classify). The
// scanner only lists directories; loading a unit's files is left to
// content.Load.
package scanner
