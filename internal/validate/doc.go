// SPDX-License-Identifier: MPL-2.0

// Package validate checks loaded content units against structural, naming
// and semantic rules.
//
// Rules never stop at the first finding: a unit is checked by every rule
// registered for its kind and all violations are returned together, sorted
// by (path, rule id, message). Structural rules always report errors.
// Semantic and post-build rules carry a default severity that configuration
// may raise, lower or turn off.
package validate
