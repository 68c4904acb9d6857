// SPDX-License-Identifier: MPL-2.0

// Package pipeline runs one operation (validate, build, test or
// deconstruct) over a set of content units in parallel and aggregates the
// outcome into a Report.
//
// Units are independent: a unit that fails to load, violates a rule or
// panics is recorded as failed and never stops the others. Stages within a
// unit run strictly in sequence. Each unit writes only into its exclusive
// output subtree, so no locking is needed between workers.
package pipeline
