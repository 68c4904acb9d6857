// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors for run-fatal conditions and a
// catalog of Markdown guidance rendered with glamour.
//
// Per-unit problems are never actionable errors: they are violations in the
// run report. Only configuration problems that stop a run before any unit
// is processed surface through this package.
package issue
