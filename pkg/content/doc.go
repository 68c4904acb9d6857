// SPDX-License-Identifier: MPL-2.0

// Package content defines the in-memory model of marketplace content units.
//
// A content unit is either an integration or a playbook. Units are loaded from
// their canonical multi-file source layout through an fs.FS rooted at the unit
// directory, which keeps the loader usable against both the real filesystem
// and in-memory trees in tests. Loading never fails because of malformed
// descriptor files: parse problems are recorded as LoadIssues on the Unit so
// the validator can report them alongside every other violation.
//
// The kind-specific payload of a Unit is a closed tagged union (Entity) with
// exactly two implementations, *Integration and *Playbook.
package content
