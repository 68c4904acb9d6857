// SPDX-License-Identifier: MPL-2.0

// Package contenttest provides valid source trees of integrations and
// playbooks for tests. Every fixture passes validation as returned; tests
// derive broken variants with With.
package contenttest
