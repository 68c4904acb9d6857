// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers build content trees on disk (MustWriteTree) or in memory
// (MapFS), read results back (MustReadFile) and control time (FakeClock).
package testutil
