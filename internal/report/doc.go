// SPDX-License-Identifier: MPL-2.0

// Package report renders a pipeline run report as styled terminal text,
// Markdown (optionally rendered through glamour) or JSON.
package report
