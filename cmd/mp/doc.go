// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the CLI commands of mp.
//
// Commands are built by functions taking an *App, the composition root that
// carries the configuration provider, the publisher factory and the output
// streams. Run-fatal errors are returned as *ExitError so that Execute can
// map them to the process exit code:
//
//	0  every unit succeeded
//	1  a unit failed, or warnings were found with raise_error_on_violations
//	2  the run could not start (configuration, flags, root path)
package cmd
