// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/soarmarket/mp/internal/pipeline"
)

// newValidateCommand creates the `mp validate` command.
func newValidateCommand(app *App, flags *globalFlags) *cobra.Command {
	var (
		onlyPreBuild bool
		raise        bool
		workers      int
	)

	cmd := &cobra.Command{
		Use:   "validate {integration|playbook|repository} [names...]",
		Short: "Check units against the marketplace rules",
		Long: `Check units against the marketplace rules without writing anything.

Units are built in memory so that the post-build checks can run; pass
--only-pre-build to check the source files only.

Examples:
  mp validate repository
  mp validate playbook "Phishing Triage" --only-pre-build`,
		Args: targetArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, _ := parseTarget(args[0])
			req := runRequest{
				op:           pipeline.OpValidate,
				target:       t,
				names:        args[1:],
				onlyPreBuild: onlyPreBuild,
			}
			req.workers, req.raise = policyOverrides(cmd, workers, raise)
			return runPipeline(cmd, app, flags, req)
		},
	}

	cmd.Flags().BoolVar(&onlyPreBuild, "only-pre-build", false, "skip the post-build checks")
	addPolicyFlags(cmd, &workers, &raise)
	return cmd
}

// newTestCommand creates the `mp test` command.
func newTestCommand(app *App, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "test {integration|playbook|repository} [names...]",
		Short: "Check that units survive a build and deconstruct round trip",
		Long: `Validate units, build them in memory, deconstruct the artifacts and
compare the result with the sources. Nothing is written.`,
		Args: targetArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, _ := parseTarget(args[0])
			return runPipeline(cmd, app, flags, runRequest{
				op:     pipeline.OpTest,
				target: t,
				names:  args[1:],
			})
		},
	}
}
