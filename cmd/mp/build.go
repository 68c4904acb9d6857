// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/soarmarket/mp/internal/pipeline"
)

// newBuildCommand creates the `mp build` command.
func newBuildCommand(app *App, flags *globalFlags) *cobra.Command {
	var (
		deconstruct  bool
		custom       bool
		onlyPreBuild bool
		doBundle     bool
		doPublish    bool
		raise        bool
		src          string
		dst          string
		workers      int
	)

	cmd := &cobra.Command{
		Use:   "build {integration|playbook|repository} [names...]",
		Short: "Build units into deployable artifacts",
		Long: `Validate units and write one JSON artifact per unit into the output tree.

Without names every unit of the target is built. Building the whole
repository also writes the marketplace indexes.

With --deconstruct the direction is reversed: artifacts are read from the
output tree (or --src) and written back in the source layout (or --dst).

Examples:
  mp build repository                         Build every unit
  mp build integration mock_tool other_tool   Build two integrations
  mp build integration --custom               Build the custom integrations
  mp build repository --publish               Build, bundle and upload`,
		Args: targetArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, _ := parseTarget(args[0])
			req := runRequest{
				op:           pipeline.OpBuild,
				target:       t,
				names:        args[1:],
				src:          src,
				dst:          dst,
				custom:       custom,
				onlyPreBuild: onlyPreBuild,
				bundle:       doBundle || doPublish,
				publish:      doPublish,
			}
			if deconstruct {
				req.op = pipeline.OpDeconstruct
			}
			req.workers, req.raise = policyOverrides(cmd, workers, raise)
			return runPipeline(cmd, app, flags, req)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&deconstruct, "deconstruct", false, "regenerate sources from built artifacts")
	f.StringVar(&src, "src", "", "directory to read units from")
	f.StringVar(&dst, "dst", "", "directory to write into")
	f.BoolVar(&custom, "custom", false, "build the custom repository only")
	f.BoolVar(&onlyPreBuild, "only-pre-build", false, "skip the post-build checks")
	f.BoolVar(&doBundle, "bundle", false, "pack the output tree into a tar.zst bundle")
	f.BoolVar(&doPublish, "publish", false, "upload the bundle to the configured bucket (implies --bundle)")
	addPolicyFlags(cmd, &workers, &raise)
	return cmd
}
