// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/soarmarket/mp/internal/config"
)

// newConfigCommand creates the `mp config` command tree.
func newConfigCommand(app *App, flags *globalFlags) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect mp configuration",
		Long: `Inspect mp configuration.

Configuration is looked up in order:
  - the file passed with --config
  - Linux: ~/.config/mp/config.cue
    macOS: ~/Library/Application Support/mp/config.cue
    Windows: %APPDATA%\mp\config.cue
  - mp.cue in the content root

Every key can also be set from the environment, e.g. MP_WORKERS=8.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = true
			cfg, err := app.loadConfig(cmd.Context(), flags)
			if err != nil {
				return err
			}

			w := app.stdout
			source := SubtitleStyle.Render("(using defaults)")
			if cfg.Source != "" {
				source = cfg.Source
			}
			fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
			fmt.Fprintf(w, "%s: %s\n\n", KeyStyle.Render("Config file"), source)
			fmt.Fprint(w, config.GenerateCUE(cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the user configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	return cfgCmd
}
