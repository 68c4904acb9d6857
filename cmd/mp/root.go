// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/soarmarket/mp/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// globalFlags holds the persistent flags shared by every command.
type globalFlags struct {
	configPath  string
	root        string
	verbose     bool
	format      string
	reportFile  string
	metricsFile string
}

// newRootCommand creates the `mp` command tree.
func newRootCommand(app *App) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "mp",
		Short: "Build and validate marketplace content",
		Long: TitleStyle.Render("mp") + SubtitleStyle.Render(" - Build and validate marketplace content") + `

mp discovers integrations and playbooks in a content repository, checks
them against the marketplace rules and packs them into deployable artifacts.
Built artifacts can be deconstructed back into the source layout.

` + SubtitleStyle.Render("Examples:") + `
  mp validate repository              Validate every unit of the repository
  mp build integration mock_tool      Build one integration
  mp build repository --bundle        Build everything and pack the output
  mp build playbook --deconstruct     Regenerate playbook sources from artifacts
  mp test integration                 Check that every integration round-trips
  mp config show                      Show the effective configuration`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/mp/config.cue, then ./mp.cue)")
	pf.StringVar(&flags.root, "root", "", "content repository root (overrides config)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.StringVar(&flags.format, "format", "", "report format: text, markdown or json (overrides config)")
	pf.StringVar(&flags.reportFile, "report-file", "", "also write the report to this file")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "write run metrics in the Prometheus textfile format")

	rootCmd.AddCommand(
		newBuildCommand(app, flags),
		newValidateCommand(app, flags),
		newTestCommand(app, flags),
		newConfigCommand(app, flags),
	)
	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI. It is called by main.main().
func Execute() {
	rootCmd := newRootCommand(NewApp(Dependencies{}))
	// fang overrides rootCmd.Version, so the version is passed through it.
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
