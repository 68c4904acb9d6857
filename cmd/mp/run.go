// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/soarmarket/mp/internal/config"
	"github.com/soarmarket/mp/internal/issue"
	"github.com/soarmarket/mp/internal/metrics"
	"github.com/soarmarket/mp/internal/pipeline"
	"github.com/soarmarket/mp/internal/publish"
	"github.com/soarmarket/mp/internal/report"
	"github.com/soarmarket/mp/internal/scanner"
	"github.com/soarmarket/mp/internal/validate"
	"github.com/soarmarket/mp/pkg/bundle"
	"github.com/soarmarket/mp/pkg/content"
)

const (
	targetIntegration target = "integration"
	targetPlaybook    target = "playbook"
	targetRepository  target = "repository"
)

var (
	// ErrInvalidTarget is returned when the first argument names no target.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrConflictingFlags is returned when --custom is combined with flags
	// that relocate the input or the output.
	ErrConflictingFlags = errors.New("conflicting flags")
	// ErrInvalidRoot is returned when a content root is not a directory.
	ErrInvalidRoot = errors.New("not a directory")
	// ErrRunFailed is returned when the report does not pass the exit policy.
	ErrRunFailed = errors.New("run failed")
)

type (
	// target selects the unit kinds of a run.
	target string

	// runRequest captures the command-specific inputs of one pipeline run.
	runRequest struct {
		op           pipeline.Operation
		target       target
		names        []string
		src          string
		dst          string
		custom       bool
		onlyPreBuild bool
		bundle       bool
		publish      bool
		// workers and raise are nil unless set on the command line.
		workers *int
		raise   *bool
	}

	// run is a pipeline invocation with its configuration resolved.
	run struct {
		app   *App
		flags *globalFlags
		req   runRequest
		cfg   config.Config
		style string
		// root is the repository root; src and out are the trees read and
		// written by the operation.
		root string
		src  string
		out  string
	}
)

func parseTarget(s string) (target, error) {
	switch t := target(s); t {
	case targetIntegration, targetPlaybook, targetRepository:
		return t, nil
	default:
		return "", fmt.Errorf("%w %q (valid: integration, playbook, repository)", ErrInvalidTarget, s)
	}
}

// kinds returns the unit kinds of the target; nil means every kind.
func (t target) kinds() []content.UnitKind {
	switch t {
	case targetIntegration:
		return []content.UnitKind{content.KindIntegration}
	case targetPlaybook:
		return []content.UnitKind{content.KindPlaybook}
	default:
		return nil
	}
}

// targetArgs validates the positional arguments of build, validate and test.
func targetArgs(_ *cobra.Command, args []string) error {
	if len(args) == 0 {
		return &ExitError{Code: ExitConfig, Err: fmt.Errorf("%w: requires integration, playbook or repository", ErrInvalidTarget)}
	}
	if _, err := parseTarget(args[0]); err != nil {
		return &ExitError{Code: ExitConfig, Err: err}
	}
	return nil
}

// addPolicyFlags registers the flags shared by build and validate.
func addPolicyFlags(cmd *cobra.Command, workers *int, raise *bool) {
	cmd.Flags().IntVar(workers, "workers", 0,
		fmt.Sprintf("units processed in parallel, %d..%d (overrides config)", config.MinWorkers, config.MaxWorkers))
	cmd.Flags().BoolVar(raise, "raise-error-on-violations", false, "fail the run on warnings as well")
}

// policyOverrides returns the policy flags the user actually set.
func policyOverrides(cmd *cobra.Command, workers int, raise bool) (*int, *bool) {
	var w *int
	var r *bool
	if cmd.Flags().Changed("workers") {
		w = &workers
	}
	if cmd.Flags().Changed("raise-error-on-violations") {
		r = &raise
	}
	return w, r
}

// runPipeline resolves the configuration of req and runs it. Every returned
// error is an *ExitError whose message has already been rendered.
func runPipeline(cmd *cobra.Command, app *App, flags *globalFlags, req runRequest) error {
	cmd.SilenceErrors = true
	r, err := app.prepare(cmd.Context(), flags, req)
	if err != nil {
		return err
	}
	return r.execute(cmd.Context())
}

// fail renders err on stderr with its catalog entry and returns the
// ExitError carrying code.
func (a *App) fail(code int, err error, verbose bool, style string) error {
	var id issue.Id
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		if entry := ae.CatalogEntry(); entry != nil {
			id = entry.Id()
		}
	}
	svcErr := newServiceError(err, id, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose)+"\n\n")
	renderServiceError(a.stderr, svcErr, style)
	return &ExitError{Code: code, Err: svcErr}
}

func (a *App) loadConfig(ctx context.Context, flags *globalFlags) (*config.Config, error) {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath, BaseDir: flags.root})
	if err != nil {
		return nil, a.fail(ExitConfig, err, flags.verbose, string(config.ColorSchemeAuto))
	}
	return cfg, nil
}

// prepare loads the configuration, applies the command-line overrides and
// resolves the trees of the run.
func (a *App) prepare(ctx context.Context, flags *globalFlags, req runRequest) (*run, error) {
	defaultStyle := string(config.ColorSchemeAuto)
	if req.custom && (req.src != "" || req.dst != "" || req.op == pipeline.OpDeconstruct) {
		err := issue.NewErrorContext().
			WithOperation("parse flags").
			WithSuggestion("Drop --custom to build from explicit directories").
			WithIssue(issue.ConflictingFlagsId).
			Wrap(fmt.Errorf("%w: --custom cannot be combined with --src, --dst or --deconstruct", ErrConflictingFlags)).
			BuildError()
		return nil, a.fail(ExitConfig, err, flags.verbose, defaultStyle)
	}

	loaded, err := a.loadConfig(ctx, flags)
	if err != nil {
		return nil, err
	}
	r := &run{app: a, flags: flags, req: req, cfg: *loaded, style: defaultStyle}
	r.applyOverrides()
	setupLogging(a.stderr, r.cfg.UI.Verbose)

	if ok, errs := r.cfg.IsValid(); !ok {
		err := errors.Join(errs...)
		id := issue.ConfigLoadFailedId
		ec := issue.NewErrorContext().WithOperation("validate configuration")
		if errors.Is(err, config.ErrInvalidWorkers) {
			id = issue.InvalidWorkersId
			ec.WithSuggestion(fmt.Sprintf("Use a worker count between %d and %d", config.MinWorkers, config.MaxWorkers))
		}
		return nil, r.fail(ExitConfig, ec.WithIssue(id).Wrap(err).BuildError())
	}
	r.style = string(r.cfg.UI.ColorScheme)

	if r.root, err = existingDir(r.cfg.Root); err != nil {
		return nil, r.fail(ExitConfig, rootError(r.cfg.Root, err))
	}
	r.out = resolve(r.root, r.cfg.OutputDir)
	src, dst := r.root, r.out
	if req.op == pipeline.OpDeconstruct {
		src, dst = r.out, r.root
	}
	if req.src != "" {
		src = req.src
	}
	if req.dst != "" {
		dst = req.dst
	}
	if r.src, err = existingDir(src); err != nil {
		return nil, r.fail(ExitConfig, rootError(src, err))
	}
	if r.out, err = filepath.Abs(dst); err != nil {
		return nil, r.fail(ExitConfig, rootError(dst, err))
	}
	slog.Debug("run resolved", "operation", req.op, "src", r.src, "out", r.out, "config", r.cfg.Source)
	return r, nil
}

func (r *run) applyOverrides() {
	if r.flags.root != "" {
		r.cfg.Root = r.flags.root
	}
	if r.flags.verbose {
		r.cfg.UI.Verbose = true
	}
	if r.flags.format != "" {
		r.cfg.UI.Format = report.Format(r.flags.format)
	}
	if r.req.workers != nil {
		r.cfg.Workers = *r.req.workers
	}
	if r.req.raise != nil {
		r.cfg.RaiseErrorOnViolations = *r.req.raise
	}
}

func (r *run) fail(code int, err error) error {
	return r.app.fail(code, err, r.cfg.UI.Verbose, r.style)
}

// execute scans, runs the operation, writes the report and ships the output.
func (r *run) execute(ctx context.Context) error {
	form := content.FormSource
	if r.req.op == pipeline.OpDeconstruct {
		form = content.FormBuilt
	}
	var repos []content.RepositoryKind
	if r.req.custom {
		repos = []content.RepositoryKind{content.RepoCustom}
	}

	s, err := scanner.New(scanner.Options{
		Root:         r.src,
		Form:         form,
		Kinds:        r.req.target.kinds(),
		Repositories: repos,
		Exclude:      r.cfg.Exclude,
	})
	if err != nil {
		return r.fail(ExitConfig, issue.WrapWithContext(err, "configure scanner", r.src))
	}
	sel, err := s.Select(ctx, r.req.names)
	if err != nil {
		return r.fail(ExitFailed, issue.WrapWithContext(err, "discover units", r.src))
	}

	opts := pipeline.Options{
		Operation: r.req.op,
		Root:      r.src,
		OutRoot:   r.out,
		Exclude:   r.cfg.Exclude,
		Workers:   r.cfg.Workers,
		TimeBound: r.cfg.TimeBound,
		Clock:     r.app.Clock,
	}
	if r.req.op == pipeline.OpDeconstruct {
		opts.Dst = afero.NewBasePathFs(afero.NewOsFs(), r.out)
	} else {
		if opts.Validator, err = r.validator(ctx, s); err != nil {
			return err
		}
		opts.WriteIndexes = r.req.op == pipeline.OpBuild && r.req.target == targetRepository &&
			len(r.req.names) == 0 && !r.req.custom
	}

	orch, err := pipeline.New(opts)
	if err != nil {
		return r.fail(ExitConfig, issue.WrapWithOperation(err, "configure the run"))
	}
	rep, err := orch.Run(ctx, sel.Units, sel.Failures)
	if err != nil {
		return r.fail(ExitConfig, issue.NewErrorContext().
			WithOperation("plan the run").
			WithIssue(issue.OverlappingOutputId).
			Wrap(err).
			BuildError())
	}

	r.explainDiscovery(sel.Failures)
	if err := r.writeOutputs(rep); err != nil {
		return r.fail(ExitFailed, err)
	}

	passed := rep.Passed(r.cfg.RaiseErrorOnViolations)
	if r.req.bundle && r.req.op == pipeline.OpBuild {
		if !passed {
			slog.Warn("bundle skipped because the run failed", "run", rep.RunID)
		} else if err := r.ship(ctx, rep); err != nil {
			return err
		}
	}
	if !passed {
		return &ExitError{Code: ExitFailed, Err: ErrRunFailed}
	}
	return nil
}

// validator indexes the source tree and builds the validator of the run.
func (r *run) validator(ctx context.Context, s *scanner.Scanner) (*validate.Validator, error) {
	idx, err := scanner.BuildIndex(ctx, s)
	if err != nil {
		return nil, r.fail(ExitFailed, issue.WrapWithContext(err, "index repository", r.src))
	}
	v, err := validate.New(validate.Options{
		Severities:     r.cfg.Rules,
		OnlyPreBuild:   r.req.onlyPreBuild,
		ResultPatterns: r.cfg.ResultPatterns,
		Index:          idx,
	})
	if err != nil {
		return nil, r.fail(ExitConfig, issue.NewErrorContext().
			WithOperation("configure rules").
			WithResource(r.cfg.Source).
			WithIssue(issue.InvalidRuleSeverityId).
			Wrap(err).
			BuildError())
	}
	return v, nil
}

// explainDiscovery prints the catalog entry of each kind of discovery
// failure once. The failures themselves are part of the report.
func (r *run) explainDiscovery(failures []*scanner.DiscoveryError) {
	shown := map[issue.Id]bool{}
	for _, f := range failures {
		var id issue.Id
		switch {
		case errors.Is(f, scanner.ErrUnitNotFound):
			id = issue.UnitNotFoundId
		case errors.Is(f, scanner.ErrDuplicateUnit):
			id = issue.DuplicateUnitId
		default:
			continue
		}
		if shown[id] {
			continue
		}
		shown[id] = true
		renderServiceError(r.app.stderr, newServiceError(f, id, ""), r.style)
	}
}

// writeOutputs renders the report on stdout and writes the optional report
// and metrics files.
func (r *run) writeOutputs(rep *pipeline.Report) error {
	opts := report.Options{
		Format:       r.cfg.UI.Format,
		Verbose:      r.cfg.UI.Verbose,
		GlamourStyle: r.style,
	}
	if err := report.Write(r.app.stdout, rep, opts); err != nil {
		return issue.WrapWithOperation(err, "render report")
	}

	if path := r.flags.reportFile; path != "" {
		opts.GlamourStyle = ""
		if err := writeReportFile(path, rep, opts); err != nil {
			return issue.WrapWithContext(err, "write report", path)
		}
	}
	if path := r.flags.metricsFile; path != "" {
		if err := metrics.WriteTextfile(path, rep); err != nil {
			return issue.WrapWithContext(err, "write metrics", path)
		}
	}
	return nil
}

func writeReportFile(path string, rep *pipeline.Report, opts report.Options) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return report.Write(f, rep, opts)
}

// ship bundles the output tree and, when requested, publishes the bundle.
func (r *run) ship(ctx context.Context, rep *pipeline.Report) error {
	bundleDir := resolve(r.root, r.cfg.Bundle.Dir)
	path := filepath.Join(bundleDir, bundle.Name(rep.RunID))
	m, err := bundle.Create(ctx, bundle.Options{Root: r.out, Output: path, RunID: rep.RunID})
	if err != nil {
		return r.fail(ExitFailed, issue.NewErrorContext().
			WithOperation("bundle output").
			WithResource(r.out).
			WithIssue(issue.BundleFailedId).
			Wrap(err).
			BuildError())
	}
	slog.Info("bundle written", "path", path, "files", len(m.Files))
	fmt.Fprintf(r.app.stderr, "%s %s\n", SuccessStyle.Render("Bundle:"), path)

	if !r.req.publish {
		return nil
	}
	pc := r.cfg.Publish
	pub, err := r.app.NewPublisher(ctx, publish.Config{
		Bucket:       pc.Bucket,
		Prefix:       pc.Prefix,
		Region:       pc.Region,
		Endpoint:     pc.Endpoint,
		AccessKey:    pc.AccessKey,
		SecretKey:    pc.SecretKey,
		UsePathStyle: pc.UsePathStyle,
	})
	if err == nil {
		var loc publish.Location
		if loc, err = pub.Publish(ctx, path, rep.RunID); err == nil {
			fmt.Fprintf(r.app.stderr, "%s %s\n", SuccessStyle.Render("Published:"), loc)
			return nil
		}
	}
	return r.fail(ExitFailed, issue.NewErrorContext().
		WithOperation("publish bundle").
		WithResource(path).
		WithIssue(issue.PublishFailedId).
		Wrap(err).
		BuildError())
}

func rootError(path string, err error) error {
	return issue.NewErrorContext().
		WithOperation("resolve content root").
		WithResource(path).
		WithSuggestion("Pass an existing directory with --root, or set root in your configuration").
		WithIssue(issue.InvalidRootId).
		Wrap(err).
		BuildError()
}

// existingDir returns the absolute form of path, which must be a directory.
func existingDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", ErrInvalidRoot
	}
	return abs, nil
}

// resolve joins a relative path onto base.
func resolve(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
