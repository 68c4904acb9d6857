// SPDX-License-Identifier: MPL-2.0

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/soarmarket/mp/internal/build"
	"github.com/soarmarket/mp/internal/deconstruct"
	"github.com/soarmarket/mp/internal/scanner"
	"github.com/soarmarket/mp/internal/validate"
	"github.com/soarmarket/mp/pkg/content"
)

const (
	// DefaultWorkers is the worker count used when none is configured.
	DefaultWorkers = 4
	// MinWorkers and MaxWorkers bound the configurable worker count.
	MinWorkers = 1
	MaxWorkers = 10

	// DefaultTimeBound is the per-unit duration after which a unit is
	// reported as slow. Units are never killed.
	DefaultTimeBound = 2 * time.Minute
)

type (
	// Clock abstracts time so tests can control durations.
	Clock interface {
		Now() time.Time
		Since(t time.Time) time.Duration
	}

	systemClock struct{}

	// Options configures an Orchestrator.
	Options struct {
		Operation Operation
		// Root is the OS path of the tree units are read from: the source
		// repository, or the built tree for OpDeconstruct.
		Root string
		// FS overrides os.DirFS(Root).
		FS fs.FS
		// OutRoot is the OS path of the output tree written by OpBuild.
		OutRoot string
		// Dst is the destination repository of OpDeconstruct. Units are
		// written below their source directory inside it.
		Dst afero.Fs
		// Exclude holds doublestar patterns relative to Root; matching files
		// inside units are ignored.
		Exclude []string
		// Workers bounds parallelism; zero means DefaultWorkers.
		Workers int
		// Validator checks units. Required except for OpDeconstruct.
		Validator *validate.Validator
		// Handlers defaults to DefaultHandlers().
		Handlers map[content.UnitKind]KindHandler
		// TimeBound defaults to DefaultTimeBound.
		TimeBound time.Duration
		// WriteIndexes writes marketplace.json and playbooks.json after a
		// build. Set it only when the whole repository is built.
		WriteIndexes bool
		Clock        Clock
	}

	// Orchestrator runs one operation over many units.
	Orchestrator struct {
		opts     Options
		fsys     fs.FS
		excluded scanner.Matcher
	}
)

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// New validates opts and returns an Orchestrator. Every error returned here
// is a configuration error that is fatal to the run.
func New(opts Options) (*Orchestrator, error) {
	if ok, errs := opts.Operation.IsValid(); !ok {
		return nil, errors.Join(errs...)
	}
	if opts.Workers == 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Workers < MinWorkers || opts.Workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d (allowed %d..%d)", ErrInvalidWorkers, opts.Workers, MinWorkers, MaxWorkers)
	}
	switch {
	case opts.Operation == OpBuild && opts.OutRoot == "":
		return nil, fmt.Errorf("%w: output root", ErrMissingOption)
	case opts.Operation == OpDeconstruct && opts.Dst == nil:
		return nil, fmt.Errorf("%w: deconstruct destination", ErrMissingOption)
	case opts.Operation != OpDeconstruct && opts.Validator == nil:
		return nil, fmt.Errorf("%w: validator", ErrMissingOption)
	}
	if opts.Handlers == nil {
		opts.Handlers = DefaultHandlers()
	}
	if opts.TimeBound <= 0 {
		opts.TimeBound = DefaultTimeBound
	}
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}

	fsys := opts.FS
	if fsys == nil {
		fsys = os.DirFS(opts.Root)
	}
	return &Orchestrator{opts: opts, fsys: fsys, excluded: scanner.NewMatcher(opts.Exclude)}, nil
}

// Run processes units and returns the report. Discovery failures are
// reported as failed units. The returned error is non-nil only for
// run-fatal conditions detected before any unit is dispatched.
func (o *Orchestrator) Run(ctx context.Context, units []content.Descriptor, failures []*scanner.DiscoveryError) (*Report, error) {
	if o.opts.Operation.writes() {
		if err := checkOverlap(units, o.subtrees(units)); err != nil {
			return nil, err
		}
	}

	rep := &Report{
		RunID:     uuid.NewString(),
		Operation: o.opts.Operation,
		StartedAt: o.opts.Clock.Now(),
	}
	slog.Info("run started", "run", rep.RunID, "operation", rep.Operation, "units", len(units), "workers", o.opts.Workers)

	results := make([]UnitResult, len(units))
	for i, d := range units {
		results[i] = newUnitResult(d)
		results[i].Status = StatusSkipped
	}

	// In-flight units finish even when ctx is canceled: dispatch stops, the
	// work already started does not.
	work := context.WithoutCancel(ctx)
	var g errgroup.Group
	slots := make(chan struct{}, o.opts.Workers)
	for i := range units {
		if !acquire(ctx, slots) {
			slog.Warn("run canceled, skipping remaining units", "skipped", len(units)-i)
			break
		}
		g.Go(func() error {
			defer func() { <-slots }()
			o.runUnit(work, &results[i])
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range failures {
		r := newUnitResult(f.Descriptor())
		r.fail(f)
		results = append(results, r)
	}
	rep.Units = results

	if o.opts.Operation != OpDeconstruct {
		checkDuplicateIntegrations(rep.Units)
	}
	if o.opts.Operation == OpBuild && o.opts.WriteIndexes {
		written, err := writeIndexes(o.opts.OutRoot, rep.Units)
		if err != nil {
			slog.Error("write marketplace indexes", "error", err)
		}
		rep.Indexes = written
	}

	rep.tally()
	rep.Duration = o.opts.Clock.Since(rep.StartedAt)
	slog.Info("run finished", "run", rep.RunID,
		"succeeded", rep.Counts.Succeeded, "warned", rep.Counts.Warned,
		"failed", rep.Counts.Failed, "skipped", rep.Counts.Skipped)
	return rep, nil
}

// acquire blocks until a worker slot is free. It returns false, holding no
// slot, once ctx is canceled, including while it waits.
func acquire(ctx context.Context, slots chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case slots <- struct{}{}:
		// select picks at random when a slot and the cancellation are both ready.
		if ctx.Err() != nil {
			<-slots
			return false
		}
		return true
	case <-ctx.Done():
		return false
	}
}

// runUnit processes one unit and never panics.
func (o *Orchestrator) runUnit(ctx context.Context, res *UnitResult) {
	d := res.Descriptor
	start := o.opts.Clock.Now()
	res.Status = ""
	log := slog.With("unit", d.Name, "kind", d.Kind, "repository", d.Repository)

	defer func() {
		if r := recover(); r != nil {
			log.Error("unit panicked", "panic", r)
			res.fail(&PanicError{Unit: d.String(), Value: r})
		}
		res.Duration = o.opts.Clock.Since(start)
		if res.Duration > o.opts.TimeBound {
			log.Warn("unit exceeded time bound", "duration", res.Duration, "bound", o.opts.TimeBound)
			res.Violations = append(res.Violations, validate.Violation{
				RuleID:   validate.RuleTimeBound,
				Severity: validate.SeverityWarning,
				Message:  fmt.Sprintf("processing took %s, longer than %s", res.Duration.Round(time.Millisecond), o.opts.TimeBound),
			})
		}
		res.settle()
		log.Debug("unit done", "status", res.Status, "violations", len(res.Violations))
	}()

	h, ok := o.opts.Handlers[d.Kind]
	if !ok {
		res.fail(fmt.Errorf("%w: %s", ErrNoHandler, d.Kind))
		return
	}
	if err := ctx.Err(); err != nil {
		res.fail(err)
		return
	}

	if o.opts.Operation == OpDeconstruct {
		o.deconstructUnit(h, res)
		return
	}
	o.processUnit(h, res)
}

// processUnit runs validate, build and test.
func (o *Orchestrator) processUnit(h KindHandler, res *UnitResult) {
	d := res.Descriptor
	u, err := o.load(h, d)
	if err != nil {
		res.fail(err)
		return
	}
	if in, ok := u.Integration(); ok {
		res.identifier = in.Definition.Identifier
	}

	v := o.opts.Validator
	res.Violations = v.Validate(u)
	postBuild := v.PostBuildEnabled() || o.opts.Operation == OpTest
	if !postBuild && o.opts.Operation != OpBuild {
		return
	}
	// A build is attempted even with errors so the abort is reported.
	if res.Violations.HasErrors() && o.opts.Operation != OpBuild {
		return
	}

	data, err := h.Build(u, res.Violations)
	if err != nil {
		res.fail(err)
		return
	}

	if postBuild {
		rebuilt, err := roundTrip(h, d, data)
		if err != nil {
			res.Violations = append(res.Violations, validate.Violation{
				RuleID:   validate.RuleRoundTrip,
				Severity: validate.SeverityError,
				Path:     d.Name + ".json",
				Message:  err.Error(),
			})
		}
		res.Violations = append(res.Violations, v.ValidateBuilt(u, data, rebuilt)...)
		if res.Violations.HasErrors() {
			return
		}
	}

	if entry, err := h.Entry(data); err == nil {
		entry.Repository = d.Repository
		res.entry = &entry
	}
	if o.opts.Operation != OpBuild {
		return
	}
	out, err := build.WriteTo(o.opts.OutRoot, d, data)
	if err != nil {
		res.fail(err)
		return
	}
	res.Output = out
}

func (o *Orchestrator) load(h KindHandler, d content.Descriptor) (*content.Unit, error) {
	sub, err := fs.Sub(o.fsys, d.Rel)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Rel, err)
	}
	return h.Load(sub, d, content.WithExclude(func(rel string) bool {
		return o.excluded(path.Join(d.Rel, rel))
	}))
}

// roundTrip deconstructs data in memory and loads the result back.
func roundTrip(h KindHandler, d content.Descriptor, data []byte) (*content.Unit, error) {
	mem := afero.NewMemMapFs()
	res, err := h.Deconstruct(data, mem, deconstruct.Options{Source: d.Name + ".json"})
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(afero.NewIOFS(mem), res.Name)
	if err != nil {
		return nil, err
	}
	return h.Load(sub, d)
}

func (o *Orchestrator) deconstructUnit(h KindHandler, res *UnitResult) {
	d := res.Descriptor
	src := builtArtifact(d)
	data, err := fs.ReadFile(o.fsys, src)
	if err != nil {
		res.fail(fmt.Errorf("read artifact: %w", err))
		return
	}

	base := content.SourceDir(d.Kind, d.Repository)
	dst := afero.NewBasePathFs(o.opts.Dst, base)
	out, err := h.Deconstruct(data, dst, deconstruct.Options{Source: src, Now: o.opts.Clock.Now})
	if err != nil {
		res.fail(err)
		return
	}
	res.Violations = out.Violations
	res.Output = filepath.FromSlash(path.Join(base, out.Name))
}

// builtArtifact returns the artifact path of a built unit. The file is
// named after the directory as found on disk, which need not be canonical.
func builtArtifact(d content.Descriptor) string {
	return path.Join(d.Rel, path.Base(d.Rel)+".json")
}

// subtrees returns the directory each unit writes into, relative to the
// output root for builds and to the destination for deconstructions. A
// deconstructed unit lands where its artifact's name says, so the artifact
// is decoded up front; unreadable artifacts keep their directory name and
// fail later on their own.
func (o *Orchestrator) subtrees(units []content.Descriptor) []string {
	trees := make([]string, len(units))
	for i, d := range units {
		if o.opts.Operation != OpDeconstruct {
			trees[i] = d.OutputSubtree()
			continue
		}
		name := d.Name
		if h, ok := o.opts.Handlers[d.Kind]; ok && h.Target != nil {
			if data, err := fs.ReadFile(o.fsys, builtArtifact(d)); err == nil {
				if target, err := h.Target(data); err == nil {
					name = target
				}
			}
		}
		trees[i] = path.Join(content.SourceDir(d.Kind, d.Repository), name)
	}
	return trees
}

// checkOverlap rejects descriptor sets in which two units would write into
// the same subtree or one subtree contains another. subtrees[i] belongs to
// units[i].
func checkOverlap(units []content.Descriptor, subtrees []string) error {
	owners := map[string][]string{}
	trees := make([]string, 0, len(units))
	for i, d := range units {
		t := subtrees[i]
		if _, seen := owners[t]; !seen {
			trees = append(trees, t)
		}
		owners[t] = append(owners[t], d.Key())
	}
	slices.Sort(trees)
	for i, t := range trees {
		if len(owners[t]) > 1 {
			return &OverlapError{Subtree: t, Units: owners[t]}
		}
		if i+1 < len(trees) && strings.HasPrefix(trees[i+1], t+"/") {
			return &OverlapError{Subtree: t, Units: append(owners[t], owners[trees[i+1]]...)}
		}
	}
	return nil
}
