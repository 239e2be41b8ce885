package stocktake

import (
	"context"
	"fmt"

	"github.com/agentstation/stocktake/internal/journal"
	"github.com/agentstation/stocktake/internal/metrics"
	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/family"
	"github.com/agentstation/stocktake/pkg/logging"
	"github.com/agentstation/stocktake/pkg/period"
	"github.com/agentstation/stocktake/pkg/progress"
	"github.com/agentstation/stocktake/pkg/reconciler"
	"github.com/agentstation/stocktake/pkg/report"
	"github.com/agentstation/stocktake/pkg/scan"
	"github.com/agentstation/stocktake/pkg/staging"
	"github.com/agentstation/stocktake/pkg/transaction"
	"github.com/agentstation/stocktake/pkg/validate"
)

// Reconcile implements Engine.
func (e *engine) Reconcile(ctx context.Context, scanPath string) (*Run, error) {
	o := e.options
	run := &Run{
		ID:       o.newID(),
		ScanPath: scanPath,
		Started:  o.clock(),
	}
	run.Date = o.date
	if run.Date.IsZero() {
		run.Date = period.Date(run.Started, o.references)
	}

	ctx = logging.WithRun(ctx, run.ID)
	logger := logging.FromContext(ctx)
	logger.Info().
		Str("scan", scanPath).
		Str("date", period.Format(run.Date)).
		Msg("Reconciliation started")

	b := report.NewBuilder(run.ID, run.Date)
	err := e.reconcile(ctx, run, b)

	run.Finished = o.clock()
	run.Err = err
	run.Outcome = outcomeOf(err, run.Replace)
	b.Fail(err).Outcome(string(run.Outcome), run.Target)
	run.Report = b.Build()

	e.observe(ctx, run)
	e.hooks.finished(run, err)

	if err != nil {
		code, _ := errors.CodeOf(err)
		logger.Warn().Err(err).
			Str("outcome", string(run.Outcome)).
			Str("code", string(code)).
			Bool("committed", run.Committed).
			Msg("Reconciliation stopped")
		return run, err
	}
	logger.Info().
		Str("outcome", string(run.Outcome)).
		Str("target", run.Target).
		Dur("duration", run.Duration()).
		Msg("Reconciliation finished")
	return run, nil
}

// reconcile runs the pipeline stages in order. Nothing is written before the
// staging directory is created, and the ledger is only touched by the
// transaction stage.
func (e *engine) reconcile(ctx context.Context, run *Run, b *report.Builder) error {
	o := e.options
	sink := o.sink

	// parse
	rec, err := scan.ParseFile(run.ScanPath)
	if err != nil {
		notifyErr(ctx, sink, progress.StageParse, err)
		return err
	}
	run.Record = rec
	b.Scanned(rec)
	sink.Notify(ctx, progress.Event{
		Stage:   progress.StageParse,
		Message: fmt.Sprintf("%d codes scanned in %s", rec.NonBlank(), run.ScanPath),
	})

	// validate
	resolver := family.NewResolver(o.ledger)
	validator, err := validate.New(o.ledger,
		validate.WithDecider(o.decider),
		validate.WithSink(sink),
		validate.WithResolver(resolver),
	)
	if err != nil {
		return err
	}
	vres, err := validator.Validate(ctx, rec.Counts())
	if err != nil {
		return err
	}
	run.Counts = vres.Counts
	run.Orphans = vres.Orphans
	run.Exclusions = vres.Exclusions
	b.Validated(vres)

	// group
	groups, err := family.Partition(ctx, resolver, vres.Counts)
	if err != nil {
		return err
	}
	run.Families = groups
	counted := vres.Counts.Merge(vres.Orphans)
	sink.Notify(ctx, progress.Event{
		Stage:   progress.StageGroup,
		Message: fmt.Sprintf("%d items in %d families", vres.Counts.Len(), len(groups)),
	})

	// staging
	if err := checkpoint(ctx, progress.StageStage, false); err != nil {
		return err
	}
	stager, err := staging.New(o.root, run.Date, run.ID, e.stagingOptions()...)
	if err != nil {
		return err
	}
	if err := stager.Init(ctx); err != nil {
		return err
	}
	run.Staging = stager.Dir()
	if err := stager.Populate(ctx, rec, counted, groups); err != nil {
		return err
	}
	overwrite, err := stager.ConflictCheck(ctx)
	if err != nil {
		return err
	}

	// reconcile
	rc, err := reconciler.New(o.ledger,
		reconciler.WithRunID(run.ID),
		reconciler.WithDate(run.Date),
		reconciler.WithResolver(resolver),
		reconciler.WithSink(sink),
	)
	if err != nil {
		stager.Abort(ctx, false)
		return err
	}
	rres, err := rc.Reconcile(ctx, counted)
	if err != nil {
		stager.Abort(ctx, false)
		return err
	}
	run.Reconciliation = rres
	b.Reconciled(rres)
	sink.Notify(ctx, progress.Event{Stage: progress.StageReconcile, Message: rres.Summary()})

	if err := checkpoint(ctx, progress.StageCommit, false); err != nil {
		stager.Abort(ctx, false)
		return err
	}

	// commit
	entry := &journal.Record{
		RunID:     run.ID,
		Date:      stager.Date(),
		Staging:   stager.Dir(),
		Canonical: stager.Canonical(),
		Overwrite: overwrite,
		Movements: rres.Movements,
	}
	if err := e.journalBegin(ctx, entry); err != nil {
		stager.Abort(ctx, false)
		return err
	}
	tm, err := transaction.New(o.ledger, sink)
	if err != nil {
		stager.Abort(ctx, false)
		return err
	}
	tctx, cancel := timeout(ctx)
	applied, err := tm.Apply(tctx, rres.Movements)
	cancel()
	if err != nil {
		stager.Abort(ctx, false)
		e.journalMark(ctx, entry, journal.StateAborted, "", err)
		return err
	}
	run.Applied = applied
	run.Committed = applied.Applied > 0
	e.journalMark(ctx, entry, journal.StateCommitted, "", nil)
	if run.Committed {
		e.hooks.committed(run)
	}

	// report
	e.render(ctx, run, b, stager.Dir())

	// replace and promote
	out, err := stager.Finalize(ctx, run.Committed)
	run.Replace = out
	if err != nil {
		if !errors.IsAborted(err) {
			e.promoteFailed(ctx, run, stager, entry, err)
			return err
		}
		e.journalMark(ctx, entry, journal.StateAborted, "", err)
		return err
	}
	run.Target = out.Target
	run.ReportPath = retarget(run.ReportPath, stager.Dir(), out.Target)
	for i, p := range run.FamilyPaths {
		run.FamilyPaths[i] = retarget(p, stager.Dir(), out.Target)
	}
	e.journalMark(ctx, entry, journal.StatePromoted, out.Target, nil)

	// archive
	e.archive(ctx, run)
	return nil
}

// promoteFailed handles a staging directory that could not be renamed into
// place. A committed run keeps it and stays committed in the journal so that
// recover can promote it later. Anything else is aborted.
func (e *engine) promoteFailed(ctx context.Context, run *Run, stager *staging.Stager, entry *journal.Record, cause error) {
	if !run.Committed || e.journal == nil {
		stager.Abort(ctx, run.Committed)
		e.journalMark(ctx, entry, journal.StateAborted, "", cause)
		return
	}
	e.journalMark(ctx, entry, journal.StateCommitted, "", cause)
	msg := fmt.Sprintf("stock changes were committed but the inventory could not be promoted; %s is kept for \"stocktake recover\"", stager.Dir())
	e.options.sink.Notify(ctx, progress.Event{
		Stage:   progress.StagePromote,
		Level:   progress.Warning,
		Message: msg,
		Err:     cause,
	})
}

// checkpoint turns a cancelled context into an operator abort.
func checkpoint(ctx context.Context, stage progress.Stage, committed bool) error {
	if err := ctx.Err(); err != nil {
		return errors.NewAbortedError(string(stage), "cancelled", committed, fmt.Errorf("%w: %w", errors.ErrCanceled, err))
	}
	return nil
}

func notifyErr(ctx context.Context, sink progress.Sink, stage progress.Stage, err error) {
	code, _ := errors.CodeOf(err)
	sink.Notify(ctx, progress.Event{
		Stage:   stage,
		Level:   progress.Error,
		Code:    code,
		Message: err.Error(),
		Err:     err,
	})
}

// render writes the run report and the family reports into the staging
// directory. Failures are warnings.
func (e *engine) render(ctx context.Context, run *Run, b *report.Builder, dir string) {
	r := e.options.renderer
	if r == nil {
		return
	}
	warn := func(what string, err error) {
		e.options.sink.Notify(ctx, progress.Event{
			Stage:   progress.StageReport,
			Level:   progress.Warning,
			Message: fmt.Sprintf("%s could not be rendered: %v", what, err),
			Err:     err,
		})
	}

	data := b.Outcome("committed", "").Build()
	path, err := r.Render(ctx, dir, data)
	if err != nil {
		warn("run report", err)
	} else {
		run.ReportPath = path
	}

	for _, fr := range report.FamilyReports(run.Date, run.Reconciliation) {
		path, err := r.RenderFamily(ctx, dir, fr)
		if err != nil {
			warn("report of family "+string(fr.Family.Code), err)
			continue
		}
		run.FamilyPaths = append(run.FamilyPaths, path)
	}
}

func (e *engine) archive(ctx context.Context, run *Run) {
	a := e.options.archiver
	if a == nil {
		return
	}
	keys, err := a.Archive(ctx, run.Target)
	run.Archived = keys
	if err != nil {
		e.options.sink.Notify(ctx, progress.Event{
			Stage:   progress.StageArchive,
			Level:   progress.Warning,
			Message: "inventory could not be archived: " + err.Error(),
			Err:     err,
		})
		return
	}
	e.options.sink.Notify(ctx, progress.Event{
		Stage:   progress.StageArchive,
		Message: fmt.Sprintf("%d files archived", len(keys)),
	})
}

func (e *engine) journalBegin(ctx context.Context, rec *journal.Record) error {
	if e.journal == nil {
		return nil
	}
	return e.journal.Begin(ctx, rec)
}

// journalMark records a state change. A journal that cannot be written only
// costs the ability to recover, so it is logged and ignored.
func (e *engine) journalMark(ctx context.Context, rec *journal.Record, state journal.State, target string, cause error) {
	if e.journal == nil {
		return
	}
	if err := e.journal.Mark(ctx, rec, state, target, cause); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("state", string(state)).Msg("Failed to update run journal")
	}
}

func (e *engine) observe(ctx context.Context, run *Run) {
	m := e.options.metrics
	if m == nil {
		return
	}
	obs := metrics.Run{
		Outcome:    string(run.Outcome),
		Exclusions: make(map[string]int),
		Duration:   run.Duration(),
	}
	if run.Committed {
		obs.Inbound = run.Reconciliation.Metadata.Stats.Inbound
		obs.Outbound = run.Reconciliation.Metadata.Stats.Outbound
	}
	for _, x := range run.Exclusions {
		obs.Exclusions[string(x.Reason)]++
	}
	m.Observe(obs)
	if err := m.Flush(); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Failed to write metrics")
	}
}

// retarget moves a path from the staging directory to where it was promoted.
func retarget(path, from, to string) string {
	if path == "" || len(path) < len(from) || path[:len(from)] != from {
		return path
	}
	return to + path[len(from):]
}

// timeout bounds a stage with the default ledger timeout when the caller did
// not set a deadline.
func timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, constants.LedgerTimeout)
}
