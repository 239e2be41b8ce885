package stocktake

import (
	"context"
	"os"

	"github.com/agentstation/stocktake/internal/journal"
	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/ledger"
	"github.com/agentstation/stocktake/pkg/logging"
	"github.com/agentstation/stocktake/pkg/period"
	"github.com/agentstation/stocktake/pkg/staging"
)

// Recovery is what Recover did with one unfinished run.
type Recovery struct {
	RunID   string
	Date    string
	From    journal.State
	To      journal.State
	Target  string
	Outcome Outcome
	Err     error
}

// Recover implements Engine. Runs that committed are promoted as if Finalize
// had been reached. Runs that never committed have their staging directory
// removed.
func (e *engine) Recover(ctx context.Context) ([]Recovery, error) {
	if e.journal == nil {
		return nil, &errors.ConfigError{Component: "engine", Message: "run journal is disabled"}
	}
	records, err := e.journal.Unfinished()
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx)
	var out []Recovery
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		r := e.recoverOne(logging.WithRun(ctx, rec.RunID), rec)
		logger.Info().
			Str("run_id", r.RunID).
			Str("from", string(r.From)).
			Str("to", string(r.To)).
			Str("target", r.Target).
			AnErr("error", r.Err).
			Msg("Run recovered")
		out = append(out, r)
	}
	return out, nil
}

func (e *engine) recoverOne(ctx context.Context, rec *journal.Record) Recovery {
	r := Recovery{RunID: rec.RunID, Date: rec.Date, From: rec.State}

	committed := rec.State == journal.StateCommitted
	if !committed {
		committed = e.committedInLedger(ctx, rec)
	}
	stagingExists := dirExists(rec.Staging)

	switch {
	case !committed:
		if stagingExists {
			if err := os.RemoveAll(rec.Staging); err != nil {
				r.Err = errors.WrapIO("delete", rec.Staging, err)
			}
		}
		r.To = journal.StateAborted
		r.Outcome = OutcomeAborted
		e.journalMark(ctx, rec, journal.StateAborted, "", errors.New("interrupted before the ledger commit"))
		return r

	case !stagingExists:
		r.To = journal.StateAborted
		r.Outcome = OutcomeFailed
		r.Err = errors.NewNotFoundError("staging directory", rec.Staging)
		e.journalMark(ctx, rec, journal.StateAborted, "", r.Err)
		return r
	}

	date, err := period.Parse(rec.Date)
	if err != nil {
		r.Err = err
		r.Outcome = OutcomeFailed
		return r
	}
	stager, err := staging.Resume(e.options.root, date, rec.RunID, rec.Staging, rec.Overwrite, e.stagingOptions()...)
	if err != nil {
		r.Err = err
		r.Outcome = OutcomeFailed
		return r
	}
	res, err := stager.Finalize(ctx, true)
	r.Outcome = outcomeOf(err, res)
	if err != nil {
		r.Err = err
		if !errors.IsAborted(err) {
			// The staging directory is still there for the next attempt.
			r.To = journal.StateCommitted
			e.journalMark(ctx, rec, journal.StateCommitted, "", err)
			return r
		}
		r.To = journal.StateAborted
		e.journalMark(ctx, rec, journal.StateAborted, "", err)
		return r
	}
	r.To = journal.StatePromoted
	r.Target = res.Target
	e.journalMark(ctx, rec, journal.StatePromoted, res.Target, nil)
	return r
}

// committedInLedger checks a pending record against the ledger, which knows
// whether the transaction landed even if the journal update did not.
func (e *engine) committedInLedger(ctx context.Context, rec *journal.Record) bool {
	lister, ok := e.options.ledger.(ledger.MovementLister)
	if !ok || len(rec.Movements) == 0 {
		return false
	}
	moves, err := lister.Movements(ctx, rec.RunID)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("Failed to list movements of the run")
		return false
	}
	return len(moves) > 0
}

func dirExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
